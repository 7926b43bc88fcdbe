// Package drivers contains credential.Driver implementations.
package drivers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/openbao/openbao/sdk/v2/helper/jsonutil"
	"github.com/openbao/openbao/sdk/v2/physical"
	"github.com/stephnangue/appcred/credential"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
	"golang.org/x/crypto/bcrypt"
)

const (
	idPrefix   = "appcred/id/"
	userPrefix = "appcred/user/"
)

// ErrDuplicateName is returned when a user already owns a credential with
// the requested name.
var ErrDuplicateName = errors.New("duplicate application credential name")

// StorageDriverConfig configures a StorageDriver.
type StorageDriverConfig struct {
	Backend physical.Backend
	Logger  *logger.GatedLogger

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// StorageDriver keeps application credentials as JSON records in a
// physical.Backend. Records live under appcred/id/<id>; an empty marker
// under appcred/user/<user>/<project>/<id> indexes them by owner.
type StorageDriver struct {
	backend physical.Backend
	log     *logger.GatedLogger
	cost    int
	now     func() time.Time

	// dummyHash is compared against when the id is unknown so that unknown
	// ids and wrong secrets take the same time to reject.
	dummyHash []byte

	// writeLock serializes the name uniqueness check with the write.
	writeLock sync.Mutex
}

var _ credential.Driver = (*StorageDriver)(nil)

// NewStorageDriver creates a StorageDriver.
func NewStorageDriver(config StorageDriverConfig) (*StorageDriver, error) {
	if config.Backend == nil {
		return nil, errors.New("storage driver requires a backend")
	}
	cost := config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("appcred-dummy-secret"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	d := &StorageDriver{
		backend:   config.Backend,
		log:       log.WithSubsystem("appcred.storage"),
		cost:      cost,
		now:       config.Now,
		dummyHash: dummy,
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

func idKey(id string) string {
	return idPrefix + id
}

func indexKey(userID, projectID, id string) string {
	return userPrefix + userID + "/" + projectID + "/" + id
}

// Authenticate checks secret against the stored hash.
func (d *StorageDriver) Authenticate(ctx context.Context, id, secret string) error {
	cred, err := d.read(ctx, id)
	if err != nil {
		return err
	}
	if cred == nil {
		_ = bcrypt.CompareHashAndPassword(d.dummyHash, []byte(secret))
		return logical.Unauthorized("invalid application credential")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return logical.Unauthorized("invalid application credential")
	}
	if cred.Expired(d.now()) {
		return logical.Unauthorized("invalid application credential")
	}
	return nil
}

// Create hashes the secret and stores the record with its owner index.
func (d *StorageDriver) Create(ctx context.Context, cred *credential.ApplicationCredential, roles []string) (*credential.ApplicationCredential, error) {
	if cred == nil || cred.ID == "" {
		return nil, logical.InvalidRequestf("application credential id is required")
	}
	if cred.Secret == "" {
		return nil, logical.InvalidRequestf("application credential secret is required")
	}
	if cred.UserID == "" || cred.ProjectID == "" {
		return nil, logical.InvalidRequestf("application credential owner is required")
	}
	// Every id becomes one segment of the owner index key.
	if err := credential.CheckKeys(cred.UserID, cred.ProjectID, cred.ID); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cred.Secret), d.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	record := *cred
	record.Secret = ""
	record.SecretHash = string(hash)
	record.Roles = append([]string{}, roles...)
	if record.Roles == nil {
		record.Roles = []string{}
	}

	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	existing, err := d.read(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, logical.Conflictf("application credential %s already exists", record.ID)
	}
	owned, err := d.ListForUser(ctx, record.UserID, (*credential.Hints)(nil).Filter("name", record.Name))
	if err != nil {
		return nil, err
	}
	if len(owned) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrDuplicateName,
			logical.Conflictf("user %s already owns an application credential named %q", record.UserID, record.Name))
	}

	value, err := jsonutil.EncodeJSON(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode application credential: %w", err)
	}
	if err := d.backend.Put(ctx, &physical.Entry{Key: idKey(record.ID), Value: value}); err != nil {
		return nil, fmt.Errorf("failed to store application credential: %w", err)
	}
	if err := d.backend.Put(ctx, &physical.Entry{Key: indexKey(record.UserID, record.ProjectID, record.ID), Value: []byte{}}); err != nil {
		_ = d.backend.Delete(ctx, idKey(record.ID))
		return nil, fmt.Errorf("failed to index application credential: %w", err)
	}

	d.log.Debug("stored application credential", logger.String("id", record.ID))
	return &record, nil
}

// Get returns the stored record.
func (d *StorageDriver) Get(ctx context.Context, id string) (*credential.ApplicationCredential, error) {
	cred, err := d.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, logical.NotFoundf("application credential %s", id)
	}
	return cred, nil
}

// read returns nil when the record does not exist.
func (d *StorageDriver) read(ctx context.Context, id string) (*credential.ApplicationCredential, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, nil
	}
	entry, err := d.backend.Get(ctx, idKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read application credential %s: %w", id, err)
	}
	if entry == nil {
		return nil, nil
	}
	var cred credential.ApplicationCredential
	if err := jsonutil.DecodeJSON(entry.Value, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode application credential %s: %w", id, err)
	}
	return &cred, nil
}

// ListForUser walks the owner index. A project_id filter limits the walk
// to that project.
func (d *StorageDriver) ListForUser(ctx context.Context, userID string, hints *credential.Hints) ([]*credential.ApplicationCredential, error) {
	var filters map[string]string
	if hints != nil {
		filters = hints.Filters
	}

	var projects []string
	if p, ok := filters["project_id"]; ok {
		projects = []string{p}
	} else {
		keys, err := d.backend.List(ctx, userPrefix+userID+"/")
		if err != nil {
			return nil, fmt.Errorf("failed to list projects of user %s: %w", userID, err)
		}
		for _, k := range keys {
			projects = append(projects, strings.TrimSuffix(k, "/"))
		}
	}

	var out []*credential.ApplicationCredential
	for _, projectID := range projects {
		ids, err := d.backend.List(ctx, userPrefix+userID+"/"+projectID+"/")
		if err != nil {
			return nil, fmt.Errorf("failed to list application credentials of user %s: %w", userID, err)
		}
		for _, id := range ids {
			cred, err := d.read(ctx, id)
			if err != nil {
				return nil, err
			}
			if cred == nil {
				d.log.Warn("dangling application credential index",
					logger.String("user_id", userID),
					logger.String("project_id", projectID),
					logger.String("id", id))
				continue
			}
			if name, ok := filters["name"]; ok && cred.Name != name {
				continue
			}
			out = append(out, cred)
		}
	}

	sortCredentials(out, hints)
	if hints != nil && hints.Limit > 0 && len(out) > hints.Limit {
		out = out[:hints.Limit]
		hints.Truncated = true
	}
	return out, nil
}

func sortCredentials(creds []*credential.ApplicationCredential, hints *credential.Hints) {
	key, desc := "name", false
	if hints != nil {
		if hints.SortKey != "" {
			key = hints.SortKey
		}
		desc = hints.SortDesc
	}

	less := func(a, b *credential.ApplicationCredential) bool {
		switch key {
		case "id":
			return a.ID < b.ID
		case "expires_at":
			switch {
			case a.ExpiresAt == nil:
				return false
			case b.ExpiresAt == nil:
				return true
			}
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}
	sort.SliceStable(creds, func(i, j int) bool {
		if desc {
			return less(creds[j], creds[i])
		}
		return less(creds[i], creds[j])
	})
}

// Delete removes a record and its index entry.
func (d *StorageDriver) Delete(ctx context.Context, id string) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	cred, err := d.read(ctx, id)
	if err != nil {
		return err
	}
	if cred == nil {
		return logical.NotFoundf("application credential %s", id)
	}
	return d.remove(ctx, cred)
}

func (d *StorageDriver) remove(ctx context.Context, cred *credential.ApplicationCredential) error {
	if err := d.backend.Delete(ctx, idKey(cred.ID)); err != nil {
		return fmt.Errorf("failed to delete application credential %s: %w", cred.ID, err)
	}
	if err := d.backend.Delete(ctx, indexKey(cred.UserID, cred.ProjectID, cred.ID)); err != nil {
		return fmt.Errorf("failed to delete index of application credential %s: %w", cred.ID, err)
	}
	return nil
}

// DeleteForUser removes every record of userID.
func (d *StorageDriver) DeleteForUser(ctx context.Context, userID string) error {
	return d.removeAll(ctx, userID, nil)
}

// DeleteForUserOnProject removes every record of userID on projectID.
func (d *StorageDriver) DeleteForUserOnProject(ctx context.Context, userID, projectID string) error {
	return d.removeAll(ctx, userID, (*credential.Hints)(nil).Filter("project_id", projectID))
}

func (d *StorageDriver) removeAll(ctx context.Context, userID string, hints *credential.Hints) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	creds, err := d.ListForUser(ctx, userID, hints)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, cred := range creds {
		if err := d.remove(ctx, cred); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if len(creds) > 0 {
		d.log.Debug("removed application credentials",
			logger.String("user_id", userID),
			logger.Int("count", len(creds)))
	}
	return result.ErrorOrNil()
}
