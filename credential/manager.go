package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/mitchellh/copystructure"
	"github.com/stephnangue/appcred/helper"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
	"github.com/stephnangue/appcred/notify"
	"github.com/stephnangue/appcred/role"
)

// ManagerConfig holds the collaborators of a Manager.
type ManagerConfig struct {
	Driver Driver
	Oracle role.Oracle
	Roles  role.Reader
	Bus    notify.Bus
	Cache  CacheConfig
	Logger *logger.GatedLogger

	// Now overrides the clock used for expiry validation.
	Now func() time.Time
}

// Manager owns the application credential lifecycle. It checks role
// assignments on create, keeps the read-through cache consistent with
// deletes, and revokes credentials when the identity or assignment
// subsystems announce that their owner lost access.
type Manager struct {
	driver Driver
	oracle role.Oracle
	roles  role.Reader
	bus    notify.Bus
	cache  *Cache
	log    *logger.GatedLogger
	now    func() time.Time

	unsubscribe []func()
}

// NewManager creates a Manager and subscribes it to the lifecycle topics.
func NewManager(config ManagerConfig) (*Manager, error) {
	switch {
	case config.Driver == nil:
		return nil, errors.New("credential manager requires a driver")
	case config.Oracle == nil:
		return nil, errors.New("credential manager requires a role oracle")
	case config.Roles == nil:
		return nil, errors.New("credential manager requires a role reader")
	case config.Bus == nil:
		return nil, errors.New("credential manager requires an event bus")
	}

	cache, err := NewCache(config.Cache)
	if err != nil {
		return nil, err
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}

	m := &Manager{
		driver: config.Driver,
		oracle: config.Oracle,
		roles:  config.Roles,
		bus:    config.Bus,
		cache:  cache,
		log:    log.WithSubsystem("credential"),
		now:    config.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}

	m.unsubscribe = []func(){
		m.bus.Subscribe(notify.TopicUserDeleted, m.onUserEvent),
		m.bus.Subscribe(notify.TopicUserDisabled, m.onUserEvent),
		m.bus.Subscribe(notify.TopicAssignmentRemoved, m.onAssignmentRemoved),
	}
	return m, nil
}

// Close removes the manager's subscriptions and releases the cache.
func (m *Manager) Close() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.cache.Close()
	m.log.Trace("credential manager closed")
}

// Authenticate verifies secret against credential id. Every failure is
// reported as the same unauthorized error.
func (m *Manager) Authenticate(ctx context.Context, id, secret string) error {
	defer metrics.MeasureSince([]string{"appcred", "authenticate"}, time.Now())

	err := m.driver.Authenticate(ctx, id, secret)
	switch {
	case err == nil:
		metrics.IncrCounter([]string{"appcred", "authenticate", "success"}, 1)
		return nil
	case errors.Is(err, logical.ErrUnauthorized), errors.Is(err, logical.ErrNotFound):
		metrics.IncrCounter([]string{"appcred", "authenticate", "failure"}, 1)
		return logical.Unauthorized("invalid application credential")
	default:
		return fmt.Errorf("failed to authenticate application credential: %w", err)
	}
}

// Create mints a credential. The owner must hold every requested role on
// the project; the first missing one is reported and nothing is stored.
// The result is the only place the plaintext secret is ever returned.
func (m *Manager) Create(ctx context.Context, req *CreateRequest, initiator string) (*View, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	roles := strutil.RemoveDuplicatesStable(req.Roles, false)
	if err := m.requireRoles(ctx, req.UserID, req.ProjectID, roles); err != nil {
		return nil, err
	}

	secret := req.Secret
	if secret == "" {
		var err error
		if secret, err = helper.GenerateSecret(); err != nil {
			return nil, err
		}
	}
	id := req.ID
	if id == "" {
		id = helper.GenerateID()
	}

	cred := &ApplicationCredential{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		ExpiresAt:    req.ExpiresAt,
		Unrestricted: req.Unrestricted,
		Roles:        roles,
		Secret:       secret,
	}
	// Roles are expanded before the write so a failure leaves nothing stored.
	view, err := m.project(ctx, cred)
	if err != nil {
		return nil, err
	}
	if _, err := m.driver.Create(ctx, cred, roles); err != nil {
		return nil, err
	}
	view.Secret = secret

	metrics.IncrCounter([]string{"appcred", "created"}, 1)
	m.log.Info("application credential created",
		logger.String("id", view.ID),
		logger.String("user_id", view.UserID),
		logger.String("project_id", view.ProjectID))
	m.audit(ctx, notify.TopicAuditCreated, view.ID, initiator)

	return view, nil
}

func (m *Manager) validate(req *CreateRequest) error {
	switch {
	case req == nil:
		return logical.InvalidRequestf("missing create request")
	case req.UserID == "":
		return logical.InvalidRequestf("user_id is required")
	case req.ProjectID == "":
		return logical.InvalidRequestf("project_id is required")
	case req.Name == "":
		return logical.InvalidRequestf("name is required")
	case req.ExpiresAt != nil && !req.ExpiresAt.After(m.now()):
		return logical.InvalidRequestf("expires_at %s is in the past", req.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return CheckKeys(req.UserID, req.ProjectID, req.ID)
}

func (m *Manager) requireRoles(ctx context.Context, userID, projectID string, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	held, err := m.oracle.EffectiveRoles(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("failed to list roles of user %s on project %s: %w", userID, projectID, err)
	}
	set := make(map[string]struct{}, len(held))
	for _, id := range held {
		set[id] = struct{}{}
	}
	for _, id := range roles {
		if _, ok := set[id]; !ok {
			return &logical.RoleAssignmentNotFoundError{RoleID: id, ActorID: userID, TargetID: projectID}
		}
	}
	return nil
}

// Get returns the credential with the given id from the cache or the
// driver.
func (m *Manager) Get(ctx context.Context, id string) (*View, error) {
	view, err := m.cache.GetOrLoad(ctx, id, func(ctx context.Context) (*View, error) {
		cred, err := m.driver.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return m.project(ctx, cred)
	})
	if err != nil {
		return nil, err
	}
	return copyView(view)
}

// List returns the user's credentials. Filtering and sorting are delegated
// to the driver through hints.
func (m *Manager) List(ctx context.Context, userID string, hints *Hints) ([]*View, error) {
	creds, err := m.driver.ListForUser(ctx, userID, hints)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(creds))
	for _, cred := range creds {
		view, err := m.project(ctx, cred)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Delete removes a credential. The cache entry is gone before the driver
// is asked, and the audit event is only sent once the driver confirmed.
func (m *Manager) Delete(ctx context.Context, id, initiator string) error {
	m.cache.Invalidate(id)
	if err := m.driver.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Invalidate(id)

	metrics.IncrCounter([]string{"appcred", "deleted"}, 1)
	m.log.Info("application credential deleted", logger.String("id", id))
	m.audit(ctx, notify.TopicAuditDeleted, id, initiator)
	return nil
}

// project converts a stored record into its public form. The secret hash
// is never copied.
func (m *Manager) project(ctx context.Context, cred *ApplicationCredential) (*View, error) {
	roles, err := m.roles.GetRoles(ctx, cred.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to expand roles of application credential %s: %w", cred.ID, err)
	}
	return &View{
		ID:           cred.ID,
		Name:         cred.Name,
		Description:  cred.Description,
		UserID:       cred.UserID,
		ProjectID:    cred.ProjectID,
		ExpiresAt:    cred.ExpiresAt,
		Unrestricted: cred.Unrestricted,
		Roles:        roles,
	}, nil
}

func (m *Manager) audit(ctx context.Context, topic, id, initiator string) {
	m.bus.PublishAsync(ctx, topic, notify.AuditPayload{
		ResourceType: ResourceType,
		ResourceID:   id,
		Initiator:    initiator,
		Timestamp:    m.now().UTC(),
	})
}

func copyView(v *View) (*View, error) {
	out, err := copystructure.Copy(v)
	if err != nil {
		return nil, fmt.Errorf("failed to copy application credential: %w", err)
	}
	return out.(*View), nil
}
