package drivers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openbao/openbao/sdk/v2/physical"
	"github.com/openbao/openbao/sdk/v2/physical/inmem"
	"github.com/stephnangue/appcred/credential"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestDriver(t *testing.T) (*StorageDriver, physical.Backend) {
	t.Helper()
	backend, err := inmem.NewInmem(nil, logger.NewHCLogAdapter(logger.NewNullLogger()))
	require.NoError(t, err)
	d, err := NewStorageDriver(StorageDriverConfig{
		Backend:    backend,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return d, backend
}

func newCred(id, user, project, name string) *credential.ApplicationCredential {
	return &credential.ApplicationCredential{
		ID:        id,
		Name:      name,
		UserID:    user,
		ProjectID: project,
		Secret:    "s3cret-" + id,
	}
}

func TestNewStorageDriver_Validation(t *testing.T) {
	_, err := NewStorageDriver(StorageDriverConfig{})
	assert.Error(t, err)

	backend, err := inmem.NewInmem(nil, logger.NewHCLogAdapter(logger.NewNullLogger()))
	require.NoError(t, err)
	_, err = NewStorageDriver(StorageDriverConfig{Backend: backend, BcryptCost: 100})
	assert.Error(t, err)
}

func TestStorageDriver_CreateHashesSecret(t *testing.T) {
	d, backend := newTestDriver(t)
	ctx := context.Background()

	stored, err := d.Create(ctx, newCred("c1", "u1", "p1", "ci"), []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Empty(t, stored.Secret)
	assert.NotEmpty(t, stored.SecretHash)
	assert.NotEqual(t, "s3cret-c1", stored.SecretHash)
	assert.Equal(t, []string{"r1", "r2"}, stored.Roles)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.SecretHash), []byte("s3cret-c1")))

	entry, err := backend.Get(ctx, "appcred/id/c1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotContains(t, string(entry.Value), "s3cret-c1")

	index, err := backend.Get(ctx, "appcred/user/u1/p1/c1")
	require.NoError(t, err)
	assert.NotNil(t, index)
}

func TestStorageDriver_CreateRejectsDuplicates(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Create(ctx, newCred("c1", "u1", "p1", "ci"), nil)
	require.NoError(t, err)

	_, err = d.Create(ctx, newCred("c1", "u1", "p2", "other"), nil)
	assert.ErrorIs(t, err, logical.ErrConflict)

	_, err = d.Create(ctx, newCred("c2", "u1", "p2", "ci"), nil)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, logical.ErrConflict)
	assert.Equal(t, 409, logical.GetErrorCode(err))

	// Names are scoped to the owner.
	_, err = d.Create(ctx, newCred("c3", "u2", "p1", "ci"), nil)
	assert.NoError(t, err)
}

func TestStorageDriver_CreateValidation(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Create(ctx, newCred("", "u1", "p1", "n"), nil)
	assert.ErrorIs(t, err, logical.ErrInvalidRequest)

	c := newCred("c1", "u1", "p1", "n")
	c.Secret = ""
	_, err = d.Create(ctx, c, nil)
	assert.ErrorIs(t, err, logical.ErrInvalidRequest)
}

func TestStorageDriver_CreateRejectsPathSegments(t *testing.T) {
	d, backend := newTestDriver(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cred *credential.ApplicationCredential
	}{
		{"slash in id", newCred("a/b", "u1", "p1", "n")},
		{"dot id", newCred("..", "u1", "p1", "n")},
		{"slash in project", newCred("c1", "u1", "p2/evil", "n")},
		{"slash in user", newCred("c1", "u1/x", "p1", "n")},
		{"missing user", newCred("c1", "", "p1", "n")},
		{"missing project", newCred("c1", "u1", "", "n")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Create(ctx, tc.cred, nil)
			assert.ErrorIs(t, err, logical.ErrInvalidRequest)
		})
	}

	keys, err := backend.List(ctx, "appcred/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStorageDriver_UserCascadeReachesEveryRecord(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Create(ctx, newCred("c1", "u1", "p1", "a"), nil)
	require.NoError(t, err)
	_, err = d.Create(ctx, newCred("c2", "u1", "p2", "b"), nil)
	require.NoError(t, err)
	_, err = d.Create(ctx, newCred("c3", "u1", "p2/evil", "c"), nil)
	require.Error(t, err)

	listed, err := d.ListForUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	require.NoError(t, d.DeleteForUser(ctx, "u1"))
	for _, id := range []string{"c1", "c2"} {
		assert.ErrorIs(t, d.Authenticate(ctx, id, "s3cret-"+id), logical.ErrUnauthorized)
	}
}

func TestStorageDriver_Authenticate(t *testing.T) {
	now := time.Now()
	d, _ := newTestDriver(t)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := d.Create(ctx, newCred("c1", "u1", "p1", "ok"), nil)
	require.NoError(t, err)

	expired := newCred("c2", "u1", "p1", "expired")
	past := now.Add(-time.Minute)
	expired.ExpiresAt = &past
	_, err = d.Create(ctx, expired, nil)
	require.NoError(t, err)

	assert.NoError(t, d.Authenticate(ctx, "c1", "s3cret-c1"))

	failures := []struct {
		name, id, secret string
	}{
		{"wrong secret", "c1", "nope"},
		{"unknown id", "missing", "s3cret-c1"},
		{"expired", "c2", "s3cret-c2"},
		{"path-like id", "../c1", "s3cret-c1"},
	}
	var messages []string
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			err := d.Authenticate(ctx, tc.id, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, logical.ErrUnauthorized)
			messages = append(messages, err.Error())
		})
	}
	for _, m := range messages {
		assert.Equal(t, messages[0], m)
	}
}

func TestStorageDriver_GetAndDelete(t *testing.T) {
	d, backend := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Get(ctx, "c1")
	assert.ErrorIs(t, err, logical.ErrNotFound)

	_, err = d.Create(ctx, newCred("c1", "u1", "p1", "n"), []string{"r1"})
	require.NoError(t, err)

	got, err := d.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "n", got.Name)
	assert.Equal(t, []string{"r1"}, got.Roles)

	require.NoError(t, d.Delete(ctx, "c1"))
	_, err = d.Get(ctx, "c1")
	assert.ErrorIs(t, err, logical.ErrNotFound)

	index, err := backend.Get(ctx, "appcred/user/u1/p1/c1")
	require.NoError(t, err)
	assert.Nil(t, index)

	assert.ErrorIs(t, d.Delete(ctx, "c1"), logical.ErrNotFound)
}

func TestStorageDriver_ListForUser(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	later := time.Now().Add(2 * time.Hour)
	sooner := time.Now().Add(time.Hour)

	c := newCred("c1", "u1", "p1", "bravo")
	c.ExpiresAt = &later
	_, err := d.Create(ctx, c, nil)
	require.NoError(t, err)
	c = newCred("c2", "u1", "p2", "alpha")
	c.ExpiresAt = &sooner
	_, err = d.Create(ctx, c, nil)
	require.NoError(t, err)
	_, err = d.Create(ctx, newCred("c3", "u1", "p1", "charlie"), nil)
	require.NoError(t, err)
	_, err = d.Create(ctx, newCred("c4", "u2", "p1", "alpha"), nil)
	require.NoError(t, err)

	names := func(creds []*credential.ApplicationCredential) []string {
		var out []string
		for _, c := range creds {
			out = append(out, c.Name)
		}
		return out
	}

	all, err := d.ListForUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names(all))

	onP1, err := d.ListForUser(ctx, "u1", (*credential.Hints)(nil).Filter("project_id", "p1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, names(onP1))

	byName, err := d.ListForUser(ctx, "u1", (*credential.Hints)(nil).Filter("name", "alpha"))
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "c2", byName[0].ID)

	byExpiry, err := d.ListForUser(ctx, "u1", &credential.Hints{SortKey: "expires_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names(byExpiry))

	hints := &credential.Hints{SortKey: "id", SortDesc: true, Limit: 2}
	limited, err := d.ListForUser(ctx, "u1", hints)
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "alpha"}, names(limited))
	assert.True(t, hints.Truncated)

	none, err := d.ListForUser(ctx, "nobody", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorageDriver_BulkDelete(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	for _, c := range []*credential.ApplicationCredential{
		newCred("c1", "u1", "p1", "a"),
		newCred("c2", "u1", "p2", "b"),
		newCred("c3", "u1", "p1", "c"),
		newCred("c4", "u2", "p1", "a"),
	} {
		_, err := d.Create(ctx, c, nil)
		require.NoError(t, err)
	}

	require.NoError(t, d.DeleteForUserOnProject(ctx, "u1", "p1"))
	left, err := d.ListForUser(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c2", left[0].ID)

	// Idempotent.
	require.NoError(t, d.DeleteForUserOnProject(ctx, "u1", "p1"))

	require.NoError(t, d.DeleteForUser(ctx, "u1"))
	left, err = d.ListForUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, left)
	require.NoError(t, d.DeleteForUser(ctx, "u1"))

	other, err := d.ListForUser(ctx, "u2", nil)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStorageDriver_ConcurrentCreateSameName(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Create(ctx, newCred("c"+strings.Repeat("x", i+1), "u1", "p1", "same"), nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrDuplicateName))
	}
	assert.Equal(t, 1, ok)
}

type failingBackend struct {
	physical.Backend
	err error
}

func (f *failingBackend) Get(context.Context, string) (*physical.Entry, error) {
	return nil, f.err
}

func TestStorageDriver_BackendErrorsPassThrough(t *testing.T) {
	_, backend := newTestDriver(t)
	boom := errors.New("disk on fire")
	d, err := NewStorageDriver(StorageDriverConfig{
		Backend:    &failingBackend{Backend: backend, err: boom},
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	err = d.Authenticate(context.Background(), "c1", "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, logical.ErrUnauthorized)
}
