package credential

import (
	"context"

	"github.com/stephnangue/appcred/logical"
)

// Driver persists application credentials. There is one implementation per
// storage technology, selected by configuration.
type Driver interface {
	// Authenticate verifies secret against credential id. An unknown id,
	// a wrong secret and an expired credential all return the same
	// logical.ErrUnauthorized error.
	Authenticate(ctx context.Context, id, secret string) error

	// Create stores cred with the given role IDs. The driver hashes
	// cred.Secret; the returned record carries SecretHash and no Secret.
	Create(ctx context.Context, cred *ApplicationCredential, roles []string) (*ApplicationCredential, error)

	// Get returns the record or a logical.ErrNotFound error.
	Get(ctx context.Context, id string) (*ApplicationCredential, error)

	// ListForUser returns the user's records, honouring hints.
	ListForUser(ctx context.Context, userID string, hints *Hints) ([]*ApplicationCredential, error)

	// Delete removes one record or returns a logical.ErrNotFound error.
	Delete(ctx context.Context, id string) error

	// DeleteForUser removes every record owned by userID. Idempotent.
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserOnProject removes every record owned by userID scoped to
	// projectID. Idempotent.
	DeleteForUserOnProject(ctx context.Context, userID, projectID string) error
}

// Unimplemented can be embedded by partial drivers; every method fails with
// logical.ErrNotImplemented.
type Unimplemented struct{}

var _ Driver = Unimplemented{}

func (Unimplemented) Authenticate(context.Context, string, string) error {
	return logical.NotImplemented("authenticate")
}

func (Unimplemented) Create(context.Context, *ApplicationCredential, []string) (*ApplicationCredential, error) {
	return nil, logical.NotImplemented("create")
}

func (Unimplemented) Get(context.Context, string) (*ApplicationCredential, error) {
	return nil, logical.NotImplemented("get")
}

func (Unimplemented) ListForUser(context.Context, string, *Hints) ([]*ApplicationCredential, error) {
	return nil, logical.NotImplemented("list_for_user")
}

func (Unimplemented) Delete(context.Context, string) error {
	return logical.NotImplemented("delete")
}

func (Unimplemented) DeleteForUser(context.Context, string) error {
	return logical.NotImplemented("delete_for_user")
}

func (Unimplemented) DeleteForUserOnProject(context.Context, string, string) error {
	return logical.NotImplemented("delete_for_user_on_project")
}
