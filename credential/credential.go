// Package credential manages application credentials: secondary, scoped
// secrets bound to a user and a project for use by automated clients.
package credential

import (
	"strings"
	"time"

	"github.com/stephnangue/appcred/logical"

	"github.com/stephnangue/appcred/role"
)

// ResourceType names application credentials in audit events.
const ResourceType = "application_credential"

// ApplicationCredential is the record kept by a Driver.
type ApplicationCredential struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	UserID       string     `json:"user_id"`
	ProjectID    string     `json:"project_id"`
	SecretHash   string     `json:"secret_hash"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Unrestricted bool       `json:"unrestricted"`
	Roles        []string   `json:"roles"`

	// Secret is the plaintext secret handed to Driver.Create. Drivers
	// never persist or return it.
	Secret string `json:"-"`
}

// Expired reports whether the credential has an expiry at or before now.
func (c *ApplicationCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// CheckKeys rejects user, project and credential ids that cannot be used
// as a single storage path segment. An empty id is allowed here; required
// fields are checked by the caller.
func CheckKeys(userID, projectID, id string) error {
	for _, f := range [...]struct{ name, value string }{
		{"user_id", userID},
		{"project_id", projectID},
		{"id", id},
	} {
		if strings.Contains(f.value, "/") || f.value == "." || f.value == ".." {
			return logical.InvalidRequestf("%s %q must not contain '/' or be a relative path", f.name, f.value)
		}
	}
	return nil
}

// View is the public projection of an application credential. It never
// carries the secret hash; Secret is only set on the result of Create.
type View struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	UserID       string       `json:"user_id"`
	ProjectID    string       `json:"project_id"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	Unrestricted bool         `json:"unrestricted"`
	Roles        []*role.Role `json:"roles"`
	Secret       string       `json:"secret,omitempty"`
}

// RoleIDs returns the IDs of the view's roles in order.
func (v *View) RoleIDs() []string {
	ids := make([]string, 0, len(v.Roles))
	for _, r := range v.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// CreateRequest describes a credential to mint.
type CreateRequest struct {
	// ID is optional; one is generated when empty.
	ID           string
	Name         string
	Description  string
	UserID       string
	ProjectID    string
	ExpiresAt    *time.Time
	Unrestricted bool

	// Secret is optional; a random secret is generated when empty.
	Secret string

	// Roles lists the role IDs the credential is scoped to. The user must
	// hold each of them on ProjectID.
	Roles []string
}

// Hints carries filtering, sorting and limiting requests down to the
// Driver. Drivers honour what they can.
type Hints struct {
	// Filters matches exact field values. Supported keys: "name",
	// "project_id".
	Filters map[string]string
	// SortKey is one of "name" (default), "id", "expires_at".
	SortKey  string
	SortDesc bool
	// Limit caps the number of results (0 = unlimited).
	Limit int

	// Truncated is set by the driver when Limit cut the result.
	Truncated bool
}

// Filter returns a copy of h with an extra exact-match filter.
func (h *Hints) Filter(key, value string) *Hints {
	out := &Hints{Filters: map[string]string{key: value}}
	if h != nil {
		for k, v := range h.Filters {
			if k != key {
				out.Filters[k] = v
			}
		}
		out.SortKey, out.SortDesc, out.Limit = h.SortKey, h.SortDesc, h.Limit
	}
	return out
}
