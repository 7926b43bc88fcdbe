package helpers

import (
	"context"
	"errors"

	"github.com/stephnangue/appcred/identity"
	"github.com/stephnangue/appcred/logical"
)

// ResolveUser finds a user by ID, falling back to a name lookup in the
// named domain (the default domain when domain is empty). With a domain
// given only the name lookup is tried.
func ResolveUser(ctx context.Context, ids *identity.Store, ref, domain string) (*identity.User, error) {
	if domain == "" {
		u, err := ids.GetUser(ctx, ref)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, logical.ErrNotFound) {
			return nil, err
		}
	}

	domainID := identity.DefaultDomainID
	if domain != "" {
		d, err := ids.GetDomainByName(ctx, domain)
		if err != nil {
			return nil, err
		}
		domainID = d.ID
	}
	return ids.GetUserByName(ctx, ref, domainID)
}
