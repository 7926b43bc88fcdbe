package helpers

import (
	"context"
	"fmt"

	"github.com/stephnangue/appcred/config"
	"github.com/stephnangue/appcred/helper"
	"github.com/stephnangue/appcred/identity"
	"github.com/stephnangue/appcred/role"
)

// refs resolves seed names to IDs. A name declared twice (for example the
// same user name in two domains) cannot be referenced by name.
type refs map[string][]string

func (r refs) add(name, id string) {
	r[name] = append(r[name], id)
}

func (r refs) resolve(kind, name string) (string, error) {
	ids := r[name]
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("unknown %s %q", kind, name)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%s name %q is ambiguous", kind, name)
}

// Seed loads the configured domains, groups, users, roles and assignments.
// Entries without an explicit id get one derived from their names, so a
// persistent credential store keeps matching its owners across restarts.
func Seed(ctx context.Context, seed *config.SeedBlock, ids *identity.Store, roles *role.Registry) error {
	if seed == nil {
		return nil
	}

	for _, d := range seed.Domains {
		id := d.ID
		if id == "" {
			id = helper.StableID("domain", d.Name)
		}
		if _, err := ids.CreateDomain(identity.Domain{ID: id, Name: d.Name, Enabled: true}); err != nil {
			return fmt.Errorf("domain %q: %w", d.Name, err)
		}
	}

	domainID := func(name string) (string, error) {
		if name == "" {
			return identity.DefaultDomainID, nil
		}
		d, err := ids.GetDomainByName(ctx, name)
		if err != nil {
			return "", err
		}
		return d.ID, nil
	}

	groups := refs{}
	for _, g := range seed.Groups {
		did, err := domainID(g.Domain)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		id := g.ID
		if id == "" {
			id = helper.StableID("group", did, g.Name)
		}
		if _, err := ids.CreateGroup(identity.Group{ID: id, Name: g.Name, DomainID: did}); err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		groups.add(g.Name, id)
	}

	users := refs{}
	for _, u := range seed.Users {
		did, err := domainID(u.Domain)
		if err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
		id := u.ID
		if id == "" {
			id = helper.StableID("user", did, u.Name)
		}
		if _, err := ids.CreateUser(identity.User{ID: id, Name: u.Name, DomainID: did, Enabled: !u.Disabled}); err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
		users.add(u.Name, id)
		for _, name := range u.Groups {
			gid, err := groups.resolve("group", name)
			if err != nil {
				return fmt.Errorf("user %q: %w", u.Name, err)
			}
			if err := ids.AddUserToGroup(ctx, id, gid); err != nil {
				return fmt.Errorf("user %q: %w", u.Name, err)
			}
		}
	}

	roleIDs := refs{}
	for _, r := range seed.Roles {
		id := r.ID
		if id == "" {
			id = helper.StableID("role", r.Name)
		}
		if err := roles.Register(role.Role{ID: id, Name: r.Name, Description: r.Description}); err != nil {
			return fmt.Errorf("role %q: %w", r.Name, err)
		}
		roleIDs.add(r.Name, id)
	}

	for i, a := range seed.Assignments {
		rid, err := roleIDs.resolve("role", a.Role)
		if err != nil {
			return fmt.Errorf("assignment %d: %w", i, err)
		}
		if a.User != "" {
			uid, err := users.resolve("user", a.User)
			if err != nil {
				return fmt.Errorf("assignment %d: %w", i, err)
			}
			err = roles.AssignUser(ctx, uid, a.Project, rid)
			if err != nil {
				return fmt.Errorf("assignment %d: %w", i, err)
			}
			continue
		}
		gid, err := groups.resolve("group", a.Group)
		if err != nil {
			return fmt.Errorf("assignment %d: %w", i, err)
		}
		if err := roles.AssignGroup(ctx, gid, a.Project, rid); err != nil {
			return fmt.Errorf("assignment %d: %w", i, err)
		}
	}
	return nil
}
