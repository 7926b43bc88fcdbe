package helpers

import (
	"context"
	"fmt"

	"github.com/stephnangue/appcred/role"
)

// ResolveRoles maps role IDs or names to role IDs.
func ResolveRoles(ctx context.Context, reg *role.Registry, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	byName := make(map[string][]string)
	for _, r := range reg.ListRoles() {
		byName[r.Name] = append(byName[r.Name], r.ID)
	}

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, err := reg.GetRole(ctx, ref); err == nil {
			out = append(out, ref)
			continue
		}
		switch ids := byName[ref]; len(ids) {
		case 0:
			// Unknown roles are left to the manager to reject.
			out = append(out, ref)
		case 1:
			out = append(out, ids[0])
		default:
			return nil, fmt.Errorf("role name %q is ambiguous, use its id", ref)
		}
	}
	return out, nil
}
