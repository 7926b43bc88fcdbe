// Package role owns the role catalogue and answers which roles a user holds
// on a project.
package role

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
	"github.com/stephnangue/appcred/notify"
)

// Role is a named permission set that can be assigned on a project.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DomainID    string `json:"domain_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// Oracle answers effective role membership.
type Oracle interface {
	// EffectiveRoles returns the IDs of the roles userID holds on projectID,
	// directly or through group membership.
	EffectiveRoles(ctx context.Context, userID, projectID string) ([]string, error)
}

// Reader looks up role objects.
type Reader interface {
	GetRole(ctx context.Context, id string) (*Role, error)
	// GetRoles returns roles in the order of ids.
	GetRoles(ctx context.Context, ids []string) ([]*Role, error)
}

// GroupMembership resolves group relationships owned by the identity
// subsystem.
type GroupMembership interface {
	GroupsForUser(ctx context.Context, userID string) ([]string, error)
	UsersInGroup(ctx context.Context, groupID string) ([]string, error)
}

type target struct {
	actor   string
	project string
}

// Registry is the in-process role catalogue and assignment store.
type Registry struct {
	mu     sync.RWMutex
	roles  map[string]*Role
	users  map[target]map[string]struct{}
	groups map[target]map[string]struct{}

	membership GroupMembership
	bus        notify.Bus
	log        *logger.GatedLogger
	unsub      func()
}

var (
	_ Oracle = (*Registry)(nil)
	_ Reader = (*Registry)(nil)
)

// Config configures a Registry.
type Config struct {
	Membership GroupMembership
	Bus        notify.Bus
	Logger     *logger.GatedLogger
}

// NewRegistry creates a Registry. When a bus is given the registry drops the
// assignments of deleted users.
func NewRegistry(config Config) *Registry {
	log := config.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	r := &Registry{
		roles:      make(map[string]*Role),
		users:      make(map[target]map[string]struct{}),
		groups:     make(map[target]map[string]struct{}),
		membership: config.Membership,
		bus:        config.Bus,
		log:        log.WithSubsystem("role"),
	}
	if r.bus != nil {
		r.unsub = r.bus.Subscribe(notify.TopicUserDeleted, r.onUserDeleted)
	}
	return r
}

// Close removes the registry's bus subscriptions.
func (r *Registry) Close() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

// Register adds a role to the catalogue.
func (r *Registry) Register(role Role) error {
	if role.ID == "" {
		return logical.InvalidRequestf("role id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[role.ID]; exists {
		return logical.Conflictf("role %s already exists", role.ID)
	}
	r.roles[role.ID] = &role
	return nil
}

// GetRole returns a copy of the role with the given ID.
func (r *Registry) GetRole(ctx context.Context, id string) (*Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, logical.NotFoundf("role %s", id)
	}
	out := *role
	return &out, nil
}

// GetRoles resolves every ID under a single lock.
func (r *Registry) GetRoles(ctx context.Context, ids []string) ([]*Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Role, 0, len(ids))
	for _, id := range ids {
		role, ok := r.roles[id]
		if !ok {
			return nil, logical.NotFoundf("role %s", id)
		}
		cp := *role
		out = append(out, &cp)
	}
	return out, nil
}

// ListRoles returns the catalogue sorted by ID.
func (r *Registry) ListRoles() []*Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Role, 0, len(r.roles))
	for _, role := range r.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AssignUser grants roleID to userID on projectID.
func (r *Registry) AssignUser(ctx context.Context, userID, projectID, roleID string) error {
	return r.assign(r.users, target{userID, projectID}, roleID)
}

// AssignGroup grants roleID to every member of groupID on projectID.
func (r *Registry) AssignGroup(ctx context.Context, groupID, projectID, roleID string) error {
	return r.assign(r.groups, target{groupID, projectID}, roleID)
}

func (r *Registry) assign(m map[target]map[string]struct{}, t target, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return logical.NotFoundf("role %s", roleID)
	}
	if m[t] == nil {
		m[t] = make(map[string]struct{})
	}
	m[t][roleID] = struct{}{}
	return nil
}

// UnassignUser revokes a direct assignment and announces the removal for
// the (user, project) pair. The removal stands even if a subscriber fails;
// the subscriber error is returned.
func (r *Registry) UnassignUser(ctx context.Context, userID, projectID, roleID string) error {
	t := target{userID, projectID}
	if err := r.unassign(r.users, t, roleID); err != nil {
		return err
	}
	return r.announce(ctx, []string{userID}, projectID)
}

// UnassignGroup revokes a group assignment and announces the removal for
// every current member of the group.
func (r *Registry) UnassignGroup(ctx context.Context, groupID, projectID, roleID string) error {
	t := target{groupID, projectID}
	if err := r.unassign(r.groups, t, roleID); err != nil {
		return err
	}
	if r.membership == nil {
		return nil
	}
	members, err := r.membership.UsersInGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list members of group %s: %w", groupID, err)
	}
	return r.announce(ctx, members, projectID)
}

func (r *Registry) unassign(m map[target]map[string]struct{}, t target, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := m[t][roleID]; !ok {
		return &logical.RoleAssignmentNotFoundError{RoleID: roleID, ActorID: t.actor, TargetID: t.project}
	}
	delete(m[t], roleID)
	if len(m[t]) == 0 {
		delete(m, t)
	}
	return nil
}

func (r *Registry) announce(ctx context.Context, userIDs []string, projectID string) error {
	if r.bus == nil {
		return nil
	}
	for _, userID := range userIDs {
		r.log.Debug("role assignment removed",
			logger.String("user_id", userID),
			logger.String("project_id", projectID))
		if err := r.bus.Publish(ctx, notify.TopicAssignmentRemoved, notify.NewAssignmentPayload(userID, projectID)); err != nil {
			return fmt.Errorf("assignment removal handlers failed for user %s on project %s: %w", userID, projectID, err)
		}
	}
	return nil
}

// EffectiveRoles returns direct and group-derived role IDs, sorted and
// de-duplicated.
func (r *Registry) EffectiveRoles(ctx context.Context, userID, projectID string) ([]string, error) {
	var groups []string
	if r.membership != nil {
		var err error
		groups, err = r.membership.GroupsForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve groups for user %s: %w", userID, err)
		}
	}

	r.mu.RLock()
	var ids []string
	for id := range r.users[target{userID, projectID}] {
		ids = append(ids, id)
	}
	for _, g := range groups {
		for id := range r.groups[target{g, projectID}] {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	ids = strutil.RemoveDuplicates(ids, false)
	sort.Strings(ids)
	return ids, nil
}

func (r *Registry) onUserDeleted(ctx context.Context, _ string, payload any) error {
	var p notify.UserPayload
	if err := notify.Decode(payload, &p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.users {
		if t.actor == p.ResourceInfo {
			delete(r.users, t)
		}
	}
	return nil
}
