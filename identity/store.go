// Package identity keeps users, domains and groups and announces user
// lifecycle changes on the event bus.
package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stephnangue/appcred/helper"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
	"github.com/stephnangue/appcred/notify"
)

// DefaultDomainID is the ID of the domain created by NewStore.
const DefaultDomainID = "default"

type Domain struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DomainID string `json:"domain_id"`
	Enabled  bool   `json:"enabled"`
}

type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DomainID string `json:"domain_id"`
}

// Reader is the lookup surface used by authentication plugins.
type Reader interface {
	GetUserByName(ctx context.Context, name, domainID string) (*User, error)
	GetDomainByName(ctx context.Context, name string) (*Domain, error)
}

// Store is an in-process identity backend.
type Store struct {
	mu      sync.RWMutex
	domains map[string]*Domain
	users   map[string]*User
	groups  map[string]*Group
	members map[string]map[string]struct{} // group ID -> user IDs

	bus notify.Bus
	log *logger.GatedLogger
}

var _ Reader = (*Store)(nil)

// NewStore creates a Store holding only the default domain. Lifecycle
// events are published on bus when it is non-nil.
func NewStore(bus notify.Bus, log *logger.GatedLogger) *Store {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Store{
		domains: map[string]*Domain{
			DefaultDomainID: {ID: DefaultDomainID, Name: "Default", Enabled: true},
		},
		users:   make(map[string]*User),
		groups:  make(map[string]*Group),
		members: make(map[string]map[string]struct{}),
		bus:     bus,
		log:     log.WithSubsystem("identity"),
	}
}

// CreateDomain adds a domain. Names are unique.
func (s *Store) CreateDomain(d Domain) (*Domain, error) {
	if d.Name == "" {
		return nil, logical.InvalidRequestf("domain name is required")
	}
	if d.ID == "" {
		d.ID = helper.GenerateID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if existing.ID == d.ID || existing.Name == d.Name {
			return nil, logical.Conflictf("domain %s already exists", d.Name)
		}
	}
	s.domains[d.ID] = &d
	out := d
	return &out, nil
}

// GetDomainByName resolves a domain by its unique name.
func (s *Store) GetDomainByName(ctx context.Context, name string) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.Name == name {
			out := *d
			return &out, nil
		}
	}
	return nil, logical.NotFoundf("domain %s", name)
}

// CreateUser adds a user to an existing domain. Names are unique per domain.
func (s *Store) CreateUser(u User) (*User, error) {
	if u.Name == "" {
		return nil, logical.InvalidRequestf("user name is required")
	}
	if u.DomainID == "" {
		u.DomainID = DefaultDomainID
	}
	if u.ID == "" {
		u.ID = helper.GenerateID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[u.DomainID]; !ok {
		return nil, logical.NotFoundf("domain %s", u.DomainID)
	}
	for _, existing := range s.users {
		if existing.ID == u.ID || (existing.Name == u.Name && existing.DomainID == u.DomainID) {
			return nil, logical.Conflictf("user %s already exists in domain %s", u.Name, u.DomainID)
		}
	}
	s.users[u.ID] = &u
	out := u
	return &out, nil
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, logical.NotFoundf("user %s", id)
	}
	out := *u
	return &out, nil
}

// GetUserByName resolves a user name within a domain.
func (s *Store) GetUserByName(ctx context.Context, name, domainID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name && u.DomainID == domainID {
			out := *u
			return &out, nil
		}
	}
	return nil, logical.NotFoundf("user %s in domain %s", name, domainID)
}

// DisableUser marks a user disabled and publishes TopicUserDisabled.
func (s *Store) DisableUser(ctx context.Context, id string) error {
	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		u.Enabled = false
	}
	s.mu.Unlock()
	if !ok {
		return logical.NotFoundf("user %s", id)
	}
	return s.publish(ctx, notify.TopicUserDisabled, id)
}

// DeleteUser removes a user and its group memberships and publishes
// TopicUserDeleted.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.users[id]
	if ok {
		delete(s.users, id)
		for _, m := range s.members {
			delete(m, id)
		}
	}
	s.mu.Unlock()
	if !ok {
		return logical.NotFoundf("user %s", id)
	}
	return s.publish(ctx, notify.TopicUserDeleted, id)
}

func (s *Store) publish(ctx context.Context, topic, userID string) error {
	s.log.Debug("publishing user event", logger.String("topic", topic), logger.String("user_id", userID))
	if s.bus == nil {
		return nil
	}
	if err := s.bus.Publish(ctx, topic, notify.NewUserPayload(userID)); err != nil {
		return fmt.Errorf("%s handlers failed for user %s: %w", topic, userID, err)
	}
	return nil
}

// CreateGroup adds a group to an existing domain.
func (s *Store) CreateGroup(g Group) (*Group, error) {
	if g.Name == "" {
		return nil, logical.InvalidRequestf("group name is required")
	}
	if g.DomainID == "" {
		g.DomainID = DefaultDomainID
	}
	if g.ID == "" {
		g.ID = helper.GenerateID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[g.DomainID]; !ok {
		return nil, logical.NotFoundf("domain %s", g.DomainID)
	}
	if _, ok := s.groups[g.ID]; ok {
		return nil, logical.Conflictf("group %s already exists", g.ID)
	}
	s.groups[g.ID] = &g
	out := g
	return &out, nil
}

// AddUserToGroup records group membership.
func (s *Store) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return logical.NotFoundf("user %s", userID)
	}
	if _, ok := s.groups[groupID]; !ok {
		return logical.NotFoundf("group %s", groupID)
	}
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[string]struct{})
	}
	s.members[groupID][userID] = struct{}{}
	return nil
}

// GroupsForUser returns the sorted IDs of the groups userID belongs to.
func (s *Store) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for gid, m := range s.members {
		if _, ok := m[userID]; ok {
			out = append(out, gid)
		}
	}
	sort.Strings(out)
	return out, nil
}

// UsersInGroup returns the sorted IDs of the members of groupID.
func (s *Store) UsersInGroup(ctx context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, logical.NotFoundf("group %s", groupID)
	}
	out := make([]string, 0, len(s.members[groupID]))
	for uid := range s.members[groupID] {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}
