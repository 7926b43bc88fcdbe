// Package external trusts an upstream authentication layer (a web server
// module, a Kerberos gateway) and maps the principal it asserts onto a user
// record.
package external

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/stephnangue/appcred/auth"
	"github.com/stephnangue/appcred/identity"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/logical"
)

// Registry names of the resolver variants.
const (
	MethodDefaultDomain = "external"
	MethodDomain        = "external-domain"
	MethodKerberos      = "kerberos"
)

// ErrNotNegotiate is returned by KerberosDomain for any other mechanism.
var ErrNotNegotiate = errors.New("auth_type is not Negotiate")

// Resolver maps an asserted principal onto a user.
type Resolver interface {
	ResolveUser(ctx context.Context, req *auth.Request) (*identity.User, error)
}

// DefaultDomain looks the principal up in the default domain.
type DefaultDomain struct {
	Users           identity.Reader
	DefaultDomainID string
}

func (r *DefaultDomain) ResolveUser(ctx context.Context, req *auth.Request) (*identity.User, error) {
	return r.Users.GetUserByName(ctx, req.RemoteUser, r.DefaultDomainID)
}

// Domain looks the principal up in the asserted domain, falling back to the
// default domain when none is asserted.
type Domain struct {
	Users           identity.Reader
	DefaultDomainID string
}

func (r *Domain) ResolveUser(ctx context.Context, req *auth.Request) (*identity.User, error) {
	domainID := r.DefaultDomainID
	if req.RemoteDomain != "" {
		d, err := r.Users.GetDomainByName(ctx, req.RemoteDomain)
		if err != nil {
			return nil, err
		}
		domainID = d.ID
	}
	return r.Users.GetUserByName(ctx, req.RemoteUser, domainID)
}

// KerberosDomain is Domain restricted to the Negotiate mechanism.
type KerberosDomain struct {
	Domain
}

func (r *KerberosDomain) ResolveUser(ctx context.Context, req *auth.Request) (*identity.User, error) {
	if req.AuthType != "Negotiate" {
		return nil, ErrNotNegotiate
	}
	return r.Domain.ResolveUser(ctx, req)
}

// Config configures a Method.
type Config struct {
	Resolver Resolver
	// Bind lists the token binding types in force, e.g. ["kerberos"].
	Bind   []string
	Logger *logger.GatedLogger
}

// Method is the external authentication method.
type Method struct {
	resolver Resolver
	bind     []string
	log      *logger.GatedLogger
}

var _ auth.Method = (*Method)(nil)

// NewMethod creates a Method.
func NewMethod(config Config) (*Method, error) {
	if config.Resolver == nil {
		return nil, errors.New("external auth requires a resolver")
	}
	log := config.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Method{
		resolver: config.Resolver,
		bind:     config.Bind,
		log:      log.WithSubsystem("auth.external"),
	}, nil
}

// Authenticate resolves the asserted principal. Resolution errors are
// never returned to the caller.
func (m *Method) Authenticate(ctx context.Context, req *auth.Request) (*auth.Response, error) {
	if req == nil || req.RemoteUser == "" {
		return nil, logical.Unauthorized("no authenticated user")
	}

	user, err := m.resolver.ResolveUser(ctx, req)
	if err == nil && !user.Enabled {
		err = errors.New("user is disabled")
	}
	if err != nil {
		m.log.Debug("external user lookup failed",
			logger.String("remote_user", req.RemoteUser),
			logger.Err(err))
		return nil, logical.Unauthorized("unable to look up user")
	}

	data := map[string]any{"user_id": user.ID}
	if strutil.StrListContains(m.bind, "kerberos") && strings.EqualFold(req.AuthType, "negotiate") {
		data["bind"] = map[string]string{"kerberos": user.Name}
	}
	return &auth.Response{Status: true, Data: data}, nil
}

// Register adds the three external variants to reg.
func Register(reg *auth.Registry, users identity.Reader, defaultDomainID string, bind []string, log *logger.GatedLogger) error {
	domain := Domain{Users: users, DefaultDomainID: defaultDomainID}
	resolvers := map[string]Resolver{
		MethodDefaultDomain: &DefaultDomain{Users: users, DefaultDomainID: defaultDomainID},
		MethodDomain:        &domain,
		MethodKerberos:      &KerberosDomain{Domain: domain},
	}
	for name, resolver := range resolvers {
		m, err := NewMethod(Config{Resolver: resolver, Bind: bind, Logger: log})
		if err != nil {
			return err
		}
		if err := reg.Register(name, m); err != nil {
			return err
		}
	}
	return nil
}
