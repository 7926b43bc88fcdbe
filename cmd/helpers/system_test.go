package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stephnangue/appcred/auth"
	"github.com/stephnangue/appcred/config"
	"github.com/stephnangue/appcred/credential"
	"github.com/stephnangue/appcred/helper"
	"github.com/stephnangue/appcred/identity"
	"github.com/stephnangue/appcred/logical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `
seed {
  domain "corp" {}

  group "ops" {}

  user "alice" {
    groups = ["ops"]
  }
  user "bob" {
    domain = "corp"
  }
  user "carol" {
    disabled = true
  }

  role "member" {
    description = "Project member"
  }
  role "reader" {}

  assignment {
    user    = "alice"
    project = "p1"
    role    = "member"
  }
  assignment {
    group   = "ops"
    project = "p1"
    role    = "reader"
  }
  assignment {
    user    = "bob"
    project = "p2"
    role    = "member"
  }
}
`

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	src := fmt.Sprintf(`
log_level = "error"

storage "file" {
  path        = %q
  bcrypt_cost = 4
}

%s
%s`, t.TempDir(), extra, testSeed)
	cfg, err := config.Parse("test.hcl", []byte(src))
	require.NoError(t, err)
	return cfg
}

func newTestSystem(t *testing.T, cfg *config.Config, audit io.Writer) *System {
	t.Helper()
	sys, err := NewSystem(context.Background(), cfg, Options{LogOutput: io.Discard, AuditOutput: audit})
	require.NoError(t, err)
	return sys
}

func TestNewSystem_Defaults(t *testing.T) {
	var audit bytes.Buffer
	sys, err := NewSystem(context.Background(), nil, Options{LogOutput: io.Discard, AuditOutput: &audit})
	require.NoError(t, err)
	defer sys.Close()

	assert.Equal(t, "inmem", sys.Config.Storage.Type)
	assert.Equal(t, []string{"external", "external-domain", "kerberos"}, sys.Auth.Names())
	assert.Empty(t, sys.Roles.ListRoles())
}

func TestNewSystem_SeedsStableIdentities(t *testing.T) {
	sys := newTestSystem(t, testConfig(t, ""), io.Discard)
	defer sys.Close()
	ctx := context.Background()

	alice, err := sys.Identity.GetUserByName(ctx, "alice", identity.DefaultDomainID)
	require.NoError(t, err)
	assert.Equal(t, helper.StableID("user", identity.DefaultDomainID, "alice"), alice.ID)
	assert.True(t, alice.Enabled)

	carol, err := sys.Identity.GetUserByName(ctx, "carol", identity.DefaultDomainID)
	require.NoError(t, err)
	assert.False(t, carol.Enabled)

	corp, err := sys.Identity.GetDomainByName(ctx, "corp")
	require.NoError(t, err)
	bob, err := sys.Identity.GetUserByName(ctx, "bob", corp.ID)
	require.NoError(t, err)

	member := helper.StableID("role", "member")
	reader := helper.StableID("role", "reader")

	roles, err := sys.Roles.EffectiveRoles(ctx, alice.ID, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{member, reader}, roles)

	roles, err = sys.Roles.EffectiveRoles(ctx, bob.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{member}, roles)
}

func TestSystem_CredentialLifecycle(t *testing.T) {
	var audit bytes.Buffer
	cfg := testConfig(t, `
audit {
  hmac_key = "test-key"
}`)
	ctx := context.Background()

	sys := newTestSystem(t, cfg, &audit)
	alice, err := ResolveUser(ctx, sys.Identity, "alice", "")
	require.NoError(t, err)
	roles, err := ResolveRoles(ctx, sys.Roles, []string{"member", "reader"})
	require.NoError(t, err)

	view, err := sys.Credentials.Create(ctx, &credential.CreateRequest{
		Name:      "ci",
		UserID:    alice.ID,
		ProjectID: "p1",
		Roles:     roles,
	}, "tester")
	require.NoError(t, err)
	require.NotEmpty(t, view.Secret)
	assert.Equal(t, []string{"member", "reader"}, []string{view.Roles[0].Name, view.Roles[1].Name})
	require.NoError(t, sys.Close())

	// A second run over the same storage still knows the credential.
	sys = newTestSystem(t, cfg, &audit)
	defer sys.Close()

	require.NoError(t, sys.Credentials.Authenticate(ctx, view.ID, view.Secret))
	got, err := sys.Credentials.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Secret)
	assert.Equal(t, alice.ID, got.UserID)

	// Losing the direct assignment revokes the credential.
	require.NoError(t, sys.Roles.UnassignUser(ctx, alice.ID, "p1", roles[0]))
	_, err = sys.Credentials.Get(ctx, view.ID)
	assert.ErrorIs(t, err, logical.ErrNotFound)
	assert.ErrorIs(t, sys.Credentials.Authenticate(ctx, view.ID, view.Secret), logical.ErrUnauthorized)

	require.NoError(t, sys.Close())
	lines := strings.Split(strings.TrimSpace(audit.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"action":"created"`)
	assert.Contains(t, lines[0], `"initiator":"hmac-sha256:`)
	assert.NotContains(t, lines[0], "tester")
}

func TestSystem_UserLifecycleRevokes(t *testing.T) {
	ctx := context.Background()
	sys := newTestSystem(t, testConfig(t, ""), io.Discard)
	defer sys.Close()

	alice, err := ResolveUser(ctx, sys.Identity, "alice", "")
	require.NoError(t, err)
	bob, err := ResolveUser(ctx, sys.Identity, "bob", "corp")
	require.NoError(t, err)

	create := func(userID, project, name string) *credential.View {
		v, err := sys.Credentials.Create(ctx, &credential.CreateRequest{Name: name, UserID: userID, ProjectID: project}, "tester")
		require.NoError(t, err)
		return v
	}
	a := create(alice.ID, "p1", "a")
	b := create(bob.ID, "p2", "b")

	require.NoError(t, sys.Identity.DisableUser(ctx, alice.ID))
	_, err = sys.Credentials.Get(ctx, a.ID)
	assert.ErrorIs(t, err, logical.ErrNotFound)

	_, err = sys.Credentials.Get(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, sys.Identity.DeleteUser(ctx, bob.ID))
	_, err = sys.Credentials.Get(ctx, b.ID)
	assert.ErrorIs(t, err, logical.ErrNotFound)
}

func TestSystem_CredentialIDsAreSingleSegments(t *testing.T) {
	ctx := context.Background()
	sys := newTestSystem(t, testConfig(t, ""), io.Discard)
	defer sys.Close()

	bob, err := ResolveUser(ctx, sys.Identity, "bob", "corp")
	require.NoError(t, err)

	for _, req := range []*credential.CreateRequest{
		{Name: "evil", UserID: bob.ID, ProjectID: "p2/evil"},
		{Name: "orphan", UserID: bob.ID, ProjectID: "p2", ID: "a/b"},
	} {
		_, err := sys.Credentials.Create(ctx, req, "tester")
		assert.ErrorIs(t, err, logical.ErrInvalidRequest)
	}
	views, err := sys.Credentials.List(ctx, bob.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, views)

	v, err := sys.Credentials.Create(ctx, &credential.CreateRequest{Name: "ci", UserID: bob.ID, ProjectID: "p2"}, "tester")
	require.NoError(t, err)
	require.NoError(t, sys.Identity.DeleteUser(ctx, bob.ID))
	assert.ErrorIs(t, sys.Credentials.Authenticate(ctx, v.ID, v.Secret), logical.ErrUnauthorized)
}

func TestSystem_Login(t *testing.T) {
	ctx := context.Background()
	sys := newTestSystem(t, testConfig(t, `
external_auth {
  method = "kerberos"
}
token {
  bind = ["kerberos"]
}`), io.Discard)
	defer sys.Close()

	resp, err := sys.Login(ctx, &auth.Request{RemoteUser: "bob", RemoteDomain: "corp", AuthType: "Negotiate"})
	require.NoError(t, err)
	bob, err := ResolveUser(ctx, sys.Identity, "bob", "corp")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, resp.UserID())
	assert.Equal(t, map[string]string{"kerberos": "bob"}, resp.Data["bind"])

	_, err = sys.Login(ctx, &auth.Request{RemoteUser: "bob", RemoteDomain: "corp", AuthType: "Basic"})
	assert.ErrorIs(t, err, logical.ErrUnauthorized)

	_, err = sys.Login(ctx, &auth.Request{RemoteUser: "carol", AuthType: "Negotiate"})
	assert.ErrorIs(t, err, logical.ErrUnauthorized)
}

func TestSystem_FileAuditSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	sys := newTestSystem(t, testConfig(t, fmt.Sprintf(`
audit {
  path         = %q
  buffer_size  = 10
  flush_period = "1h"
  omit_fields  = ["initiator"]
}`, path)), io.Discard)

	alice, err := ResolveUser(ctx, sys.Identity, "alice", "")
	require.NoError(t, err)
	v, err := sys.Credentials.Create(ctx, &credential.CreateRequest{Name: "ci", UserID: alice.ID, ProjectID: "p1"}, "tester")
	require.NoError(t, err)
	require.NoError(t, sys.Credentials.Delete(ctx, v.ID, "tester"))

	// Buffered entries reach the file on Close.
	require.NoError(t, sys.Close())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	data := string(raw)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, data, `"action":"deleted"`)
	assert.NotContains(t, data, "tester")
}

func TestNewSystem_BadSeed(t *testing.T) {
	cfg, err := config.Parse("bad.hcl", []byte(`
seed {
  assignment {
    user    = "ghost"
    project = "p1"
    role    = "member"
  }
}`))
	require.NoError(t, err)

	_, err = NewSystem(context.Background(), cfg, Options{LogOutput: io.Discard, AuditOutput: io.Discard})
	assert.ErrorContains(t, err, "failed to load seed")
}
