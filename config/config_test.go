package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
log_level  = "debug"
log_format = "json"

storage "file" {
  path        = "/var/lib/appcred"
  bcrypt_cost = 6
}

cache {
  ttl          = "5m"
  num_counters = 10000
  max_cost     = 1000
}

external_auth {
  method            = "kerberos"
  default_domain_id = "corp"
}

token {
  bind = ["kerberos"]
}

audit {
  path         = "/var/log/appcred/audit.log"
  hmac_key     = "s3cret"
  buffer_size  = 10
  flush_period = "2s"
  max_backups  = 3
}

seed {
  domain "Corp" {
    id = "corp"
  }

  role "reader" {
    id = "r-reader"
  }

  group "ops" {
    domain = "Corp"
  }

  user "alice" {
    domain = "Corp"
    groups = ["ops"]
  }

  user "mallory" {
    disabled = true
  }

  assignment {
    user    = "alice"
    project = "p1"
    role    = "reader"
  }

  assignment {
    group   = "ops"
    project = "p2"
    role    = "reader"
  }
}
`

func TestParse_Full(t *testing.T) {
	c, err := Parse("appcred.hcl", []byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "file", c.Storage.Type)
	assert.Equal(t, map[string]string{"path": "/var/lib/appcred"}, c.Storage.Config())
	assert.Equal(t, 6, c.Storage.BcryptCost)

	ttl, err := c.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
	assert.Equal(t, int64(10000), c.Cache.NumCounters)

	assert.Equal(t, "kerberos", c.ExternalAuth.Method)
	assert.Equal(t, "corp", c.ExternalAuth.DefaultDomainID)
	assert.Equal(t, []string{"kerberos"}, c.Token.Bind)

	flush, err := c.AuditFlushPeriod()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, flush)
	assert.Equal(t, "s3cret", c.Audit.HMACKey)

	require.Len(t, c.Seed.Users, 2)
	assert.Equal(t, "alice", c.Seed.Users[0].Name)
	assert.Equal(t, []string{"ops"}, c.Seed.Users[0].Groups)
	assert.True(t, c.Seed.Users[1].Disabled)
	require.Len(t, c.Seed.Assignments, 2)
	assert.Equal(t, "ops", c.Seed.Assignments[1].Group)
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse("empty.hcl", []byte(""))
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "inmem", c.Storage.Type)
	assert.Equal(t, "external", c.ExternalAuth.Method)
	assert.Equal(t, "default", c.ExternalAuth.DefaultDomainID)
	assert.Equal(t, "stdout", c.Audit.Path)
	ttl, err := c.CacheTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)

	assert.Equal(t, c, Default())
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown storage":   `storage "postgres" {}`,
		"file without path": `storage "file" {}`,
		"unknown method":    `external_auth { method = "saml" }`,
		"bad ttl":           `cache { ttl = "forever" }`,
		"bad flush period":  `audit { flush_period = "soon" }`,
		"user and group": `seed {
  assignment {
    user    = "a"
    group   = "b"
    project = "p"
    role    = "r"
  }
}`,
		"neither user nor group": `seed {
  assignment {
    project = "p"
    role    = "r"
  }
}`,
		"unknown attribute": `listener = "tcp"`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.hcl", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appcred.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`storage "inmem" {}`), 0600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "inmem", c.Storage.Type)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
