package helpers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stephnangue/appcred/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFileRef(t *testing.T) {
	v, err := ResolveFileRef("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	v, err = ResolveFileRef("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	_, err = ResolveFileRef("@" + filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	ConfigPath = ""
	t.Setenv(EnvConfig, "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "inmem", cfg.Storage.Type)

	path := filepath.Join(t.TempDir(), "appcred.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o600))
	t.Setenv(EnvConfig, path)
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	ConfigPath = filepath.Join(t.TempDir(), "missing.hcl")
	defer func() { ConfigPath = "" }()
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestResolveRoles(t *testing.T) {
	reg := role.NewRegistry(role.Config{})
	require.NoError(t, reg.Register(role.Role{ID: "r1", Name: "member"}))
	require.NoError(t, reg.Register(role.Role{ID: "r2", Name: "dup"}))
	require.NoError(t, reg.Register(role.Role{ID: "r3", Name: "dup"}))
	ctx := context.Background()

	ids, err := ResolveRoles(ctx, reg, []string{"member", "r2", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "unknown"}, ids)

	_, err = ResolveRoles(ctx, reg, []string{"dup"})
	assert.ErrorContains(t, err, "ambiguous")

	ids, err = ResolveRoles(ctx, reg, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPrintMapAsTable(t *testing.T) {
	var buf bytes.Buffer
	PrintMapAsTable(&buf, map[string]any{"b": 2, "a": "one"})
	assert.Contains(t, buf.String(), "one")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("one")), bytes.Index(buf.Bytes(), []byte("2")))

	buf.Reset()
	PrintTable(&buf, []string{"ID"}, nil)
	assert.Equal(t, "No data to display\n", buf.String())
}
