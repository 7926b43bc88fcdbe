package helpers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stephnangue/appcred/config"
)

// EnvConfig names the environment variable consulted when --config is not
// given.
const EnvConfig = "APPCRED_CONFIG"

// ConfigPath is bound to the root command's --config flag.
var ConfigPath string

// LoadConfig reads the configuration named by --config or APPCRED_CONFIG.
// Without either, the in-memory defaults are used.
func LoadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// Open loads the configuration and builds a System writing logs to stderr
// and stdout audit lines to stdout. Callers must Close it.
func Open(ctx context.Context) (*System, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewSystem(ctx, cfg, Options{})
}

// ResolveFileRef replaces a value prefixed with "@" with the contents of the
// referenced file, so secrets can be passed as --secret=@/path/to/file
// (similar to curl's @ syntax). A single trailing newline is dropped.
func ResolveFileRef(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	data, err := os.ReadFile(value[1:])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", value[1:], err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
