// Package physical selects the storage backend application credentials are
// persisted to.
package physical

import (
	"fmt"
	"sort"

	"github.com/openbao/openbao/sdk/v2/physical"
	"github.com/openbao/openbao/sdk/v2/physical/file"
	"github.com/openbao/openbao/sdk/v2/physical/inmem"
	"github.com/stephnangue/appcred/logger"
)

// Factory is the factory function to create a storage.
type Factory func(config map[string]string, log *logger.GatedLogger) (physical.Backend, error)

// Factories lists the built-in storage types.
var Factories = map[string]Factory{
	"inmem": func(config map[string]string, log *logger.GatedLogger) (physical.Backend, error) {
		return inmem.NewInmem(config, logger.NewHCLogAdapter(log))
	},
	"file": func(config map[string]string, log *logger.GatedLogger) (physical.Backend, error) {
		return file.NewFileBackend(config, logger.NewHCLogAdapter(log))
	},
}

// New creates the storage backend registered under storageType.
func New(storageType string, config map[string]string, log *logger.GatedLogger) (physical.Backend, error) {
	factory, ok := Factories[storageType]
	if !ok {
		return nil, fmt.Errorf("unknown storage type %q, expected one of %v", storageType, Types())
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	backend, err := factory(config, log.WithSubsystem("storage."+storageType))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageType, err)
	}
	return backend, nil
}

// Types returns the registered storage types in name order.
func Types() []string {
	out := make([]string, 0, len(Factories))
	for name := range Factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
