// internal/recorder/factory.go
package recorder

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/recorder/memory"
	"github.com/davidl09/car-sim/internal/recorder/sqlitestore"
)

// NewBackend creates a recorder backend based on configuration.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "none", "":
		return Nop{}, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestore.New(cfg.SQLite, log)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
