// Package storage opens the run store selected by configuration.
package storage

import (
	"fmt"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/storage/memory"
	"github.com/tjfontaine/polyglot-flow/internal/storage/sqldb"
)

// Storage types accepted in configuration.
const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeNone   = "none"
)

// RunStore is re-exported from core/ports for convenience.
type RunStore = ports.RunStore

// Open returns the store for cfg, or nil for TypeNone.
func Open(cfg config.StorageConfig) (RunStore, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return memory.New(), nil
	case TypeSQLite:
		store, err := sqldb.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case TypeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
