// Package backend selects and builds the persistence adapter from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"tally/internal/config"
	"tally/internal/store"
	"tally/internal/store/memory"
	"tally/internal/store/sqlite"
)

// Type names a persistence adapter
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{SQLiteBackend, MemoryBackend}
}

// Open builds the store named by the configuration. The caller owns the
// returned store and must Close it.
func Open(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	backendType := Type(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch backendType {
	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		repo, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Using SQLite backend", "path", cfg.SQLiteDBPath)
		return repo, nil

	default: // MemoryBackend
		logger.Info("Using in-memory backend; data will not survive restarts")
		return memory.New(), nil
	}
}
