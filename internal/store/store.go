// Package store persists the preferences and timer records (each under
// a single named key) and the attempt log. Backends: Postgres (pgx),
// SQLite, and an in-memory store for tests and throwaway runs.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/table-sniper/internal/timer"
)

const (
	keyPreferences = "preferences"
	keyTimer       = "timer"
)

// Store is the full persistence surface: the scheduler's narrow
// interface plus lifecycle.
type Store interface {
	timer.Store
	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend from the DSN: "memory" for the in-memory
// store, postgres://... for pgx, anything else is treated as a SQLite
// file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(dsn)
	}
}

func notFound(key string) error {
	return fmt.Errorf("%w: key %q", timer.ErrNotFound, key)
}
