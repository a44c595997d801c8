package state

import (
	"context"
	"fmt"
)

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Options selects and configures a storage backend.
type Options struct {
	// Driver is one of memory, sqlite, sqlite3, postgres. Empty means memory.
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// OpenStore opens the backend named by opts.Driver, migrating SQL schemas as needed.
func OpenStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverSQLite3:
		if opts.Path == "" {
			return nil, fmt.Errorf("storage path is required for driver %q", opts.Driver)
		}
		db, err := OpenWithDriver(opts.Driver, opts.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return db, nil
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// Describe names the backend behind s and, for SQLite, the database file.
func Describe(s Store) (driver, location string) {
	switch st := s.(type) {
	case *DB:
		return st.Driver(), st.Path()
	case *PostgresStore:
		return DriverPostgres, ""
	default:
		return DriverMemory, ""
	}
}
