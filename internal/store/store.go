// Package store provides storage backends for ReelPipe.
//
// A Store keeps finished submissions, the durable outbox that delivers them
// and the idempotency records used by the HTTP surface. In-flight flows are
// never persisted.
package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// Store is the persistence surface used by the submission pipeline and the API.
type Store interface {
	SubmissionRepo
	OutboxRepo
	DedupRepo
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store type identifiers returned by DetectDSNType.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite3"
	TypePostgres = "postgres"
)

// DetectDSNType guesses the backend from a DSN. URLs and key=value strings
// are Postgres; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case d == "":
		return TypeMemory
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return TypePostgres
	case strings.Contains(d, "host=") || strings.Contains(d, "dbname="):
		return TypePostgres
	default:
		return TypeSQLite
	}
}

// NewStore opens the backend selected by dsn. An empty dsn gives an in-memory store.
func NewStore(dsn string) (Store, error) {
	kind := DetectDSNType(dsn)
	slog.Debug("store.NewStore invoked", "type", kind)
	switch kind {
	case TypeMemory:
		return NewInMemoryStore(), nil
	case TypePostgres:
		s, err := NewPostgresStore(WithPostgresDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	}
}
