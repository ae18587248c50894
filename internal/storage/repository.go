// Package storage persists extraction reports. Backends register themselves
// by kind so callers pick one with a (kind, DSN) pair and depend only on the
// Repository interface.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listingcheck/internal/extract"
)

// Config selects a backend and its connection string.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ReportRecord is one persisted extraction run.
type ReportRecord struct {
	// PageURL identifies the document the report was extracted from.
	PageURL string

	// FetchedAt is when the document was acquired. (PageURL, FetchedAt)
	// is the dedupe key: re-saving the same pair is a no-op, so
	// reprocessing stays idempotent.
	FetchedAt time.Time

	Report *extract.Report
}

// Repository is the backend-agnostic report store.
//
// IMPORTANT: this interface is intentionally minimal. Each backend
// implements the dedupe semantics in its own idiomatic way (Postgres
// ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Treat as "call once" at process
	// shutdown.
	Close()

	// EnsureSchema creates tables as needed, with create-if-not-exists
	// semantics so startup stays idempotent.
	EnsureSchema(ctx context.Context) error

	// SaveReport stores one report and its per-field rows. Saving a
	// (PageURL, FetchedAt) pair that already exists is a silent no-op.
	SaveReport(ctx context.Context, rec ReportRecord) error
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics: fail fast beats ambiguous backend selection.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
