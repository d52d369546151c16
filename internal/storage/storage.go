// Package storage defines the read-only storage collaborator used by the
// statement extractor and a small factory that maps a backend kind
// ("sqlite", "postgres", ...) to a constructor.
//
// Concrete backends live in subpackages and register themselves from init.
// Import the wiring package ferc/internal/storage/all (usually as a blank
// import in main) to make every built-in backend available:
//
//	import _ "ferc/internal/storage/all"
//
//	src, err := storage.Open(ctx, "", "ferc6_xbrl.sqlite")
//	if err != nil { ... }
//	defer src.Close()
//	rs, err := src.Query(ctx, "income_statement_114_duration", "entity_id", "C000123")
//
// The rest of the application depends only on Source and never imports a
// database driver directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownKind is returned by Open when no backend is registered under the
// requested kind.
var ErrUnknownKind = errors.New("storage: unknown backend kind")

// RowSet is the raw, unordered result of one filtered read. Columns are in the
// order the backend reported them; every row is aligned to Columns.
//
// Values are plain scalars: string, int64, float64, bool, time.Time or nil.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Len is the number of rows.
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Source is an open handle to a filings database. Query performs an equality
// filtered read of one table and must release any cursor before returning.
// Implementations must be safe for concurrent Query calls.
type Source interface {
	Query(ctx context.Context, table, filterColumn string, value any) (*RowSet, error)
	Close() error
}

// Factory opens a Source for a backend-specific location (file path, DSN,
// URI). Factories should fail fast when the location is unreachable.
type Factory func(ctx context.Context, location string) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty kind,
// a nil factory, or a duplicate registration, mirroring database/sql.Register.
func Register(kind string, f Factory) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		panic("storage: Register with empty kind")
	}
	if f == nil {
		panic("storage: Register factory is nil for " + kind)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("storage: Register called twice for " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open opens a Source. When kind is empty it is inferred from location (see
// InferKind).
func Open(ctx context.Context, kind, location string) (Source, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("storage: location must not be empty")
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = InferKind(location)
	}

	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownKind, kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, location)
}

// InferKind guesses the backend from a location's scheme. Anything without a
// recognised scheme is treated as a SQLite file path, which is how PUDL ships
// the FERC XBRL databases.
func InferKind(location string) string {
	l := strings.ToLower(strings.TrimSpace(location))
	switch {
	case strings.HasPrefix(l, "postgres://"), strings.HasPrefix(l, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(l, "mysql://"):
		return "mysql"
	case strings.HasPrefix(l, "sqlserver://"):
		return "mssql"
	case strings.HasPrefix(l, "mongodb://"), strings.HasPrefix(l, "mongodb+srv://"):
		return "mongo"
	case strings.HasPrefix(l, "duckdb://"), strings.HasPrefix(l, "parquet://"), strings.HasSuffix(l, ".duckdb"):
		return "duckdb"
	default:
		return "sqlite"
	}
}
