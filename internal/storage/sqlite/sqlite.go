// Package sqlite implements a SQLite-backed storage.Source using database/sql
// and the pure-Go modernc.org/sqlite driver. This is the backend for the PUDL
// ferc2_xbrl.sqlite / ferc6_xbrl.sqlite downloads.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ferc/internal/storage"

	_ "modernc.org/sqlite"
)

var dialect = storage.Dialect{
	Name:        "sqlite",
	QuoteIdent:  sqlIdent,
	Placeholder: "?",
}

// Source is a SQLite-backed storage.Source.
type Source struct {
	db *sql.DB
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open opens the database at location and pings it. A bare file path is
// opened read-only; a "file:" URI or ":memory:" is passed through as-is.
func Open(ctx context.Context, location string) (*Source, error) {
	dsn, err := DSN(location)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", location, err)
	}
	return &Source{db: db}, nil
}

// DSN turns a location into a driver DSN.
func DSN(location string) (string, error) {
	loc := strings.TrimSpace(location)
	switch {
	case loc == "":
		return "", fmt.Errorf("sqlite: location must not be empty")
	case loc == ":memory:", strings.HasPrefix(loc, "file:"):
		return loc, nil
	default:
		// mode=ro makes a missing file an error instead of silently creating
		// an empty database.
		return "file:" + uriPathEscaper.Replace(loc) + "?mode=ro", nil
	}
}

// uriPathEscaper percent-encodes the characters that would end the path of
// a SQLite URI filename early. SQLite decodes %HH before opening the file.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	return storage.QueryDB(ctx, s.db, dialect, table, filterColumn, value)
}

// Close implements storage.Source.
func (s *Source) Close() error { return s.db.Close() }

// sqlIdent quotes a single identifier segment for SQLite.
func sqlIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
