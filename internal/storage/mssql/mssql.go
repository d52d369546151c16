// Package mssql implements a Microsoft SQL Server storage.Source using
// database/sql and github.com/microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"ferc/internal/storage"
)

var dialect = storage.Dialect{
	Name:        "mssql",
	QuoteIdent:  msIdent,
	Placeholder: "@p1",
}

// Source is an MSSQL-backed storage.Source.
type Source struct {
	db *sql.DB
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open validates the DSN, opens a pool and pings it.
func Open(ctx context.Context, dsn string) (*Source, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Source{db: db}, nil
}

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	return storage.QueryDB(ctx, s.db, dialect, table, filterColumn, value)
}

// Close implements storage.Source.
func (s *Source) Close() error { return s.db.Close() }

// msIdent quotes a single identifier segment with brackets.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
