// Package mysql implements a MySQL-backed storage.Source using database/sql
// and github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"ferc/internal/storage"
)

var dialect = storage.Dialect{
	Name:        "mysql",
	QuoteIdent:  myIdent,
	Placeholder: "?",
}

// Source is a MySQL-backed storage.Source.
type Source struct {
	db *sql.DB
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("mysql", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open validates the DSN, opens a pool and pings it. Both the driver's native
// form ("user:pw@tcp(host:3306)/pudl") and a "mysql://" prefixed form are
// accepted.
func Open(ctx context.Context, location string) (*Source, error) {
	dsn, err := DSN(location)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Source{db: db}, nil
}

// DSN normalizes location into a go-sql-driver DSN with parseTime enabled so
// DATE/DATETIME columns scan as time.Time.
func DSN(location string) (string, error) {
	loc := strings.TrimSpace(location)
	if len(loc) >= len("mysql://") && strings.EqualFold(loc[:len("mysql://")], "mysql://") {
		loc = loc[len("mysql://"):]
	}
	cfg, err := mysql.ParseDSN(loc)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	return storage.QueryDB(ctx, s.db, dialect, table, filterColumn, value)
}

// Close implements storage.Source.
func (s *Source) Close() error { return s.db.Close() }

// myIdent quotes a single identifier segment with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
