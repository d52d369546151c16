// Package duckdb implements a DuckDB-backed storage.Source. It reads either a
// DuckDB database file (PUDL publishes pudl.duckdb) or a directory of
// per-table Parquet files, one <table>.parquet per statement table.
//
//	pudl.duckdb                     database file, opened read-only
//	duckdb:///data/pudl.duckdb      same, as a URI
//	parquet:///data/pudl/parquet    Parquet directory, in-memory engine
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"ferc/internal/storage"
)

var dialect = storage.Dialect{
	Name:        "duckdb",
	QuoteIdent:  duckIdent,
	Placeholder: "?",
}

// Source is a DuckDB-backed storage.Source. When parquetDir is set, tables
// resolve to read_parquet() over files in that directory.
type Source struct {
	db         *sql.DB
	parquetDir string
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("duckdb", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open opens location (see the package doc for accepted forms) and pings the
// engine.
func Open(ctx context.Context, location string) (*Source, error) {
	dsn, dir, err := parseLocation(location)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping %s: %w", location, err)
	}
	return &Source{db: db, parquetDir: dir}, nil
}

// parseLocation returns the driver DSN and, for Parquet locations, the
// directory holding the table files.
func parseLocation(location string) (dsn, parquetDir string, err error) {
	loc := strings.TrimSpace(location)
	lower := strings.ToLower(loc)
	switch {
	case loc == "":
		return "", "", fmt.Errorf("duckdb: location must not be empty")
	case strings.HasPrefix(lower, "parquet://"):
		dir := loc[len("parquet://"):]
		if dir == "" {
			return "", "", fmt.Errorf("duckdb: parquet location %q has no directory", location)
		}
		return "", filepath.Clean(dir), nil
	case strings.HasPrefix(lower, "duckdb://"):
		loc = loc[len("duckdb://"):]
		if loc == "" {
			return "", "", fmt.Errorf("duckdb: location %q has no path", location)
		}
	}
	if strings.Contains(loc, "?") {
		return loc, "", nil
	}
	return loc + "?access_mode=read_only", "", nil
}

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	if strings.TrimSpace(table) == "" || strings.TrimSpace(filterColumn) == "" {
		return nil, fmt.Errorf("duckdb: table and filter column are required")
	}
	rows, err := s.db.QueryContext(ctx, s.selectEqual(table, filterColumn), value)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query %s: %w", table, err)
	}
	defer rows.Close()

	rs, err := storage.ScanRowsWith(rows, toScalar)
	if err != nil {
		return nil, fmt.Errorf("duckdb: %s: %w", table, err)
	}
	return rs, nil
}

func (s *Source) selectEqual(table, column string) string {
	if s.parquetDir == "" {
		return dialect.SelectEqual(table, column)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		parquetScan(s.parquetDir, table), duckIdent(column))
}

// Close implements storage.Source.
func (s *Source) Close() error { return s.db.Close() }

// parquetScan builds read_parquet('<dir>/<table>.parquet') with the path
// quoted as a SQL string literal.
func parquetScan(dir, table string) string {
	path := filepath.Join(dir, table+".parquet")
	return "read_parquet('" + strings.ReplaceAll(path, "'", "''") + "')"
}

// duckIdent quotes a single identifier segment for DuckDB.
func duckIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// toScalar converts DuckDB driver values into RowSet scalars. DECIMAL columns
// are reported as float64 like every other backend.
func toScalar(v any) any {
	switch t := v.(type) {
	case duckdb.Decimal:
		return storage.DecimalFloat(t.Value, -int32(t.Scale))
	case *big.Int:
		if t == nil {
			return nil
		}
		if t.IsInt64() {
			return t.Int64()
		}
		return t.String()
	default:
		return storage.NormalizeValue(v)
	}
}
