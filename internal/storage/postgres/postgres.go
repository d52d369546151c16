// Package postgres implements a Postgres-backed storage.Source using pgx v5.
// It is meant for deployments that load the PUDL FERC tables into a shared
// Postgres warehouse instead of reading the SQLite downloads directly.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ferc/internal/storage"
)

// Source is a Postgres-backed storage.Source.
type Source struct {
	pool *pgxpool.Pool
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open creates a pool for the DSN and pings it.
func Open(ctx context.Context, dsn string) (*Source, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Source{pool: pool}, nil
}

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	if strings.TrimSpace(table) == "" || strings.TrimSpace(filterColumn) == "" {
		return nil, fmt.Errorf("postgres: table and filter column are required")
	}

	rows, err := s.pool.Query(ctx, selectEqual(table, filterColumn), value)
	if err != nil {
		return nil, fmt.Errorf("postgres: query %s: %w", table, err)
	}
	defer rows.Close()

	return collect(rows, table)
}

func collect(rows pgx.Rows, table string) (*storage.RowSet, error) {
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	rs := &storage.RowSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan row %d: %w", table, len(rs.Rows), err)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = toScalar(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: iterate: %w", table, err)
	}
	return rs, nil
}

// Close implements storage.Source.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

func selectEqual(table, column string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", pgFQN(table), pgIdent(column))
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "pudl.ferc6_income" to
// "pudl"."ferc6_income".
func pgFQN(name string) string { return storage.QuoteQualified(name, pgIdent) }

// toScalar converts pgx decoded values into RowSet scalars. NUMERIC columns
// arrive as pgtype.Numeric and are reported as float64, which is how the
// XBRL amounts are stored in the SQLite originals.
func toScalar(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		switch {
		case !t.Valid:
			return nil
		case t.NaN:
			return "NaN"
		case t.InfinityModifier == pgtype.Infinity:
			return math.Inf(1)
		case t.InfinityModifier == pgtype.NegativeInfinity:
			return math.Inf(-1)
		}
		return storage.DecimalFloat(t.Int, t.Exp)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return storage.NormalizeValue(v)
	}
}
