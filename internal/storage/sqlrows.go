package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Dialect captures the few SQL differences between database/sql backends:
// identifier quoting and the first positional placeholder.
type Dialect struct {
	Name        string
	QuoteIdent  func(string) string
	Placeholder string
}

// SelectEqual builds "SELECT * FROM <table> WHERE <column> = <placeholder>".
// table may be schema-qualified ("main.t", "dbo.t"); each segment is quoted.
func (d Dialect) SelectEqual(table, column string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		QuoteQualified(table, d.QuoteIdent), d.QuoteIdent(column), d.Placeholder)
}

// QuoteQualified quotes every dot-separated segment of name with quote.
func QuoteQualified(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// QueryDB runs the equality-filtered select against db and scans the result.
// The cursor is always closed before returning.
func QueryDB(ctx context.Context, db *sql.DB, d Dialect, table, filterColumn string, value any) (*RowSet, error) {
	if strings.TrimSpace(table) == "" || strings.TrimSpace(filterColumn) == "" {
		return nil, fmt.Errorf("%s: table and filter column are required", d.Name)
	}
	rows, err := db.QueryContext(ctx, d.SelectEqual(table, filterColumn), value)
	if err != nil {
		return nil, fmt.Errorf("%s: query %s: %w", d.Name, table, err)
	}
	defer rows.Close()

	rs, err := ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", d.Name, table, err)
	}
	return rs, nil
}

// ScanRows drains rows into a RowSet, normalizing driver values with
// NormalizeValue. The caller still owns rows and must close it.
func ScanRows(rows *sql.Rows) (*RowSet, error) {
	return ScanRowsWith(rows, NormalizeValue)
}

// ScanRowsWith is ScanRows with a backend-specific value conversion.
func ScanRowsWith(rows *sql.Rows, conv func(any) any) (*RowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	rs := &RowSet{Columns: cols, Rows: [][]any{}}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rs.Rows), err)
		}
		for i, v := range values {
			values[i] = conv(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return rs, nil
}

// uintValue keeps unsigned values exact: int64 when they fit, otherwise the
// decimal text.
func uintValue(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

// NormalizeValue maps driver-specific scalar types onto the small set RowSet
// promises: string, int64, float64, bool, time.Time, nil.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case string, int64, float64, bool:
		return t
	case time.Time:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint:
		return uintValue(uint64(t))
	case uint64:
		return uintValue(t)
	case float32:
		return float64(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
