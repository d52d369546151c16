// Package statement extracts FERC financial statements for one reporting
// entity and reshapes them into the fixed presentation order of the
// statement's schema.
//
// Extract is the single parameterized extractor: it reads one table filtered
// on one column and projects the result onto a catalog.Schema. Service layers
// name resolution, source lifecycle, optional period ordering and metrics on
// top of it.
package statement

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ferc/internal/catalog"
	"ferc/internal/storage"
)

// Options tune extraction behaviour. The zero value is permissive and keeps
// source row order.
type Options struct {
	// Strict fails the extraction with ErrSchemaFieldMissing when the source
	// lacks any schema field instead of filling it with nil.
	Strict bool

	// OrderByPeriod sorts rows ascending on the statement's period column
	// after extraction (Service only; nil periods sort last).
	OrderByPeriod bool
}

// Extract reads every row of ref.Table whose ref.FilterColumn equals
// subjectID and returns them projected onto schema.
//
// The source is queried exactly once with subjectID bound as a parameter.
// Zero matching rows yield an empty table, not an error. Rows are never
// dropped or reordered. A schema field absent from the source is filled with
// nil (and recorded in Table.Missing) unless opts.Strict is set. An empty
// result that reports no columns at all has nothing missing.
func Extract(ctx context.Context, src storage.Source, ref catalog.TableRef, subjectID string, schema catalog.Schema, opts Options) (*Table, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject id must not be empty", ErrInvalidFilterValue)
	}
	if schema.Len() == 0 {
		return nil, fmt.Errorf("%w: empty schema for %s", ErrUnknownStatementType, ref.Table)
	}

	rs, err := src.Query(ctx, ref.Table, ref.FilterColumn, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrSourceUnavailable, ref, err)
	}

	t, err := project(rs, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Table, err)
	}
	t.SubjectID = subjectID

	if len(t.Missing) > 0 {
		if opts.Strict {
			return nil, fmt.Errorf("%w: %s lacks %s", ErrSchemaFieldMissing, ref.Table, strings.Join(t.Missing, ", "))
		}
		log.Printf("statement: table=%s subject=%s missing=%d fields=%s",
			ref.Table, subjectID, len(t.Missing), strings.Join(t.Missing, ","))
	}
	return t, nil
}

// project maps a raw RowSet onto schema. Source columns are indexed by name
// (the first occurrence wins); unknown columns are dropped.
func project(rs *storage.RowSet, schema catalog.Schema) (*Table, error) {
	fields := schema.Fields()
	t := &Table{
		Columns: fields,
		Rows:    make([][]any, 0, rs.Len()),
		pos:     make(map[string]int, len(fields)),
	}
	if rs == nil {
		rs = &storage.RowSet{}
	}

	srcPos := make(map[string]int, len(rs.Columns))
	for i, c := range rs.Columns {
		if _, seen := srcPos[c]; !seen {
			srcPos[c] = i
		}
	}

	// A schemaless source (mongo) reports no columns when nothing matched, so
	// field presence is unknown rather than missing.
	unknown := rs.Len() == 0 && len(rs.Columns) == 0

	// from[i] is the source index feeding schema field i, or -1.
	from := make([]int, len(fields))
	for i, f := range fields {
		t.pos[f] = i
		j, ok := srcPos[f]
		if !ok {
			from[i] = -1
			if !unknown {
				t.Missing = append(t.Missing, f)
			}
			continue
		}
		from[i] = j
	}

	for r, src := range rs.Rows {
		if len(src) != len(rs.Columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", r, len(src), len(rs.Columns))
		}
		row := make([]any, len(fields))
		for i, j := range from {
			if j >= 0 {
				row[i] = src[j]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
