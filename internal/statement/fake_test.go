package statement

import (
	"context"
	"fmt"
	"sync"

	"ferc/internal/storage"
)

type queryCall struct {
	table, filterColumn string
	value               any
}

// fakeSource serves in-memory tables and applies the equality filter the
// way a SQL backend would. It is safe for concurrent use.
type fakeSource struct {
	mu       sync.Mutex
	tables   map[string]*storage.RowSet
	queryErr error
	calls    []queryCall
	closed   int
}

func newFakeSource(tables map[string]*storage.RowSet) *fakeSource {
	return &fakeSource{tables: tables}
}

func (f *fakeSource) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, queryCall{table, filterColumn, value})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	rs, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	col := -1
	for i, c := range rs.Columns {
		if c == filterColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("no such column: %s", filterColumn)
	}

	out := &storage.RowSet{Columns: append([]string(nil), rs.Columns...), Rows: [][]any{}}
	for _, row := range rs.Rows {
		if row[col] == value {
			out.Rows = append(out.Rows, append([]any(nil), row...))
		}
	}
	return out, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeOpener hands out one fakeSource and counts opens.
type fakeOpener struct {
	mu      sync.Mutex
	src     *fakeSource
	err     error
	opens   int
	gotKind string
	gotLoc  string
}

func (o *fakeOpener) open(_ context.Context, kind, location string) (storage.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	o.gotKind, o.gotLoc = kind, location
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}
