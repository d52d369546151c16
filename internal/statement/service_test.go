package statement

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ferc/internal/catalog"
	"ferc/internal/storage"
	_ "ferc/internal/storage/sqlite"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return c
}

func form6Tables() map[string]*storage.RowSet {
	return map[string]*storage.RowSet{
		"income_statement_114_duration": {
			Columns: []string{"entity_id", "end_date", "operating_revenues", "net_income_loss", "report_year"},
			Rows: [][]any{
				{"C1", "2022-12-31", 900.0, 120.0, int64(2022)},
				{"C2", "2022-12-31", 50.0, 5.0, int64(2022)},
				{"C1", "2021-12-31", 800.0, 100.0, int64(2021)},
			},
		},
		"comparative_balance_sheet_110_instant": {
			Columns: []string{"entity_id", "date", "cash", "total_assets"},
			Rows: [][]any{
				{"C1", "2022-12-31", 10.0, 1000.0},
			},
		},
		"statement_of_cash_flows_120_duration": {
			Columns: []string{"entity_id", "end_date", "net_income_loss"},
			Rows:    [][]any{},
		},
	}
}

func newTestService(t *testing.T, opts Options, op *fakeOpener) *Service {
	t.Helper()
	svc, err := NewService(defaultCatalog(t), opts, op.open)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewService_RequiresCatalog(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil, Options{}, nil); err == nil {
		t.Fatal("NewService(nil catalog): want error")
	}
}

func TestExtractStatement(t *testing.T) {
	t.Parallel()

	op := &fakeOpener{src: newFakeSource(form6Tables())}
	svc := newTestService(t, Options{}, op)

	tbl, err := svc.ExtractStatement(context.Background(), Request{
		Location:  "ferc6_xbrl.sqlite",
		Form:      6,
		Statement: "Income Statement",
		SubjectID: "C1",
	})
	if err != nil {
		t.Fatalf("ExtractStatement: %v", err)
	}

	schema, _ := svc.Catalog().SchemaFor("income_statement", 6)
	if diff := cmp.Diff(schema.Fields(), tbl.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.Form != 6 || tbl.Statement != "income_statement" || tbl.SubjectID != "C1" {
		t.Fatalf("table identity = %d/%s/%s", tbl.Form, tbl.Statement, tbl.SubjectID)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if v, _ := tbl.Value(0, "end_date"); v != "2022-12-31" {
		t.Fatalf("first row end_date = %v, want source order (2022 first)", v)
	}
	if v, _ := tbl.Value(1, "net_income_loss"); v != 100.0 {
		t.Fatalf("second row net_income_loss = %v, want 100", v)
	}
	if _, ok := tbl.Value(0, "report_year"); ok {
		t.Fatal("non-schema column report_year leaked into output")
	}
	if len(tbl.Missing) == 0 {
		t.Fatal("Missing is empty; the fake table lacks most schema fields")
	}

	if op.opens != 1 || op.gotLoc != "ferc6_xbrl.sqlite" {
		t.Fatalf("opens=%d location=%q", op.opens, op.gotLoc)
	}
	if op.src.closed != 1 {
		t.Fatalf("source closed %d times, want 1", op.src.closed)
	}
	want := queryCall{"income_statement_114_duration", "entity_id", "C1"}
	if len(op.src.calls) != 1 || op.src.calls[0] != want {
		t.Fatalf("queries = %+v, want [%+v]", op.src.calls, want)
	}
}

func TestExtractStatement_TableOverride(t *testing.T) {
	t.Parallel()

	tables := form6Tables()
	tables["income_statement_114_duration_2023"] = &storage.RowSet{
		Columns: []string{"entity_id", "end_date"},
		Rows:    [][]any{{"C1", "2023-12-31"}},
	}
	op := &fakeOpener{src: newFakeSource(tables)}
	svc := newTestService(t, Options{}, op)

	tbl, err := svc.ExtractStatement(context.Background(), Request{
		Location:  "x.sqlite",
		Form:      6,
		Statement: "income statement",
		SubjectID: "C1",
		Table:     "income_statement_114_duration_2023",
	})
	if err != nil {
		t.Fatalf("ExtractStatement: %v", err)
	}
	if tbl.Len() != 1 || op.src.calls[0].table != "income_statement_114_duration_2023" || op.src.calls[0].filterColumn != "entity_id" {
		t.Fatalf("override not applied: rows=%d calls=%+v", tbl.Len(), op.src.calls)
	}
}

func TestExtractStatement_OrderByPeriod(t *testing.T) {
	t.Parallel()

	op := &fakeOpener{src: newFakeSource(form6Tables())}
	svc := newTestService(t, Options{OrderByPeriod: true}, op)

	tbl, err := svc.ExtractStatement(context.Background(), Request{
		Location: "x.sqlite", Form: 6, Statement: "income_statement", SubjectID: "C1",
	})
	if err != nil {
		t.Fatalf("ExtractStatement: %v", err)
	}
	var got []any
	for i := 0; i < tbl.Len(); i++ {
		v, _ := tbl.Value(i, "end_date")
		got = append(got, v)
	}
	if diff := cmp.Diff([]any{"2021-12-31", "2022-12-31"}, got); diff != "" {
		t.Fatalf("period order mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractStatement_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")

	tests := []struct {
		name      string
		req       Request
		openErr   error
		queryErr  error
		strict    bool
		want      error
		wantOpens int
		wantStmt  string
	}{
		{
			name: "blank subject",
			req:  Request{Location: "x", Form: 6, Statement: "income statement", SubjectID: " "},
			want: ErrInvalidFilterValue, wantOpens: 0, wantStmt: "income statement",
		},
		{
			name: "unsupported statement",
			req:  Request{Location: "x", Form: 2, Statement: "nonexistent statement", SubjectID: "C1"},
			want: ErrUnsupportedStatement, wantOpens: 0, wantStmt: "nonexistent statement",
		},
		{
			name: "unknown form",
			req:  Request{Location: "x", Form: 1, Statement: "income statement", SubjectID: "C1"},
			want: ErrUnsupportedStatement, wantOpens: 0, wantStmt: "income statement",
		},
		{
			name:    "open failure",
			req:     Request{Location: "missing.sqlite", Form: 6, Statement: "income statement", SubjectID: "C1"},
			openErr: boom,
			want:    ErrSourceUnavailable, wantOpens: 1, wantStmt: "income_statement",
		},
		{
			name:     "query failure",
			req:      Request{Location: "x", Form: 6, Statement: "cash flows", SubjectID: "C1"},
			queryErr: boom,
			want:     ErrSourceUnavailable, wantOpens: 1, wantStmt: "cash_flow_statement",
		},
		{
			name:   "strict missing fields",
			req:    Request{Location: "x", Form: 6, Statement: "balance sheet", SubjectID: "C1"},
			strict: true,
			want:   ErrSchemaFieldMissing, wantOpens: 1, wantStmt: "balance_sheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newFakeSource(form6Tables())
			src.queryErr = tt.queryErr
			op := &fakeOpener{src: src, err: tt.openErr}
			svc := newTestService(t, Options{Strict: tt.strict}, op)

			tbl, err := svc.ExtractStatement(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tbl != nil {
				t.Fatal("table returned on error")
			}

			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("err %T is not *Error", err)
			}
			if se.Op != "extract" || se.Form != tt.req.Form || se.Statement != tt.wantStmt || se.SubjectID != tt.req.SubjectID {
				t.Fatalf("error context = %+v", se)
			}
			if tt.req.SubjectID != " " && !strings.Contains(err.Error(), tt.req.SubjectID) {
				t.Fatalf("message %q does not name the subject", err)
			}
			if op.opens != tt.wantOpens {
				t.Fatalf("opens = %d, want %d", op.opens, tt.wantOpens)
			}
			if tt.wantOpens == 1 && tt.openErr == nil && src.closed != 1 {
				t.Fatalf("source closed %d times, want 1", src.closed)
			}
		})
	}
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	op := &fakeOpener{src: newFakeSource(form6Tables())}
	svc := newTestService(t, Options{}, op)

	tables, err := svc.ExtractAll(context.Background(), Request{Location: "x.sqlite", Form: 6, SubjectID: "C1"})
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}

	var keys []string
	for _, tbl := range tables {
		keys = append(keys, tbl.Statement)
	}
	want := []string{"income_statement", "balance_sheet", "balance_sheet_assets", "balance_sheet_liabilities", "cash_flow_statement"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("statement order mismatch (-want +got):\n%s", diff)
	}
	if tables[0].Len() != 2 || tables[1].Len() != 1 || tables[4].Len() != 0 {
		t.Fatalf("row counts = %d,%d,%d", tables[0].Len(), tables[1].Len(), tables[4].Len())
	}
	if op.opens != 1 || op.src.closed != 1 {
		t.Fatalf("opens=%d closed=%d, want one shared handle", op.opens, op.src.closed)
	}
	if n := op.src.queryCount(); n != len(want) {
		t.Fatalf("queries = %d, want %d", n, len(want))
	}
}

func TestExtractAll_FailureReturnsNothing(t *testing.T) {
	t.Parallel()

	tables := form6Tables()
	delete(tables, "statement_of_cash_flows_120_duration")
	op := &fakeOpener{src: newFakeSource(tables)}
	svc := newTestService(t, Options{}, op)

	got, err := svc.ExtractAll(context.Background(), Request{Location: "x.sqlite", Form: 6, SubjectID: "C1"})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Statement != "cash_flow_statement" || se.Op != "extract_all" {
		t.Fatalf("error context = %+v", se)
	}
	if got != nil {
		t.Fatalf("partial result returned: %d tables", len(got))
	}
	if op.src.closed != 1 {
		t.Fatalf("source closed %d times, want 1", op.src.closed)
	}

	if _, err := svc.ExtractAll(context.Background(), Request{Location: "x", Form: 99, SubjectID: "C1"}); !errors.Is(err, ErrUnsupportedStatement) {
		t.Fatalf("unknown form err = %v, want ErrUnsupportedStatement", err)
	}
	if _, err := svc.ExtractAll(context.Background(), Request{Location: "x", Form: 6}); !errors.Is(err, ErrInvalidFilterValue) {
		t.Fatalf("blank subject err = %v, want ErrInvalidFilterValue", err)
	}
}

// TestExtractStatement_SQLite runs the whole path against a real PUDL-shaped
// SQLite file through the registered storage backend.
func TestExtractStatement_SQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ferc6_xbrl.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	stmts := []string{
		`CREATE TABLE income_statement_114_duration (
			entity_id TEXT, filing_name TEXT, start_date TEXT, end_date TEXT,
			operating_revenues REAL, net_income_loss REAL, report_year INTEGER)`,
		`INSERT INTO income_statement_114_duration VALUES
			('C000123', 'Acme Rail', '2022-01-01', '2022-12-31', 900.5, 120, 2022),
			('C000999', 'Other Rail', '2022-01-01', '2022-12-31', 1, 1, 2022),
			('C000123', 'Acme Rail', '2021-01-01', '2021-12-31', 800.25, NULL, 2021)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	svc, err := NewService(defaultCatalog(t), Options{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	req := Request{Location: path, Form: 6, Statement: "statement of income", SubjectID: "C000123"}

	tbl, err := svc.ExtractStatement(context.Background(), req)
	if err != nil {
		t.Fatalf("ExtractStatement: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	checks := []struct {
		row  int
		col  string
		want any
	}{
		{0, "entity_id", "C000123"},
		{0, "end_date", "2022-12-31"},
		{0, "operating_revenues", 900.5},
		{0, "publication_time", nil},
		{1, "net_income_loss", nil},
		{1, "start_date", "2021-01-01"},
	}
	for _, c := range checks {
		if got, _ := tbl.Value(c.row, c.col); got != c.want {
			t.Errorf("row %d %s = %#v, want %#v", c.row, c.col, got, c.want)
		}
	}

	again, err := svc.ExtractStatement(context.Background(), req)
	if err != nil {
		t.Fatalf("second ExtractStatement: %v", err)
	}
	if again.Fingerprint() != tbl.Fingerprint() {
		t.Fatal("repeat extraction changed the fingerprint")
	}

	none, err := svc.ExtractStatement(context.Background(), Request{Location: path, Form: 6, Statement: "income", SubjectID: "NOPE"})
	if err != nil {
		t.Fatalf("ExtractStatement(no rows): %v", err)
	}
	if none.Len() != 0 || len(none.Columns) != len(tbl.Columns) {
		t.Fatalf("no-match table rows=%d cols=%d", none.Len(), len(none.Columns))
	}

	strict, err := NewService(defaultCatalog(t), Options{Strict: true}, nil)
	if err != nil {
		t.Fatalf("NewService(strict): %v", err)
	}
	if _, err := strict.ExtractStatement(context.Background(), req); !errors.Is(err, ErrSchemaFieldMissing) {
		t.Fatalf("strict err = %v, want ErrSchemaFieldMissing", err)
	}

	_, err = svc.ExtractStatement(context.Background(), Request{Location: filepath.Join(t.TempDir(), "absent.sqlite"), Form: 6, Statement: "income", SubjectID: "C000123"})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("missing file err = %v, want ErrSourceUnavailable", err)
	}
}
