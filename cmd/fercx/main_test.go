package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferc/internal/config"
	"ferc/internal/statement"
)

// seedForm6 writes a small PUDL-shaped Form 6 database and returns its path.
func seedForm6(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ferc6_xbrl.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE income_statement_114_duration (entity_id TEXT, end_date TEXT, operating_revenues REAL, net_income_loss REAL)`,
		`INSERT INTO income_statement_114_duration VALUES ('C1', '2022-12-31', 900, 120), ('C1', '2021-12-31', 800, NULL), ('C2', '2022-12-31', 5, 1)`,
		`CREATE TABLE comparative_balance_sheet_110_instant (entity_id TEXT, date TEXT, cash REAL, total_assets REAL)`,
		`INSERT INTO comparative_balance_sheet_110_instant VALUES ('C1', '2022-12-31', 10, 1000)`,
		`CREATE TABLE statement_of_cash_flows_120_duration (entity_id TEXT, end_date TEXT, net_income_loss REAL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

func baseConfig(db string) *config.Config {
	return &config.Config{
		DB:             db,
		Form:           6,
		Statement:      "income statement",
		SubjectID:      "C1",
		Format:         "csv",
		MetricsBackend: "none",
	}
}

func TestRun_CSV(t *testing.T) {
	cfg := baseConfig(seedForm6(t))
	cfg.OrderByPeriod = true

	var out, errOut bytes.Buffer
	if err := run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("run: %v (stderr: %s)", err, errOut.String())
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "entity_id,filing_name,publication_time,start_date,end_date,operating_revenues") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2021-12-31") || !strings.Contains(lines[2], "2022-12-31") {
		t.Fatalf("rows not ordered by period:\n%s", out.String())
	}
}

func TestRun_AllJSONToFile(t *testing.T) {
	cfg := baseConfig(seedForm6(t))
	cfg.Statement = "all"
	cfg.Format = "json"
	cfg.Out = filepath.Join(t.TempDir(), "out.json")

	var out, errOut bytes.Buffer
	if err := run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout should be empty when -out is set, got %q", out.String())
	}

	b, err := os.ReadFile(cfg.Out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var docs []struct {
		Statement string           `json:"statement"`
		Rows      []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(b, &docs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.Statement)
	}
	want := "income_statement,balance_sheet,balance_sheet_assets,balance_sheet_liabilities,cash_flow_statement"
	if strings.Join(got, ",") != want {
		t.Fatalf("statements = %v, want %s", got, want)
	}
	if len(docs[0].Rows) != 2 || len(docs[1].Rows) != 1 || len(docs[4].Rows) != 0 {
		t.Fatalf("row counts = %d,%d,%d", len(docs[0].Rows), len(docs[1].Rows), len(docs[4].Rows))
	}
}

func TestRun_Errors(t *testing.T) {
	db := seedForm6(t)

	unsupported := baseConfig(db)
	unsupported.Statement = "nonexistent statement"
	err := run(context.Background(), unsupported, &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, statement.ErrUnsupportedStatement) {
		t.Fatalf("err = %v, want ErrUnsupportedStatement", err)
	}
	if !strings.Contains(err.Error(), "nonexistent statement") || !strings.Contains(err.Error(), "C1") {
		t.Fatalf("err = %q, want statement and subject named", err)
	}

	missing := baseConfig(filepath.Join(t.TempDir(), "nope.sqlite"))
	if err := run(context.Background(), missing, &bytes.Buffer{}, &bytes.Buffer{}); !errors.Is(err, statement.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}

	invalid := baseConfig(db)
	invalid.SubjectID = ""
	var errOut bytes.Buffer
	if err := run(context.Background(), invalid, &bytes.Buffer{}, &errOut); !errors.Is(err, errInvalidConfig) {
		t.Fatalf("err = %v, want errInvalidConfig", err)
	}
	if !strings.Contains(errOut.String(), "error: subject:") {
		t.Fatalf("stderr = %q, want subject issue", errOut.String())
	}
}

func TestRun_ListAndValidate(t *testing.T) {
	cfg := baseConfig("unused.sqlite")
	cfg.List = true
	cfg.SubjectID = ""

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out, &bytes.Buffer{}); err != nil {
		t.Fatalf("run -list: %v", err)
	}
	for _, want := range []string{"FORM", "statement_of_income_114_duration", "comparative_balance_sheet_110_instant", "Statement of Cash Flows"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("list output missing %q:\n%s", want, out.String())
		}
	}

	v := baseConfig("unused.sqlite")
	v.ValidateOnly = true
	var errOut bytes.Buffer
	if err := run(context.Background(), v, &bytes.Buffer{}, &errOut); err != nil {
		t.Fatalf("run -validate: %v", err)
	}
	if !strings.Contains(errOut.String(), "configuration is valid") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestLoadCatalog_Extra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	doc := `form: 60
version: test
statements:
  - key: income_statement
    table: income_statement_60
    fields: [respondent_id, net_income]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := loadCatalog(path)
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	if _, err := cat.SchemaFor("income_statement", 60); err != nil {
		t.Fatalf("SchemaFor(60): %v", err)
	}
	if _, err := loadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("loadCatalog(absent): want error")
	}
}
