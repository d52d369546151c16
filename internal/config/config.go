// Package config centralizes fercx configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable, so
// `-help` lists all knobs and a deployment can configure the tool through the
// environment alone.
//
// Typical usage:
//
//	cfg, err := config.Load() // .env, os.Environ, os.Args
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-form=2"})
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AllStatements selects every statement of the form.
const AllStatements = "all"

// Config holds all process configuration derived from flags and
// environment variables. It is a plain value and safe to copy.
type Config struct {
	// Source database.
	Kind string // storage backend; empty infers it from DB
	DB   string // SQLite path, DSN or URI

	// What to extract.
	Form      int
	Statement string // statement name, catalog key, or "all"
	SubjectID string
	Table     string // optional table override, same schema

	// CatalogPath is an optional YAML document layered over the embedded
	// catalog.
	CatalogPath string

	Strict        bool
	OrderByPeriod bool

	// Output.
	Format string // "csv" or "json"
	Out    string // file path; empty writes to stdout

	// Metrics.
	MetricsBackend string // "none", "pushgateway" or "datadog"
	PushgatewayURL string
	DogStatsdAddr  string

	// Modes.
	List         bool
	ValidateOnly bool
	Verbose      bool
}

// LoadFromArgs builds a Config by defining flags on fs, seeding each flag's
// default from getenv, and then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOrDefault := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefault := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOrDefault := func(k string, d bool) bool {
		if v := strings.ToLower(strings.TrimSpace(getenv(k))); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}

	// Source
	fs.StringVar(&cfg.Kind, "kind", getenv("FERC_DB_KIND"), "Storage backend: sqlite, postgres, mysql, mssql, mongo or duckdb (default: inferred from -db)")
	fs.StringVar(&cfg.DB, "db", envOrDefault("FERC_DB", "ferc6_xbrl.sqlite"), "PUDL SQLite file, DSN or URI")

	// Selection
	fs.IntVar(&cfg.Form, "form", intEnvOrDefault("FERC_FORM", 6), "FERC form number")
	fs.StringVar(&cfg.Statement, "statement", envOrDefault("FERC_STATEMENT", "income statement"), `Statement name or key, or "all"`)
	fs.StringVar(&cfg.SubjectID, "subject", getenv("FERC_SUBJECT_ID"), "Filing entity id (matched against the statement's filter column)")
	fs.StringVar(&cfg.Table, "table", getenv("FERC_TABLE"), "Read the statement from this table instead of the catalog's")
	fs.StringVar(&cfg.CatalogPath, "catalog", getenv("FERC_CATALOG"), "Extra catalog YAML layered over the built-in one")
	fs.BoolVar(&cfg.Strict, "strict", boolEnvOrDefault("FERC_STRICT", false), "Fail when the source lacks schema fields instead of null-filling")
	fs.BoolVar(&cfg.OrderByPeriod, "order-by-period", boolEnvOrDefault("FERC_ORDER_BY_PERIOD", false), "Sort rows by the statement's period column")

	// Output
	fs.StringVar(&cfg.Format, "format", envOrDefault("FERC_FORMAT", "csv"), "Output format: csv or json")
	fs.StringVar(&cfg.Out, "out", getenv("FERC_OUT"), "Output file (default stdout)")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOrDefault("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", envOrDefault("PUSHGATEWAY_URL", "http://localhost:9091"), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.DogStatsdAddr, "dogstatsd-addr", envOrDefault("DOGSTATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address")

	// Modes
	fs.BoolVar(&cfg.List, "list", false, "List the statement catalog and exit")
	fs.BoolVar(&cfg.ValidateOnly, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	cfg.MetricsBackend = strings.ToLower(strings.TrimSpace(cfg.MetricsBackend))
	return cfg, nil
}

// Load is the production entry point. A .env file in the working directory,
// when present, seeds the process environment (existing variables win);
// then flags are parsed from os.Args[1:] on flag.CommandLine.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// AllStatementsSelected reports whether the run covers every statement of
// the form.
func (c *Config) AllStatementsSelected() bool {
	return strings.EqualFold(strings.TrimSpace(c.Statement), AllStatements)
}
