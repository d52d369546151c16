package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the user but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the flag the
// finding is about (e.g. "subject", "metrics-backend").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// KnownKinds are the storage backends compiled into fercx.
var KnownKinds = []string{"sqlite", "postgres", "mysql", "mssql", "mongo", "duckdb"}

// Validate performs static checks over cfg. It does not touch the network
// or the filesystem and does not mutate cfg.
func Validate(cfg *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	issues = append(issues, validateSource(cfg)...)

	if cfg.Form <= 0 {
		add(SeverityError, "form", "form must be a positive FERC form number, got %d", cfg.Form)
	}

	// -list only needs the catalog.
	if !cfg.List {
		if strings.TrimSpace(cfg.Statement) == "" {
			add(SeverityError, "statement", "statement must not be empty")
		}
		if strings.TrimSpace(cfg.SubjectID) == "" {
			add(SeverityError, "subject", "subject id must not be empty")
		}
	}
	if cfg.Table != "" && cfg.AllStatementsSelected() {
		add(SeverityWarning, "table", "table override %q is ignored when extracting all statements", cfg.Table)
	}
	if p := strings.TrimSpace(cfg.CatalogPath); p != "" {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
		default:
			add(SeverityWarning, "catalog", "catalog %q does not have a .yaml extension", p)
		}
	}

	switch cfg.Format {
	case "csv", "json":
	default:
		add(SeverityError, "format", "unknown output format %q; want csv or json", cfg.Format)
	}
	if cfg.Format == "csv" && cfg.AllStatementsSelected() {
		add(SeverityWarning, "out", "csv output of several statements is written as consecutive blocks separated by a blank line")
	}

	issues = append(issues, validateMetrics(cfg)...)
	return issues
}

func validateSource(cfg *Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.DB) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "db",
			Message:  "db must not be empty",
		})
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		return issues
	}
	known := false
	for _, k := range KnownKinds {
		if k == kind {
			known = true
			break
		}
	}
	if !known {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want one of %s", cfg.Kind, strings.Join(KnownKinds, ", ")),
		})
	}

	// Warn when a URL-shaped location's scheme disagrees with -kind.
	if u, err := url.Parse(cfg.DB); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if want := schemeKind(u.Scheme); want != "" && want != kind {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "kind",
				Message:  fmt.Sprintf("kind %q does not match %s:// location", kind, u.Scheme),
			})
		}
	}
	return issues
}

func schemeKind(scheme string) string {
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlserver":
		return "mssql"
	case "mongodb", "mongodb+srv":
		return "mongo"
	case "duckdb", "parquet":
		return "duckdb"
	case "file":
		return "sqlite"
	}
	return ""
}

func validateMetrics(cfg *Config) []Issue {
	var issues []Issue

	switch cfg.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(cfg.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "pushgateway-url",
				Message:  "pushgateway metrics backend requires a gateway URL",
			})
		}
	case "datadog":
		if strings.TrimSpace(cfg.DogStatsdAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "dogstatsd-addr",
				Message:  "datadog metrics backend requires a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics-backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, pushgateway or datadog", cfg.MetricsBackend),
		})
	}
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
