// Command fercx extracts FERC financial statements for one filing entity from
// a PUDL XBRL database and writes them as CSV or JSON.
//
//	fercx -db ferc6_xbrl.sqlite -form 6 -statement "balance sheet" -subject C000123
//	fercx -db postgres://pudl@localhost/pudl -form 2 -statement all -subject C000041 -format json
//	fercx -list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"ferc/internal/catalog"
	"ferc/internal/config"
	"ferc/internal/export"
	"ferc/internal/metrics"
	"ferc/internal/metrics/datadog"
	"ferc/internal/metrics/prompush"
	"ferc/internal/statement"

	// register all backends with the storage factory.
	_ "ferc/internal/storage/all"
)

// errInvalidConfig is returned by run when validation reports errors.
var errInvalidConfig = errors.New("configuration is invalid")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	runID := uuid.NewString()
	log.SetPrefix("run=" + runID[:8] + " ")
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		stop()
		fatalf("fercx: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errInvalidConfig
	}
	if cfg.ValidateOnly {
		fmt.Fprintln(stderr, "configuration is valid")
		return nil
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if cfg.List {
		return listCatalog(stdout, cat)
	}

	flush := setupMetrics(cfg)
	defer flush()

	svc, err := statement.NewService(cat, statement.Options{
		Strict:        cfg.Strict,
		OrderByPeriod: cfg.OrderByPeriod,
	}, nil)
	if err != nil {
		return err
	}

	req := statement.Request{
		Kind:      cfg.Kind,
		Location:  cfg.DB,
		Form:      cfg.Form,
		Statement: cfg.Statement,
		SubjectID: cfg.SubjectID,
		Table:     cfg.Table,
	}

	start := time.Now()
	var tables []*statement.Table
	if cfg.AllStatementsSelected() {
		tables, err = svc.ExtractAll(ctx, req)
	} else {
		var t *statement.Table
		t, err = svc.ExtractStatement(ctx, req)
		tables = []*statement.Table{t}
	}
	if err != nil {
		return err
	}
	log.Printf("fercx: form=%d statements=%d subject=%s completed in %s",
		cfg.Form, len(tables), cfg.SubjectID, time.Since(start).Truncate(time.Millisecond))

	return writeOutput(cfg, stdout, tables)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}

// listCatalog prints every registered statement, one per line.
func listCatalog(w io.Writer, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORM\tSTATEMENT\tTABLE\tFIELDS\tNAMES")
	for _, f := range cat.Forms() {
		for _, e := range cat.Entries(f) {
			names := append([]string{e.Title}, e.Aliases...)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", e.Form, e.Key, e.Ref.Table, e.Schema.Len(), strings.Join(names, "; "))
		}
	}
	return tw.Flush()
}

func setupMetrics(cfg *config.Config) (flush func()) {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err = prompush.NewBackend("fercx", cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DogStatsdAddr,
			GlobalTags: []string{fmt.Sprintf("form:%d", cfg.Form)},
		})
	default:
		log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: init %s backend: %v; using nop", cfg.MetricsBackend, err)
		return func() {}
	}

	log.Printf("metrics: backend=%s", cfg.MetricsBackend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func writeOutput(cfg *config.Config, stdout io.Writer, tables []*statement.Table) (err error) {
	w := stdout
	if cfg.Out != "" {
		f, cerr := os.Create(cfg.Out)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}

	if cfg.Format == "json" {
		return export.WriteJSON(w, tables...)
	}
	return export.WriteCSVAll(w, tables...)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
