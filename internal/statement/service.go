package statement

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ferc/internal/catalog"
	"ferc/internal/metrics"
	"ferc/internal/storage"
)

// Opener opens a storage.Source. storage.Open is the default.
type Opener func(ctx context.Context, kind, location string) (storage.Source, error)

// Request identifies one extraction.
type Request struct {
	// Kind selects the storage backend; empty infers it from Location.
	Kind string
	// Location is the database path, DSN or URI.
	Location string
	// Form is the FERC form number (2, 6, ...).
	Form int
	// Statement is a human-facing statement name or catalog key.
	Statement string
	// SubjectID is the filing entity identifier matched against the
	// statement's filter column.
	SubjectID string
	// Table optionally replaces the catalog table while keeping its filter
	// column and schema. ExtractAll ignores it.
	Table string
}

// Service resolves statement names against a catalog, opens the source and
// runs Extract. It holds no per-call state and is safe for concurrent use.
type Service struct {
	catalog *catalog.Catalog
	opts    Options
	open    Opener
}

// NewService returns a Service over cat. A nil open uses storage.Open.
func NewService(cat *catalog.Catalog, opts Options, open Opener) (*Service, error) {
	if cat == nil {
		return nil, fmt.Errorf("statement: catalog is required")
	}
	if open == nil {
		open = storage.Open
	}
	return &Service{catalog: cat, opts: opts, open: open}, nil
}

// Catalog returns the catalog the service resolves names against.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// ExtractStatement extracts one statement for one subject. Every error is a
// *Error wrapping one of the package sentinels.
func (s *Service) ExtractStatement(ctx context.Context, req Request) (t *Table, err error) {
	const op = "extract"
	start := time.Now()
	defer func() { metrics.RecordStep(req.Form, op, err, time.Since(start)) }()

	fail := func(statement string, err error) error {
		return &Error{Op: op, Form: req.Form, Statement: statement, SubjectID: req.SubjectID, Err: err}
	}

	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, fail(req.Statement, fmt.Errorf("%w: subject id must not be empty", ErrInvalidFilterValue))
	}
	entry, err := s.catalog.Lookup(req.Statement, req.Form)
	if err != nil {
		return nil, fail(req.Statement, err)
	}

	src, err := s.openSource(ctx, req)
	if err != nil {
		return nil, fail(entry.Key, err)
	}
	defer closeSource(src, req.Location)

	ref := entry.Ref
	if tbl := strings.TrimSpace(req.Table); tbl != "" {
		ref.Table = tbl
	}
	t, err = s.extractEntry(ctx, src, entry, ref, req.SubjectID)
	if err != nil {
		return nil, fail(entry.Key, err)
	}
	return t, nil
}

// ExtractAll extracts every statement registered for req.Form, sharing one
// source handle. Statements run concurrently; results are returned in
// catalog order. The first failure cancels the remaining extractions and no
// partial result is returned.
func (s *Service) ExtractAll(ctx context.Context, req Request) (tables []*Table, err error) {
	const op = "extract_all"
	start := time.Now()
	defer func() { metrics.RecordStep(req.Form, op, err, time.Since(start)) }()

	fail := func(statement string, err error) error {
		return &Error{Op: op, Form: req.Form, Statement: statement, SubjectID: req.SubjectID, Err: err}
	}

	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, fail("", fmt.Errorf("%w: subject id must not be empty", ErrInvalidFilterValue))
	}
	entries := s.catalog.Entries(req.Form)
	if len(entries) == 0 {
		return nil, fail("", fmt.Errorf("%w: no statements registered for form %d", ErrUnsupportedStatement, req.Form))
	}

	src, err := s.openSource(ctx, req)
	if err != nil {
		return nil, fail("", err)
	}
	defer closeSource(src, req.Location)

	out := make([]*Table, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			t, err := s.extractEntry(gctx, src, e, e.Ref, req.SubjectID)
			if err != nil {
				return fail(e.Key, err)
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) openSource(ctx context.Context, req Request) (storage.Source, error) {
	src, err := s.open(ctx, req.Kind, req.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrSourceUnavailable, req.Location, err)
	}
	return src, nil
}

func closeSource(src storage.Source, location string) {
	if err := src.Close(); err != nil {
		log.Printf("statement: close source location=%s err=%v", location, err)
	}
}

func (s *Service) extractEntry(ctx context.Context, src storage.Source, e catalog.Entry, ref catalog.TableRef, subjectID string) (*Table, error) {
	start := time.Now()
	t, err := Extract(ctx, src, ref, subjectID, e.Schema, s.opts)
	if err != nil {
		return nil, err
	}
	t.Form = e.Form
	t.Statement = e.Key

	if s.opts.OrderByPeriod && !SortByPeriod(t, e.PeriodColumn) {
		log.Printf("statement: form=%d statement=%s period column %q not in schema; keeping source order",
			e.Form, e.Key, e.PeriodColumn)
	}

	metrics.RecordRow(e.Key, metrics.KindRows, int64(t.Len()))
	metrics.RecordRow(e.Key, metrics.KindMissingFields, int64(len(t.Missing)))
	log.Printf("statement: form=%d statement=%s table=%s subject=%s rows=%d missing=%d fingerprint=%016x elapsed=%s",
		e.Form, e.Key, ref.Table, subjectID, t.Len(), len(t.Missing), t.Fingerprint(), time.Since(start).Round(time.Millisecond))
	return t, nil
}

// SortByPeriod stably sorts t's rows ascending on column. Nil values sort
// last. It reports false, leaving t untouched, when column is not one of
// t's columns.
func SortByPeriod(t *Table, column string) bool {
	if column == "" {
		return false
	}
	i, ok := t.index()[column]
	if !ok {
		return false
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		return comparePeriod(t.Rows[a][i], t.Rows[b][i]) < 0
	})
	return true
}

// comparePeriod orders period values. Dates arrive as time.Time from most
// drivers and as ISO-8601 strings from SQLite, both of which order
// correctly within their type. Mixed types fall back to their text form.
func comparePeriod(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(periodText(a), periodText(b))
}

func periodText(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
