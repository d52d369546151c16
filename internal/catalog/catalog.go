// Package catalog holds the static, versioned description of every financial
// statement the extractor knows about: which source table carries it, which
// column identifies the filing entity, and the presentation order of its
// fields.
//
// The catalog is data, not code. The built-in documents live under data/ and
// are embedded into the binary; callers may layer additional YAML documents on
// top (see Load) to describe a new form revision without touching Go code.
//
// A Catalog is immutable once built and safe for concurrent use.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var builtin embed.FS

var (
	// ErrUnknownStatementType is returned by SchemaFor when no schema is
	// registered for the (statement type, form) pair.
	ErrUnknownStatementType = errors.New("unknown statement type")

	// ErrUnsupportedStatement is returned by Resolve and Lookup when a
	// human-facing statement name does not match any entry of the form.
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// DefaultFilterColumn is used when a document omits filter_column.
const DefaultFilterColumn = "entity_id"

// TableRef names the source table (or collection) of a statement and the
// column holding the subject identifier used for the equality filter.
type TableRef struct {
	Table        string
	FilterColumn string
}

func (r TableRef) String() string { return r.Table + "." + r.FilterColumn }

// Entry is one registered statement of one form.
type Entry struct {
	Form         int
	Key          string
	Title        string
	Aliases      []string
	Ref          TableRef
	Schema       Schema
	PeriodColumn string
	Version      string
}

// document mirrors the YAML layout of data/*.yaml.
type document struct {
	Form       int             `yaml:"form"`
	Version    string          `yaml:"version"`
	Statements []statementSpec `yaml:"statements"`
}

type statementSpec struct {
	Key          string   `yaml:"key"`
	Title        string   `yaml:"title"`
	Aliases      []string `yaml:"aliases"`
	Table        string   `yaml:"table"`
	FilterColumn string   `yaml:"filter_column"`
	PeriodColumn string   `yaml:"period_column"`
	Fields       []string `yaml:"fields"`
}

type entryKey struct {
	form int
	key  string
}

// Catalog maps (form, statement) to the table reference and schema needed by
// the extractor.
type Catalog struct {
	entries map[entryKey]Entry
	order   map[int][]string         // form -> keys in declaration order
	names   map[int]map[string]string // form -> normalized name -> key
}

// Default returns a catalog built from the embedded documents only.
func Default() (*Catalog, error) {
	return Load()
}

// Load builds a catalog from the embedded documents followed by the given
// extra YAML documents. A later document replaces an earlier entry with the
// same (form, key); new keys are appended to the form.
func Load(extra ...io.Reader) (*Catalog, error) {
	var raw [][]byte

	files, err := fs.Glob(builtin, "data/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: glob builtin: %w", err)
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := builtin.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", name, err)
		}
		raw = append(raw, b)
	}
	for i, r := range extra {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("catalog: read extra document %d: %w", i, err)
		}
		raw = append(raw, b)
	}

	c := &Catalog{
		entries: map[entryKey]Entry{},
		order:   map[int][]string{},
	}
	for i, b := range raw {
		docs, err := decodeDocuments(b)
		if err != nil {
			return nil, fmt.Errorf("catalog: document %d: %w", i, err)
		}
		for _, d := range docs {
			if err := c.add(d); err != nil {
				return nil, err
			}
		}
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeDocuments reads every YAML document in b ("---" separated).
func decodeDocuments(b []byte) ([]document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var out []document
	for {
		var d document
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		out = append(out, d)
	}
}

func (c *Catalog) add(d document) error {
	if d.Form <= 0 {
		return fmt.Errorf("catalog: form must be > 0, got %d", d.Form)
	}
	for i, s := range d.Statements {
		path := fmt.Sprintf("form %d statements[%d]", d.Form, i)
		key := strings.TrimSpace(s.Key)
		if key == "" {
			return fmt.Errorf("catalog: %s: key is required", path)
		}
		if strings.TrimSpace(s.Table) == "" {
			return fmt.Errorf("catalog: %s (%s): table is required", path, key)
		}
		schema, err := NewSchema(s.Fields...)
		if err != nil {
			return fmt.Errorf("catalog: %s (%s): %w", path, key, err)
		}

		period := strings.TrimSpace(s.PeriodColumn)
		if period != "" && !schema.Has(period) {
			return fmt.Errorf("catalog: %s (%s): period column %q is not a field", path, key, period)
		}

		filter := strings.TrimSpace(s.FilterColumn)
		if filter == "" {
			filter = DefaultFilterColumn
		}
		title := s.Title
		if title == "" {
			title = key
		}

		k := entryKey{form: d.Form, key: key}
		if _, exists := c.entries[k]; !exists {
			c.order[d.Form] = append(c.order[d.Form], key)
		}
		c.entries[k] = Entry{
			Form:         d.Form,
			Key:          key,
			Title:        title,
			Aliases:      append([]string(nil), s.Aliases...),
			Ref:          TableRef{Table: strings.TrimSpace(s.Table), FilterColumn: filter},
			Schema:       schema,
			PeriodColumn: period,
			Version:      d.Version,
		}
	}
	return nil
}

// index builds the normalized-name lookup and rejects names that would be
// ambiguous within a form.
func (c *Catalog) index() error {
	c.names = map[int]map[string]string{}
	for form, keys := range c.order {
		names := map[string]string{}
		for _, key := range keys {
			e := c.entries[entryKey{form: form, key: key}]
			candidates := append([]string{e.Key, e.Title}, e.Aliases...)
			for _, n := range candidates {
				nn := NormalizeName(n)
				if nn == "" {
					continue
				}
				if other, ok := names[nn]; ok && other != key {
					return fmt.Errorf("catalog: form %d: name %q is used by both %s and %s", form, n, other, key)
				}
				names[nn] = key
			}
		}
		c.names[form] = names
	}
	return nil
}

// SchemaFor returns the schema registered for statementType (a canonical key
// such as "income_statement") on the given form.
func (c *Catalog) SchemaFor(statementType string, form int) (Schema, error) {
	e, ok := c.entries[entryKey{form: form, key: strings.TrimSpace(statementType)}]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q on form %d", ErrUnknownStatementType, statementType, form)
	}
	return e.Schema, nil
}

// Lookup resolves a human-facing statement name ("Balance Sheet: Assets",
// "cash flows", "income_statement") on the given form.
func (c *Catalog) Lookup(name string, form int) (Entry, error) {
	key, ok := c.names[form][NormalizeName(name)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q on form %d", ErrUnsupportedStatement, name, form)
	}
	return c.entries[entryKey{form: form, key: key}], nil
}

// Resolve is Lookup reduced to what the extractor needs.
func (c *Catalog) Resolve(name string, form int) (TableRef, Schema, error) {
	e, err := c.Lookup(name, form)
	if err != nil {
		return TableRef{}, Schema{}, err
	}
	return e.Ref, e.Schema, nil
}

// Forms lists the registered form numbers in ascending order.
func (c *Catalog) Forms() []int {
	out := make([]int, 0, len(c.order))
	for f := range c.order {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Entries lists the statements of a form in declaration order.
func (c *Catalog) Entries(form int) []Entry {
	keys := c.order[form]
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.entries[entryKey{form: form, key: k}])
	}
	return out
}
