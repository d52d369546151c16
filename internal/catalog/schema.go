package catalog

import (
	"fmt"
	"strings"
)

// Schema is the ordered, duplicate-free list of fields that make up the
// presentation of a statement. The zero value is an empty schema.
//
// Schema values are immutable: Fields returns a copy.
type Schema struct {
	fields []string
	pos    map[string]int
}

// NewSchema validates and freezes a field list. Field names are trimmed; an
// empty list, an empty name, or a repeated name is an error.
func NewSchema(fields ...string) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, fmt.Errorf("schema: at least one field is required")
	}
	s := Schema{
		fields: make([]string, 0, len(fields)),
		pos:    make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return Schema{}, fmt.Errorf("schema: field %d is empty", i)
		}
		if j, dup := s.pos[f]; dup {
			return Schema{}, fmt.Errorf("schema: field %q repeated at positions %d and %d", f, j, i)
		}
		s.pos[f] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for literals known to be valid; it panics otherwise.
func MustSchema(fields ...string) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the field names in presentation order.
func (s Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Len is the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Index returns the position of field, or -1.
func (s Schema) Index(field string) int {
	if i, ok := s.pos[field]; ok {
		return i
	}
	return -1
}

// Has reports whether field is part of the schema.
func (s Schema) Has(field string) bool {
	_, ok := s.pos[field]
	return ok
}
