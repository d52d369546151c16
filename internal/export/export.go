// Package export renders extracted statements for people and downstream
// tools: CSV with a header row in schema order, or JSON objects whose keys
// keep schema order.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"ferc/internal/statement"
)

// Cell formats one value for CSV output. nil is an empty cell, times are
// RFC 3339 and floats are written without exponent notation.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes t as CSV: one header row with the schema columns followed
// by one record per row.
func WriteCSV(w io.Writer, t *statement.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for r, row := range t.Rows {
		for i, v := range row {
			rec[i] = Cell(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// WriteCSVAll writes each table with WriteCSV, separating tables with a
// blank line.
func WriteCSVAll(w io.Writer, tables ...*statement.Table) error {
	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return fmt.Errorf("export: csv separator: %w", err)
			}
		}
		if err := WriteCSV(w, t); err != nil {
			return fmt.Errorf("%s: %w", t.Statement, err)
		}
	}
	return nil
}

// document is the JSON shape of one table.
type document struct {
	Form      int       `json:"form"`
	Statement string    `json:"statement"`
	SubjectID string    `json:"subject_id"`
	Columns   []string  `json:"columns"`
	Missing   []string  `json:"missing,omitempty"`
	Rows      []ordered `json:"rows"`
}

// ordered is a record that marshals as a JSON object with keys in column
// order.
type ordered []statement.Field

func (o ordered) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(jsonValue(f.Value))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue maps values encoding/json cannot represent. NaN and infinities
// become strings.
func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return v
}

// WriteJSON writes the tables as an indented JSON array.
func WriteJSON(w io.Writer, tables ...*statement.Table) error {
	docs := make([]document, 0, len(tables))
	for _, t := range tables {
		rows := make([]ordered, 0, t.Len())
		for _, rec := range t.Records() {
			rows = append(rows, ordered(rec))
		}
		docs = append(docs, document{
			Form:      t.Form,
			Statement: t.Statement,
			SubjectID: t.SubjectID,
			Columns:   t.Columns,
			Missing:   t.Missing,
			Rows:      rows,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("export: json: %w", err)
	}
	return nil
}
