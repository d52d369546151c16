package statement

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// Table is an extracted statement: the rows of one subject projected onto
// the statement schema. Columns equal the schema exactly and every row has
// len(Columns) values. Rows keep the order the source returned them in
// unless the caller asked for period ordering.
type Table struct {
	Form      int
	Statement string
	SubjectID string
	Columns   []string
	Rows      [][]any

	// Missing lists schema fields the source did not provide, in schema
	// order. Their cells are nil in every row.
	Missing []string

	pos map[string]int
}

// Len is the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Value returns the cell at (row, column). ok is false when the row is out
// of range or the column is not part of the schema.
func (t *Table) Value(row int, column string) (v any, ok bool) {
	if row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	i, found := t.index()[column]
	if !found {
		return nil, false
	}
	return t.Rows[row][i], true
}

// index returns the column positions. Tables built by Extract carry them
// precomputed; any other Table gets a fresh map per call so concurrent readers
// never write to t.
func (t *Table) index() map[string]int {
	if t.pos != nil {
		return t.pos
	}
	pos := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		pos[c] = i
	}
	return pos
}

// Field is one named cell of a record.
type Field struct {
	Name  string
	Value any
}

// Records returns each row as an ordered list of (column, value) pairs.
func (t *Table) Records() [][]Field {
	out := make([][]Field, len(t.Rows))
	for r, row := range t.Rows {
		rec := make([]Field, len(t.Columns))
		for i, c := range t.Columns {
			rec[i] = Field{Name: c, Value: row[i]}
		}
		out[r] = rec
	}
	return out
}

// Fingerprint is an xxh3 digest of the columns and cell values. Two
// extractions of unchanged data produce the same fingerprint.
func (t *Table) Fingerprint() uint64 {
	h := xxh3.New()
	var buf [8]byte

	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(s)
	}
	writeUint := func(tag byte, u uint64) {
		_, _ = h.Write([]byte{tag})
		binary.LittleEndian.PutUint64(buf[:], u)
		_, _ = h.Write(buf[:])
	}

	for _, c := range t.Columns {
		writeString(c)
	}
	for _, row := range t.Rows {
		for _, v := range row {
			switch x := v.(type) {
			case nil:
				_, _ = h.Write([]byte{0})
			case int64:
				writeUint(1, uint64(x))
			case float64:
				writeUint(2, math.Float64bits(x))
			case bool:
				b := uint64(0)
				if x {
					b = 1
				}
				writeUint(3, b)
			case time.Time:
				writeUint(4, uint64(x.UnixNano()))
			case string:
				_, _ = h.Write([]byte{5})
				writeString(x)
			default:
				_, _ = h.Write([]byte{6})
				writeString(fmt.Sprint(x))
			}
		}
	}
	return h.Sum64()
}
