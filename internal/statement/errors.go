package statement

import (
	"errors"
	"fmt"
	"strings"

	"ferc/internal/catalog"
)

var (
	// ErrInvalidFilterValue is returned when the subject identifier is empty
	// or blank. The source is never queried in that case.
	ErrInvalidFilterValue = errors.New("invalid filter value")

	// ErrUnsupportedStatement: the statement name does not resolve on the form.
	ErrUnsupportedStatement = catalog.ErrUnsupportedStatement

	// ErrUnknownStatementType: no schema for the (statement type, form) pair.
	ErrUnknownStatementType = catalog.ErrUnknownStatementType

	// ErrSourceUnavailable wraps any failure to open or query the filings
	// database.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSchemaFieldMissing is returned in strict mode when the source table
	// lacks one or more schema fields.
	ErrSchemaFieldMissing = errors.New("schema field missing")
)

// Error annotates a failure with the request it belongs to. It unwraps to
// one of the sentinels above.
type Error struct {
	Op        string // "extract", "extract_all"
	Form      int
	Statement string
	SubjectID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("statement: ")
	b.WriteString(e.Op)
	if e.Form != 0 {
		fmt.Fprintf(&b, " form=%d", e.Form)
	}
	if e.Statement != "" {
		fmt.Fprintf(&b, " statement=%q", e.Statement)
	}
	if e.SubjectID != "" {
		fmt.Fprintf(&b, " subject=%q", e.SubjectID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
