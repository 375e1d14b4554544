package sqljson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for the failure kinds of query generation.
// All of them are deterministic problems with a query definition or the
// schema metadata it refers to: retrying never helps, and a failure only
// affects the query that caused it.
//
// Use the Is*Err helper functions to test for a kind regardless of the
// typed error carrying the details.
var (
	// ErrUnknownSchemaReference is returned when a query names a table or
	// column that does not exist in the database metadata.
	ErrUnknownSchemaReference = errors.New("sqljson: unknown schema reference")

	// ErrNoMatchingForeignKey is returned when no foreign key connects the
	// two tables of a parent or child relationship.
	ErrNoMatchingForeignKey = errors.New("sqljson: no matching foreign key")

	// ErrAmbiguousForeignKey is returned when several foreign keys connect
	// the two tables and the query does not list join fields to pick one.
	ErrAmbiguousForeignKey = errors.New("sqljson: ambiguous foreign key")

	// ErrInvalidUnwrap is returned when unwrap is requested for a child
	// collection whose rows do not have exactly one field.
	ErrInvalidUnwrap = errors.New("sqljson: invalid unwrap")

	// ErrConflictingFieldName is returned when two fields would share an
	// output name in the same JSON object after inlining.
	ErrConflictingFieldName = errors.New("sqljson: conflicting field name")

	// ErrInvalidQuery is returned for query definitions that are malformed
	// independently of the database metadata.
	ErrInvalidQuery = errors.New("sqljson: invalid query definition")

	// ErrUnsupportedDialect is returned when no SQL dialect is available
	// for the database named by the metadata or configuration.
	ErrUnsupportedDialect = errors.New("sqljson: unsupported sql dialect")
)

// IsUnknownSchemaReferenceErr returns true if err is or wraps ErrUnknownSchemaReference.
func IsUnknownSchemaReferenceErr(err error) bool {
	return errors.Is(err, ErrUnknownSchemaReference)
}

// IsNoMatchingForeignKeyErr returns true if err is or wraps ErrNoMatchingForeignKey.
func IsNoMatchingForeignKeyErr(err error) bool {
	return errors.Is(err, ErrNoMatchingForeignKey)
}

// IsAmbiguousForeignKeyErr returns true if err is or wraps ErrAmbiguousForeignKey.
func IsAmbiguousForeignKeyErr(err error) bool {
	return errors.Is(err, ErrAmbiguousForeignKey)
}

// IsInvalidUnwrapErr returns true if err is or wraps ErrInvalidUnwrap.
func IsInvalidUnwrapErr(err error) bool {
	return errors.Is(err, ErrInvalidUnwrap)
}

// IsConflictingFieldNameErr returns true if err is or wraps ErrConflictingFieldName.
func IsConflictingFieldNameErr(err error) bool {
	return errors.Is(err, ErrConflictingFieldName)
}

// IsInvalidQueryErr returns true if err is or wraps ErrInvalidQuery.
func IsInvalidQueryErr(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}

// Location identifies where in a query definition an error was found.
// Path lists the nested relations walked from the root table, outermost
// first.
type Location struct {
	Query string
	Path  []string
}

// At returns a copy of the location extended by one path element.
func (l Location) At(part string) Location {
	path := make([]string, len(l.Path), len(l.Path)+1)
	copy(path, l.Path)
	return Location{Query: l.Query, Path: append(path, part)}
}

// String renders the location as `query "name" at a / b`.
func (l Location) String() string {
	var b strings.Builder
	if l.Query != "" {
		b.WriteString("query ")
		b.WriteString(strconv.Quote(l.Query))
	}
	if len(l.Path) > 0 {
		if b.Len() > 0 {
			b.WriteString(" at ")
		}
		b.WriteString(strings.Join(l.Path, " / "))
	}
	return b.String()
}

func writeLocation(b *strings.Builder, l Location) {
	if s := l.String(); s != "" {
		b.WriteString(" in ")
		b.WriteString(s)
	}
}

// UnknownReferenceError reports a table or column missing from the metadata.
type UnknownReferenceError struct {
	Location Location
	Table    string
	Column   string // empty when the table itself is unknown
}

// Error implements the error interface.
func (e *UnknownReferenceError) Error() string {
	var b strings.Builder
	b.WriteString("sqljson: ")
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q not found in table %q", e.Column, e.Table)
	} else {
		fmt.Fprintf(&b, "table %q not found", e.Table)
	}
	writeLocation(&b, e.Location)
	return b.String()
}

// Is reports whether the target matches ErrUnknownSchemaReference.
func (e *UnknownReferenceError) Is(target error) bool {
	return target == ErrUnknownSchemaReference
}

// NewUnknownTableError creates an UnknownReferenceError for a table.
func NewUnknownTableError(loc Location, table string) *UnknownReferenceError {
	return &UnknownReferenceError{Location: loc, Table: table}
}

// NewUnknownColumnError creates an UnknownReferenceError for a column.
func NewUnknownColumnError(loc Location, table, column string) *UnknownReferenceError {
	return &UnknownReferenceError{Location: loc, Table: table, Column: column}
}

// ColumnPair is one child column / parent column component of a foreign key.
type ColumnPair struct {
	Child  string
	Parent string
}

// ForeignKeyError reports a relationship that could not be resolved to
// exactly one foreign key. Candidates is set only for ambiguous matches and
// lists the column pairs of every foreign key that could have been used.
type ForeignKeyError struct {
	Location   Location
	Child      string
	Parent     string
	Fields     []string
	Candidates [][]ColumnPair
}

// Ambiguous reports whether more than one foreign key matched.
func (e *ForeignKeyError) Ambiguous() bool {
	return len(e.Candidates) > 1
}

// Error implements the error interface.
func (e *ForeignKeyError) Error() string {
	var b strings.Builder
	b.WriteString("sqljson: ")
	if e.Ambiguous() {
		fmt.Fprintf(&b, "%d foreign keys from %q to %q", len(e.Candidates), e.Child, e.Parent)
	} else {
		fmt.Fprintf(&b, "no foreign key from %q to %q", e.Child, e.Parent)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " with fields (%s)", strings.Join(e.Fields, ", "))
	}
	writeLocation(&b, e.Location)
	if e.Ambiguous() {
		b.WriteString("; candidates:")
		for _, cand := range e.Candidates {
			b.WriteString(" [")
			for i, p := range cand {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Child)
				b.WriteString("->")
				b.WriteString(p.Parent)
			}
			b.WriteString("]")
		}
	}
	return b.String()
}

// Is reports whether the target matches the sentinel for the match count.
func (e *ForeignKeyError) Is(target error) bool {
	if e.Ambiguous() {
		return target == ErrAmbiguousForeignKey
	}
	return target == ErrNoMatchingForeignKey
}

// UnwrapError reports an unwrapped collection without exactly one field.
type UnwrapError struct {
	Location   Location
	Collection string
	FieldCount int
}

// Error implements the error interface.
func (e *UnwrapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sqljson: collection %q cannot be unwrapped: its rows have %d fields, unwrap needs exactly 1",
		e.Collection, e.FieldCount)
	writeLocation(&b, e.Location)
	return b.String()
}

// Is reports whether the target matches ErrInvalidUnwrap.
func (e *UnwrapError) Is(target error) bool {
	return target == ErrInvalidUnwrap
}

// FieldConflictError reports two fields with the same output name.
type FieldConflictError struct {
	Location Location
	Table    string
	Field    string
}

// Error implements the error interface.
func (e *FieldConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sqljson: output field %q occurs more than once in the object for table %q", e.Field, e.Table)
	writeLocation(&b, e.Location)
	return b.String()
}

// Is reports whether the target matches ErrConflictingFieldName.
func (e *FieldConflictError) Is(target error) bool {
	return target == ErrConflictingFieldName
}

// QueryError reports a malformed query definition.
type QueryError struct {
	Location Location
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString("sqljson: invalid query definition")
	writeLocation(&b, e.Location)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrInvalidQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// NewQueryError creates a QueryError with a formatted message.
func NewQueryError(loc Location, format string, args ...any) *QueryError {
	return &QueryError{Location: loc, Message: fmt.Sprintf(format, args...)}
}
