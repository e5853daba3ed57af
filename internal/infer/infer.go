// Package infer derives a table schema from a delimited source's header and
// its first data row.
//
// Inference is single-sample: each column's type is decided from the first
// data row's value and never re-evaluated. A later row that disagrees with a
// locked type does not change the schema; it surfaces as an insert failure
// for its batch instead. This keeps inference O(1) in rows and lets loading
// start after a single record, at the cost of being sensitive to an atypical
// first row. Do not add multi-row voting here without treating it as a
// behavior change.
package infer

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/datayard/tabload/internal/csv"
)

// ColumnType is the inferred storage type of a column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInteger
	TypeDateTime
)

// String returns the type name for logging and DDL mapping.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDateTime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is one inferred column: its source name and locked type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list for one table. Order matches the
// source header. A Schema is immutable once built.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// ErrEmptySource reports a source with no data row to infer from.
// No table is created for such a source.
var ErrEmptySource = errors.New("source has no data rows")

// SchemaConflictError reports a header with a duplicate column name.
type SchemaConflictError struct {
	Column string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("duplicate column %q in header", e.Column)
}

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// InferSchema builds a Schema from the header and the first data row.
//
// Column order follows the header. Per column the first row's value is
// tested in strict precedence: integer, then date/time, then string. An
// empty value types the column as string.
func InferSchema(header []string, first csv.Row) (Schema, error) {
	if len(header) == 0 || first == nil {
		return nil, ErrEmptySource
	}

	seen := make(map[string]bool, len(header))
	schema := make(Schema, 0, len(header))

	for _, name := range header {
		if seen[name] {
			return nil, &SchemaConflictError{Column: name}
		}
		seen[name] = true
		schema = append(schema, Column{Name: name, Type: inferType(first[name])})
	}
	return schema, nil
}

func inferType(value string) ColumnType {
	switch {
	case integerPattern.MatchString(value):
		return TypeInteger
	case isDateTime(value):
		return TypeDateTime
	default:
		return TypeString
	}
}

func isDateTime(value string) bool {
	_, ok := ParseDateTime(value)
	return ok
}
