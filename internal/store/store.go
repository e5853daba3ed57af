// Package store abstracts the relational backends a load can target.
//
// The loader only ever issues two requests against a backend: create a table
// from an inferred schema, and insert one sealed batch of rows. Connection
// management stays inside each implementation; callers hold a Store open for
// the lifetime of a load job and Close it only after every result is final.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
)

// Store is a relational backend capable of receiving a table load.
type Store interface {
	// CreateTable creates a new table with one nullable column per schema
	// entry. It returns *TableExistsError when the table is already there
	// and *DDLError for any other backend failure.
	CreateTable(ctx context.Context, table string, schema infer.Schema) error

	// InsertBatch inserts rows as a single unit: either every row in the
	// batch is committed or none is.
	InsertBatch(ctx context.Context, table string, schema infer.Schema, rows []csv.Row) error

	Close() error
}

// TableExistsError reports that the target table already exists. The caller
// may treat this as recoverable (skip or drop-and-recreate).
type TableExistsError struct {
	Table string
}

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Table)
}

// DDLError reports a backend failure creating a table. Not retried.
type DDLError struct {
	Table string
	Err   error
}

func (e *DDLError) Error() string {
	return fmt.Sprintf("create table %q: %v", e.Table, e.Err)
}

func (e *DDLError) Unwrap() error { return e.Err }

// BatchInsertError reports a failed batch insert. FirstRow and LastRow are
// 1-based data row ordinals identifying which slice of the source the batch
// covered.
type BatchInsertError struct {
	Table    string
	FirstRow int
	LastRow  int
	Err      error
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("insert rows %d-%d into %q: %v", e.FirstRow, e.LastRow, e.Table, e.Err)
}

func (e *BatchInsertError) Unwrap() error { return e.Err }

// Dialect selects the SQL flavor used for DDL and placeholders.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	case DialectMySQL:
		return "mysql"
	default:
		return "postgres"
	}
}

// columnType maps an inferred type to this dialect's column type. All
// columns are nullable; the backend default null handling applies.
func (d Dialect) columnType(t infer.ColumnType) string {
	switch t {
	case infer.TypeInteger:
		if d == DialectSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case infer.TypeDateTime:
		switch d {
		case DialectPostgres:
			return "TIMESTAMPTZ"
		case DialectMySQL:
			return "DATETIME"
		default:
			return "TIMESTAMP"
		}
	default:
		return "TEXT"
	}
}

// quoteIdent quotes a table or column identifier for this dialect.
func (d Dialect) quoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTableSQL renders the CREATE TABLE statement for an inferred schema.
func createTableSQL(d Dialect, table string, schema infer.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.quoteIdent(table))
	b.WriteString(" (")
	for i, col := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.quoteIdent(col.Name))
		b.WriteByte(' ')
		b.WriteString(d.columnType(col.Type))
	}
	b.WriteString(")")
	return b.String()
}

// convertValue turns a raw cell into a driver value for the locked column
// type. Empty cells become NULL. A cell the locked type cannot represent is
// an error; the caller reports it for the whole batch, since a batch insert
// is all-or-nothing.
func convertValue(t infer.ColumnType, raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	switch t {
	case infer.TypeInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer: %w", raw, err)
		}
		return i, nil
	case infer.TypeDateTime:
		ts, ok := infer.ParseDateTime(raw)
		if !ok {
			return nil, fmt.Errorf("value %q is not a date/time", raw)
		}
		return ts, nil
	default:
		return raw, nil
	}
}
