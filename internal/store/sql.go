package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
)

const mysqlTableExists = 1050 // ER_TABLE_EXISTS_ERROR

// SQLStore targets SQLite or MySQL through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens a database/sql backend. Supported drivers are "sqlite"
// (modernc, cgo-free) and "mysql".
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var dialect Dialect
	switch driver {
	case "sqlite":
		dialect = DialectSQLite
	case "mysql":
		dialect = DialectMySQL
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return &SQLStore{db: db, dialect: dialect}, nil
}

// CreateTable implements Store.
func (s *SQLStore) CreateTable(ctx context.Context, table string, schema infer.Schema) error {
	_, err := s.db.ExecContext(ctx, createTableSQL(s.dialect, table, schema))
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlTableExists {
		return &TableExistsError{Table: table}
	}
	// modernc/sqlite reports duplicates only through the message text.
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return &TableExistsError{Table: table}
	}
	return &DDLError{Table: table, Err: err}
}

// InsertBatch implements Store. Each batch runs in its own transaction so a
// failed row rolls back the whole batch and later batches start clean.
func (s *SQLStore) InsertBatch(ctx context.Context, table string, schema infer.Schema, rows []csv.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(s.dialect, table, schema))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(schema))
	for i, row := range rows {
		for j, col := range schema {
			v, err := convertValue(col.Type, row[col.Name])
			if err != nil {
				return fmt.Errorf("row %d, column %q: %w", i+1, col.Name, err)
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func insertSQL(d Dialect, table string, schema infer.Schema) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.quoteIdent(table))
	b.WriteString(" (")
	for i, col := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.quoteIdent(col.Name))
	}
	b.WriteString(") VALUES (")
	for i := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}
