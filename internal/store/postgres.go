package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
)

// duplicate_table, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgDuplicateTable = "42P07"

// PostgresStore targets PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolSettings tunes the pgx pool backing a PostgresStore.
type PoolSettings struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenPostgres connects to url and verifies the connection with a ping.
func OpenPostgres(ctx context.Context, url string, settings PoolSettings) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if settings.MaxConns > 0 {
		poolConfig.MaxConns = int32(settings.MaxConns)
	}
	if settings.MinConns > 0 {
		poolConfig.MinConns = int32(settings.MinConns)
	}
	if settings.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	}
	if settings.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// CreateTable implements Store.
func (s *PostgresStore) CreateTable(ctx context.Context, table string, schema infer.Schema) error {
	_, err := s.pool.Exec(ctx, createTableSQL(DialectPostgres, table, schema))
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateTable {
		return &TableExistsError{Table: table}
	}
	return &DDLError{Table: table, Err: err}
}

// InsertBatch implements Store using COPY, which is atomic per call: a
// failure anywhere rolls back the whole batch.
func (s *PostgresStore) InsertBatch(ctx context.Context, table string, schema infer.Schema, rows []csv.Row) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		converted := make([]any, len(schema))
		for j, col := range schema {
			v, err := toPgValue(col.Type, row[col.Name])
			if err != nil {
				return fmt.Errorf("row %d, column %q: %w", i+1, col.Name, err)
			}
			converted[j] = v
		}
		values[i] = converted
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, schema.Names(), pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("copy into %q: %w", table, err)
	}
	return nil
}

// Close releases the pool. Safe only once no batch insert is in flight.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// toPgValue converts a raw cell into the pgtype value for the locked column
// type. Empty cells map to invalid (NULL) pgtype values.
func toPgValue(t infer.ColumnType, raw string) (any, error) {
	v, err := convertValue(t, raw)
	if err != nil {
		return nil, err
	}

	switch t {
	case infer.TypeInteger:
		if v == nil {
			return pgtype.Int8{}, nil
		}
		return pgtype.Int8{Int64: v.(int64), Valid: true}, nil
	case infer.TypeDateTime:
		if v == nil {
			return pgtype.Timestamptz{}, nil
		}
		return pgtype.Timestamptz{Time: v.(time.Time), Valid: true}, nil
	default:
		if v == nil {
			return pgtype.Text{}, nil
		}
		return pgtype.Text{String: v.(string), Valid: true}, nil
	}
}
