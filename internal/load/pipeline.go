// Package load drives table loads: it wires a row source through schema
// inference, table creation, and the batching insert pipeline, and reports
// one result per target table.
package load

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
	"github.com/datayard/tabload/internal/store"
)

// DefaultBatchSize is the number of rows per sealed insert batch.
const DefaultBatchSize = 100

// contextCheckInterval is how often (in rows) the read loop checks for
// cancellation. Checking every row is needless overhead.
const contextCheckInterval = 100

// Source yields the rows of one table load. *csv.File satisfies it.
type Source interface {
	Header() []string
	Next() (csv.Row, error)
	Close() error
}

// pipeline streams every row from a source into one target table, inserting
// in sealed batches of fixed capacity.
//
// Reading and inserting are pipelined: sealed batches travel over a channel
// to a single inserter goroutine, so a slow read never stalls an in-flight
// insert and a slow insert lets at most one extra batch accumulate. The
// single inserter keeps batch completion in seal order, and run only returns
// once the inserter has drained every submitted batch.
type pipeline struct {
	store     store.Store
	table     string
	schema    infer.Schema
	batchSize int
	log       *slog.Logger
}

type batch struct {
	rows []csv.Row
	// first is the 1-based ordinal of the batch's first data row.
	first int
}

type pipelineResult struct {
	rowsRead     int
	rowsInserted int
	batchErrs    []error
	sourceErr    error
}

func (p *pipeline) run(ctx context.Context, src Source) pipelineResult {
	size := p.batchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make(chan batch, 1)

	var (
		inserted  int
		batchErrs []error
	)

	// Inserted counts and errors are only read after g.Wait, so the
	// inserter goroutine owns them unshared.
	var g errgroup.Group
	g.Go(func() error {
		for b := range batches {
			if err := p.store.InsertBatch(ctx, p.table, p.schema, b.rows); err != nil {
				last := b.first + len(b.rows) - 1
				p.log.Warn("batch insert failed", "first_row", b.first, "last_row", last, "error", err)
				batchErrs = append(batchErrs, &store.BatchInsertError{
					Table:    p.table,
					FirstRow: b.first,
					LastRow:  last,
					Err:      err,
				})
				continue
			}
			inserted += len(b.rows)
			p.log.Debug("batch inserted", "first_row", b.first, "rows", len(b.rows))
		}
		return nil
	})

	var (
		pending = make([]csv.Row, 0, size)
		first   = 1
		read    = 0
		srcErr  error
	)

	for {
		if read%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				srcErr = err
				break
			}
		}

		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			srcErr = err
			break
		}

		read++
		pending = append(pending, row)
		if len(pending) == size {
			batches <- batch{rows: pending, first: first}
			first += len(pending)
			pending = make([]csv.Row, 0, size)
		}
	}

	// A trailing partial batch is sealed and submitted on clean exhaustion.
	// After a source error nothing new is started; already-sealed batches
	// still drain below.
	if srcErr == nil && len(pending) > 0 {
		batches <- batch{rows: pending, first: first}
	}
	close(batches)

	// Done means source finished AND every submitted insert resolved.
	_ = g.Wait()

	return pipelineResult{
		rowsRead:     read,
		rowsInserted: inserted,
		batchErrs:    batchErrs,
		sourceErr:    srcErr,
	}
}
