package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
	"github.com/datayard/tabload/internal/logging"
	"github.com/datayard/tabload/internal/store"
)

// TableSpec names one load: a source file and the table it becomes.
type TableSpec struct {
	SourcePath string
	Table      string
}

// Result is the outcome of one table's load.
type Result struct {
	Table        string
	LoadID       string
	RowsRead     int
	RowsInserted int
	Duration     time.Duration
	Err          error
}

// Succeeded reports whether every observed row was inserted without error.
func (r Result) Succeeded() bool { return r.Err == nil }

// PartialLoadError aggregates the tables that failed after every table was
// attempted.
type PartialLoadError struct {
	Failed []string
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("%d table(s) failed to load: %s", len(e.Failed), strings.Join(e.Failed, ", "))
}

// Options tunes an Orchestrator.
type Options struct {
	// BatchSize is rows per insert batch (default DefaultBatchSize).
	BatchSize int

	// MaxConcurrent is how many tables load in parallel. Values below 2
	// load sequentially. Parallel loads need no cross-table locking since
	// each targets a distinct table.
	MaxConcurrent int

	// OpenSource opens a source path. Defaults to the csv file source;
	// tests substitute in-memory sources.
	OpenSource func(path string) (Source, error)
}

// Orchestrator runs table loads against one shared store. The store must
// stay open until Load returns; the orchestrator never closes it.
type Orchestrator struct {
	store store.Store
	opts  Options
}

func NewOrchestrator(st store.Store, opts Options) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.OpenSource == nil {
		opts.OpenSource = func(path string) (Source, error) {
			return csv.Open(path)
		}
	}
	return &Orchestrator{store: st, opts: opts}
}

// Load runs every spec, isolating failures per table: one table's error
// never stops the others. Results come back in spec order. When at least
// one table failed, the returned error is a *PartialLoadError naming them;
// per-table detail stays on the Results.
func (o *Orchestrator) Load(ctx context.Context, specs []TableSpec) ([]Result, error) {
	results := make([]Result, len(specs))

	if o.opts.MaxConcurrent > 1 {
		var g errgroup.Group
		g.SetLimit(o.opts.MaxConcurrent)
		for i, spec := range specs {
			i, spec := i, spec
			g.Go(func() error {
				results[i] = o.loadOne(ctx, spec)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, spec := range specs {
			results[i] = o.loadOne(ctx, spec)
		}
	}

	var failed []string
	for _, r := range results {
		if !r.Succeeded() {
			failed = append(failed, r.Table)
		}
	}
	if len(failed) > 0 {
		return results, &PartialLoadError{Failed: failed}
	}
	return results, nil
}

// loadOne runs inference, table creation, and the insert pipeline for a
// single table. Inference and DDL failures abort the table before any row
// is written; batch failures are carried on the result instead.
func (o *Orchestrator) loadOne(ctx context.Context, spec TableSpec) Result {
	start := time.Now()
	res := Result{Table: spec.Table, LoadID: uuid.New().String()}
	ctx = logging.ContextWithLoadID(ctx, res.LoadID)
	log := logging.WithFields(ctx, "table", spec.Table)

	src, err := o.opts.OpenSource(spec.SourcePath)
	if err != nil {
		res.Err = err
		return res
	}
	defer src.Close()

	// The first data row both locks the schema and is replayed to the
	// pipeline, so the source is consumed in a single pass.
	firstRow, err := src.Next()
	if err == io.EOF {
		res.Err = fmt.Errorf("%s: %w", spec.SourcePath, infer.ErrEmptySource)
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}

	schema, err := infer.InferSchema(src.Header(), firstRow)
	if err != nil {
		res.Err = err
		return res
	}
	log.Info("schema inferred", "columns", len(schema))

	if err := o.store.CreateTable(ctx, spec.Table, schema); err != nil {
		res.Err = err
		return res
	}

	p := &pipeline{
		store:     o.store,
		table:     spec.Table,
		schema:    schema,
		batchSize: o.opts.BatchSize,
		log:       log,
	}
	pr := p.run(ctx, &replaySource{first: firstRow, src: src})

	res.RowsRead = pr.rowsRead
	res.RowsInserted = pr.rowsInserted
	res.Duration = time.Since(start)

	errs := append([]error{pr.sourceErr}, pr.batchErrs...)
	res.Err = errors.Join(errs...)

	log.Info("load finished",
		"rows_read", res.RowsRead,
		"rows_inserted", res.RowsInserted,
		"duration", res.Duration,
		"succeeded", res.Succeeded(),
	)
	return res
}

// replaySource hands back the row consumed for inference before resuming
// the underlying source.
type replaySource struct {
	src      Source
	first    csv.Row
	replayed bool
}

func (r *replaySource) Header() []string { return r.src.Header() }

func (r *replaySource) Next() (csv.Row, error) {
	if !r.replayed {
		r.replayed = true
		return r.first, nil
	}
	return r.src.Next()
}

func (r *replaySource) Close() error { return r.src.Close() }
