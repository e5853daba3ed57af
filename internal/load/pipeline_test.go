package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/datayard/tabload/internal/csv"
	"github.com/datayard/tabload/internal/infer"
	"github.com/datayard/tabload/internal/store"
)

var testSchema = infer.Schema{
	{Name: "id", Type: infer.TypeInteger},
	{Name: "name", Type: infer.TypeString},
}

func testRows(n int) []csv.Row {
	rows := make([]csv.Row, n)
	for i := range rows {
		rows[i] = csv.Row{"id": fmt.Sprintf("%d", i+1), "name": "row"}
	}
	return rows
}

// memSource yields canned rows, optionally failing at a given row ordinal.
type memSource struct {
	header []string
	rows   []csv.Row
	pos    int
	failAt int // 1-based ordinal at which Next errors; 0 = never
	closed bool
}

func (m *memSource) Header() []string { return m.header }

func (m *memSource) Next() (csv.Row, error) {
	if m.failAt > 0 && m.pos+1 == m.failAt {
		return nil, &csv.ReadError{Path: "mem", Line: m.failAt + 1, Err: errors.New("simulated read failure")}
	}
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

func (m *memSource) Close() error {
	m.closed = true
	return nil
}

// fakeStore records creates and batch inserts; selected batch ordinals can
// be made to fail.
type fakeStore struct {
	mu          sync.Mutex
	created     map[string]infer.Schema
	batches     map[string][][]csv.Row
	failBatch   map[int]bool // per-table 1-based batch ordinal
	batchCount  map[string]int
	createErr   error
	closedCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		created:    make(map[string]infer.Schema),
		batches:    make(map[string][][]csv.Row),
		failBatch:  make(map[int]bool),
		batchCount: make(map[string]int),
	}
}

func (f *fakeStore) CreateTable(ctx context.Context, table string, schema infer.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.created[table]; ok {
		return &store.TableExistsError{Table: table}
	}
	f.created[table] = schema
	return nil
}

func (f *fakeStore) InsertBatch(ctx context.Context, table string, schema infer.Schema, rows []csv.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCount[table]++
	if f.failBatch[f.batchCount[table]] {
		return errors.New("simulated insert failure")
	}
	copied := make([]csv.Row, len(rows))
	copy(copied, rows)
	f.batches[table] = append(f.batches[table], copied)
	return nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedCount++
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runPipeline(t *testing.T, st store.Store, src Source, batchSize int) pipelineResult {
	t.Helper()
	p := &pipeline{
		store:     st,
		table:     "events",
		schema:    testSchema,
		batchSize: batchSize,
		log:       quietLogger(),
	}
	return p.run(context.Background(), src)
}

func TestPipelineBatchSizing(t *testing.T) {
	tests := []struct {
		name        string
		rows        int
		wantBatches []int
	}{
		{"single partial batch", 7, []int{7}},
		{"exact multiple", 200, []int{100, 100}},
		{"trailing partial batch", 250, []int{100, 100, 50}},
		{"single full batch", 100, []int{100}},
		{"no rows", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			src := &memSource{header: []string{"id", "name"}, rows: testRows(tt.rows)}

			res := runPipeline(t, st, src, 100)

			if res.sourceErr != nil || len(res.batchErrs) != 0 {
				t.Fatalf("unexpected errors: source=%v batch=%v", res.sourceErr, res.batchErrs)
			}
			if res.rowsRead != tt.rows || res.rowsInserted != tt.rows {
				t.Errorf("read=%d inserted=%d, want both %d", res.rowsRead, res.rowsInserted, tt.rows)
			}

			got := st.batches["events"]
			if len(got) != len(tt.wantBatches) {
				t.Fatalf("got %d batches, want %d", len(got), len(tt.wantBatches))
			}
			total := 0
			for i, b := range got {
				if len(b) != tt.wantBatches[i] {
					t.Errorf("batch %d has %d rows, want %d", i+1, len(b), tt.wantBatches[i])
				}
				total += len(b)
			}
			if total != tt.rows {
				t.Errorf("rows across batches = %d, want %d", total, tt.rows)
			}
		})
	}
}

func TestPipelinePreservesRowOrder(t *testing.T) {
	st := newFakeStore()
	src := &memSource{header: []string{"id", "name"}, rows: testRows(250)}

	runPipeline(t, st, src, 100)

	want := 1
	for _, b := range st.batches["events"] {
		for _, row := range b {
			if row["id"] != fmt.Sprintf("%d", want) {
				t.Fatalf("row out of order: got id %s, want %d", row["id"], want)
			}
			want++
		}
	}
}

func TestPipelinePartialFailureIsolation(t *testing.T) {
	st := newFakeStore()
	st.failBatch[3] = true // batch 3 of 5
	src := &memSource{header: []string{"id", "name"}, rows: testRows(500)}

	res := runPipeline(t, st, src, 100)

	if res.rowsRead != 500 {
		t.Errorf("rowsRead = %d, want 500", res.rowsRead)
	}
	if res.rowsInserted != 400 {
		t.Errorf("rowsInserted = %d, want 400 (4 good batches)", res.rowsInserted)
	}
	if st.batchCount["events"] != 5 {
		t.Errorf("insert attempts = %d, want 5 (later batches still attempted)", st.batchCount["events"])
	}

	if len(res.batchErrs) != 1 {
		t.Fatalf("got %d batch errors, want 1", len(res.batchErrs))
	}
	var be *store.BatchInsertError
	if !errors.As(res.batchErrs[0], &be) {
		t.Fatalf("batch error type = %T", res.batchErrs[0])
	}
	if be.FirstRow != 201 || be.LastRow != 300 {
		t.Errorf("failed range = %d-%d, want 201-300", be.FirstRow, be.LastRow)
	}
}

func TestPipelineSourceErrorStopsNewBatches(t *testing.T) {
	st := newFakeStore()
	// Fails while the third batch is accumulating: two sealed batches are
	// in flight or done, the partial third must not be submitted.
	src := &memSource{header: []string{"id", "name"}, rows: testRows(500), failAt: 250}

	res := runPipeline(t, st, src, 100)

	if res.sourceErr == nil {
		t.Fatal("expected source error")
	}
	var re *csv.ReadError
	if !errors.As(res.sourceErr, &re) {
		t.Errorf("source error type = %T", res.sourceErr)
	}
	if res.rowsRead != 249 {
		t.Errorf("rowsRead = %d, want 249", res.rowsRead)
	}
	if res.rowsInserted != 200 {
		t.Errorf("rowsInserted = %d, want 200 (only sealed batches)", res.rowsInserted)
	}
	if got := len(st.batches["events"]); got != 2 {
		t.Errorf("batches submitted = %d, want 2", got)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	st := newFakeStore()
	src := &memSource{header: []string{"id", "name"}, rows: testRows(500)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &pipeline{store: st, table: "events", schema: testSchema, batchSize: 100, log: quietLogger()}
	res := p.run(ctx, src)

	if !errors.Is(res.sourceErr, context.Canceled) {
		t.Errorf("sourceErr = %v, want context.Canceled", res.sourceErr)
	}
	if res.rowsInserted != 0 {
		t.Errorf("rowsInserted = %d, want 0", res.rowsInserted)
	}
}
