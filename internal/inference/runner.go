package inference

// runner.go drives the batched review of a dataset. The runner issues a
// fixed number of in-flight requests at a time, waits for the whole batch,
// merges the batch's patches into the dataset and only then moves on, with
// a cool-down pause between batches for the downstream rate limit.
//
// Ordering guarantee: no patch from batch N+1 is visible before all of
// batch N is merged. Cancellation is cooperative and checked at batch
// boundaries only; an in-flight batch always runs to completion.

import (
	"context"
	"sync"
	"time"

	"github.com/weMaron/excel-processor/internal/dataset"
)

// DefaultBatchSize is how many rows are in flight at once.
const DefaultBatchSize = 3

// DefaultCooldown is the pause between batches.
const DefaultCooldown = 2 * time.Second

// FailureReasoning is the reason recorded for a row whose remote call
// failed outright.
const FailureReasoning = "Verwerking mislukt"

// Progress is a snapshot of a run's state.
type Progress struct {
	Total   int  `json:"total"`
	Done    int  `json:"done"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	Running bool `json:"running"`
}

// Percent returns run completion as 0-100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return (p.Done * 100) / p.Total
}

// ProgressFunc receives a progress snapshot after every merged batch.
type ProgressFunc func(Progress)

// Runner batches rows through an Engine and merges verdicts into the
// dataset between batches.
type Runner struct {
	engine    Engine
	batchSize int
	cooldown  time.Duration
}

// NewRunner creates a runner. Non-positive batchSize or negative cooldown
// fall back to the defaults.
func NewRunner(engine Engine, batchSize int, cooldown time.Duration) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Runner{engine: engine, batchSize: batchSize, cooldown: cooldown}
}

// Run reviews every row of the dataset that does not already carry an
// approving verdict. Per-row failures are recorded as error markers on the
// row and never abort the batch or the run. Returns the context error if
// cancelled at a batch boundary.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, instruction string, onProgress ProgressFunc) error {
	rows := ds.Rows()
	descriptors := ds.Descriptors()

	pending := make([]dataset.TypedRow, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if IsApproved(row.Fields[StatusField].StringForm()) {
			skipped++
			continue
		}
		pending = append(pending, row)
	}

	progress := Progress{Total: len(pending), Skipped: skipped, Running: true}
	report := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}
	report()

	for start := 0; start < len(pending); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			progress.Running = false
			report()
			return err
		}

		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		patches := r.runBatch(ctx, batch, instruction, descriptors, &progress)

		// Merge before the next batch dispatches so progressively updated
		// state stays consistent.
		ds.Merge(patches)
		progress.Done += len(batch)
		report()

		if end < len(pending) && r.cooldown > 0 {
			select {
			case <-ctx.Done():
				progress.Running = false
				report()
				return ctx.Err()
			case <-time.After(r.cooldown):
			}
		}
	}

	progress.Running = false
	report()
	return nil
}

// runBatch evaluates one batch concurrently and collects a patch per row.
// A failed call yields an error marker patch instead of aborting siblings.
func (r *Runner) runBatch(ctx context.Context, batch []dataset.TypedRow, instruction string, descriptors []dataset.ColumnDescriptor, progress *Progress) []dataset.Patch {
	patches := make([]dataset.Patch, len(batch))
	var failed int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, row := range batch {
		wg.Add(1)
		go func(i int, row dataset.TypedRow) {
			defer wg.Done()

			result, err := r.engine.Evaluate(ctx, Request{
				Row:         row,
				Instruction: instruction,
				Descriptors: descriptors,
			})
			if err != nil {
				result = Result{Status: "Error", Reasoning: FailureReasoning}
				mu.Lock()
				failed++
				mu.Unlock()
			}

			patches[i] = dataset.Patch{
				RowID: row.ID,
				Fields: map[string]dataset.Value{
					StatusField:    dataset.String(result.Status),
					ReasoningField: dataset.String(result.Reasoning),
				},
			}
		}(i, row)
	}
	wg.Wait()

	progress.Failed += failed
	return patches
}
