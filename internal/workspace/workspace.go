// Package workspace holds the single-user session state: the uploaded
// sheet, the confirmed dataset, the active filter rules, the review
// instruction and the report settings. All mutation goes through the
// Workspace mutex; the derived filtered view is recomputed on demand and
// never stored.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/inference"
	"github.com/weMaron/excel-processor/internal/ingest"
	"github.com/weMaron/excel-processor/internal/profile"
	"github.com/weMaron/excel-processor/internal/report"
)

// ErrNoSheet is returned when an operation needs an uploaded sheet first.
var ErrNoSheet = errors.New("no sheet uploaded")

// ErrNoDataset is returned when an operation needs a confirmed mapping first.
var ErrNoDataset = errors.New("column mapping not confirmed")

// Options configures run pacing.
type Options struct {
	BatchSize int           // rows in flight per batch (default 3)
	Cooldown  time.Duration // pause between batches (default 2s)
}

// Workspace is the stateful service behind the HTTP layer.
type Workspace struct {
	opts    Options
	limiter *inference.RunLimiter

	mu          sync.RWMutex
	sheet       *ingest.Sheet
	ds          *dataset.Dataset
	rules       []dataset.Rule
	instruction string
	settings    report.Settings

	runMu     sync.RWMutex
	progress  inference.Progress
	cancelRun context.CancelFunc
}

// New creates an empty workspace.
func New(opts Options) *Workspace {
	return &Workspace{
		opts:    opts,
		limiter: inference.NewRunLimiter(inference.DefaultMaxConcurrentRuns, inference.DefaultRunWaitTime),
	}
}

// LoadSheet replaces the current sheet and resets all derived state. The
// returned descriptors are the inferred mapping suggestion for the new
// headers.
func (w *Workspace) LoadSheet(sheet *ingest.Sheet) []dataset.ColumnDescriptor {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sheet = sheet
	w.ds = nil
	w.rules = nil
	w.instruction = ""
	w.settings = report.Settings{}
	return dataset.InferDescriptors(sheet.Headers)
}

// Headers returns the current sheet's header sequence.
func (w *Workspace) Headers() ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sheet == nil {
		return nil, ErrNoSheet
	}
	return append([]string(nil), w.sheet.Headers...), nil
}

// ConfirmMapping builds the typed dataset from the loaded sheet and the
// user-confirmed descriptors. Existing rules are re-normalized against the
// new registry so no rule keeps an operator illegal for its column.
func (w *Workspace) ConfirmMapping(descs []dataset.ColumnDescriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sheet == nil {
		return ErrNoSheet
	}
	for _, d := range descs {
		if d.DisplayName == "" {
			return fmt.Errorf("column %q: display name must not be empty", d.SourceName)
		}
		if !d.Type.Valid() {
			return fmt.Errorf("column %q: unknown type %q", d.SourceName, d.Type)
		}
	}

	w.ds = dataset.New(w.sheet.Rows, dataset.NewRegistry(descs))
	w.rules = w.ds.Normalize(w.rules)
	return nil
}

// Dataset returns the confirmed dataset.
func (w *Workspace) Dataset() (*dataset.Dataset, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.ds == nil {
		return nil, ErrNoDataset
	}
	return w.ds, nil
}

// Rules returns a copy of the active rule set.
func (w *Workspace) Rules() []dataset.Rule {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]dataset.Rule(nil), w.rules...)
}

// SetRules replaces the rule set. Operators are forced into the legal set
// for each rule's column; the normalized rules are returned.
func (w *Workspace) SetRules(rules []dataset.Rule) ([]dataset.Rule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ds == nil {
		return nil, ErrNoDataset
	}
	w.rules = w.ds.Normalize(rules)
	return append([]dataset.Rule(nil), w.rules...), nil
}

// AddRule appends a fresh rule targeting the given field with the first
// legal operator for the field's type.
func (w *Workspace) AddRule(field string) (dataset.Rule, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ds == nil {
		return dataset.Rule{}, ErrNoDataset
	}
	var fieldType dataset.FieldType = dataset.TypeString
	for _, d := range w.ds.Descriptors() {
		if d.DisplayName == field {
			fieldType = d.Type
			break
		}
	}
	rule := dataset.NewRule(field, fieldType)
	w.rules = append(w.rules, rule)
	return rule, nil
}

// Instruction returns the review instruction text.
func (w *Workspace) Instruction() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.instruction
}

// SetInstruction replaces the review instruction text.
func (w *Workspace) SetInstruction(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.instruction = text
}

// Settings returns the report settings.
func (w *Workspace) Settings() report.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// SetSettings replaces the report settings.
func (w *Workspace) SetSettings(s report.Settings) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = s
}

// FilteredView returns the rows passing every active rule plus the current
// descriptor sequence.
func (w *Workspace) FilteredView() ([]dataset.TypedRow, []dataset.ColumnDescriptor, error) {
	w.mu.RLock()
	ds := w.ds
	rules := append([]dataset.Rule(nil), w.rules...)
	w.mu.RUnlock()

	if ds == nil {
		return nil, nil, ErrNoDataset
	}
	return ds.Filtered(rules), ds.Descriptors(), nil
}

// SnapshotProfile captures the current configuration as a profile document
// for the loaded sheet's headers.
func (w *Workspace) SnapshotProfile(name string) (profile.Profile, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sheet == nil {
		return profile.Profile{}, ErrNoSheet
	}

	var mapping []dataset.ColumnDescriptor
	if w.ds != nil {
		mapping = w.ds.Descriptors()
	}

	return profile.Profile{
		Name:           name,
		Headers:        append([]string(nil), w.sheet.Headers...),
		Mapping:        mapping,
		Filters:        append([]dataset.Rule(nil), w.rules...),
		AIInstruction:  w.instruction,
		ReportSettings: w.settings,
	}, nil
}

// ApplyProfile restores a saved configuration onto the loaded sheet: the
// mapping is confirmed, then rules, instruction and report settings are
// installed. The profile must match the sheet's header set.
func (w *Workspace) ApplyProfile(p profile.Profile) error {
	w.mu.RLock()
	sheet := w.sheet
	w.mu.RUnlock()

	if sheet == nil {
		return ErrNoSheet
	}
	if !p.MatchesHeaders(sheet.Headers) {
		return fmt.Errorf("profile %q does not match the uploaded headers", p.Name)
	}

	if err := w.ConfirmMapping(p.Mapping); err != nil {
		return fmt.Errorf("apply profile mapping: %w", err)
	}

	w.mu.Lock()
	w.rules = w.ds.Normalize(p.Filters)
	w.instruction = p.AIInstruction
	w.settings = p.ReportSettings
	w.mu.Unlock()
	return nil
}

// StartRun launches a review run in the background. Only one run may be
// active at a time; a second request fails with inference.ErrTooManyRuns.
// The run merges verdicts into the dataset between batches and can be
// cancelled at batch boundaries via CancelRun.
func (w *Workspace) StartRun(engine inference.Engine) error {
	w.mu.RLock()
	ds := w.ds
	instruction := w.instruction
	w.mu.RUnlock()

	if ds == nil {
		return ErrNoDataset
	}
	if !w.limiter.TryAcquire() {
		return inference.ErrTooManyRuns
	}

	ctx, cancel := context.WithCancel(context.Background())

	w.runMu.Lock()
	w.progress = inference.Progress{Running: true}
	w.cancelRun = cancel
	w.runMu.Unlock()

	runner := inference.NewRunner(engine, w.opts.BatchSize, w.opts.Cooldown)

	go func() {
		defer w.limiter.Release()
		defer cancel()

		err := runner.Run(ctx, ds, instruction, func(p inference.Progress) {
			w.runMu.Lock()
			w.progress = p
			w.runMu.Unlock()
		})

		w.runMu.Lock()
		w.progress.Running = false
		w.cancelRun = nil
		w.runMu.Unlock()

		_ = err // cancellation is the only error and is reflected in progress
	}()

	return nil
}

// CancelRun requests cancellation of the active run. The in-flight batch
// still completes; the run stops at the next batch boundary.
func (w *Workspace) CancelRun() bool {
	w.runMu.RLock()
	defer w.runMu.RUnlock()
	if w.cancelRun == nil {
		return false
	}
	w.cancelRun()
	return true
}

// RunProgress returns a snapshot of the active (or last) run.
func (w *Workspace) RunProgress() inference.Progress {
	w.runMu.RLock()
	defer w.runMu.RUnlock()
	return w.progress
}

// Drain waits for an active run to finish, for graceful shutdown.
func (w *Workspace) Drain(ctx context.Context) error {
	return w.limiter.WaitForDrain(ctx)
}
