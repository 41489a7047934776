package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/inference"
	"github.com/weMaron/excel-processor/internal/ingest"
	"github.com/weMaron/excel-processor/internal/profile"
	"github.com/weMaron/excel-processor/internal/report"
)

func testSheet() *ingest.Sheet {
	return &ingest.Sheet{
		Headers: []string{"Naam", "Factuurdatum", "Waarde"},
		Rows: []dataset.RawRow{
			{ID: "0", Cells: map[string]any{"Naam": "Jansen", "Factuurdatum": "01-06-2024", "Waarde": "€ 100,00"}},
			{ID: "1", Cells: map[string]any{"Naam": "Pietersen", "Factuurdatum": "15-06-2024", "Waarde": "€ 250,00"}},
		},
	}
}

func testMapping() []dataset.ColumnDescriptor {
	return []dataset.ColumnDescriptor{
		{SourceName: "Naam", DisplayName: "Naam", Type: dataset.TypeString},
		{SourceName: "Factuurdatum", DisplayName: "Datum", Type: dataset.TypeDate},
		{SourceName: "Waarde", DisplayName: "Waarde", Type: dataset.TypeCurrency},
	}
}

func TestWorkspace_LoadSheetSuggestsMapping(t *testing.T) {
	ws := New(Options{})

	descs := ws.LoadSheet(testSheet())
	if len(descs) != 3 {
		t.Fatalf("len(descs) = %d, want 3", len(descs))
	}
	if descs[1].Type != dataset.TypeDate {
		t.Errorf("Factuurdatum inferred as %s, want date", descs[1].Type)
	}
	if descs[2].Type != dataset.TypeCurrency {
		t.Errorf("Waarde inferred as %s, want currency", descs[2].Type)
	}

	headers, err := ws.Headers()
	if err != nil {
		t.Fatalf("Headers() error = %v", err)
	}
	if len(headers) != 3 {
		t.Errorf("len(headers) = %d", len(headers))
	}
}

func TestWorkspace_RequiresSheetAndMapping(t *testing.T) {
	ws := New(Options{})

	if _, err := ws.Headers(); !errors.Is(err, ErrNoSheet) {
		t.Errorf("Headers() error = %v, want ErrNoSheet", err)
	}
	if err := ws.ConfirmMapping(testMapping()); !errors.Is(err, ErrNoSheet) {
		t.Errorf("ConfirmMapping() error = %v, want ErrNoSheet", err)
	}

	ws.LoadSheet(testSheet())
	if _, err := ws.Dataset(); !errors.Is(err, ErrNoDataset) {
		t.Errorf("Dataset() error = %v, want ErrNoDataset", err)
	}
	if _, _, err := ws.FilteredView(); !errors.Is(err, ErrNoDataset) {
		t.Errorf("FilteredView() error = %v, want ErrNoDataset", err)
	}
}

func TestWorkspace_ConfirmMappingValidation(t *testing.T) {
	ws := New(Options{})
	ws.LoadSheet(testSheet())

	bad := testMapping()
	bad[0].DisplayName = ""
	if err := ws.ConfirmMapping(bad); err == nil {
		t.Error("ConfirmMapping accepted an empty display name")
	}

	bad = testMapping()
	bad[1].Type = "guess"
	if err := ws.ConfirmMapping(bad); err == nil {
		t.Error("ConfirmMapping accepted an unknown type")
	}
}

func TestWorkspace_FilterFlow(t *testing.T) {
	ws := New(Options{})
	ws.LoadSheet(testSheet())
	if err := ws.ConfirmMapping(testMapping()); err != nil {
		t.Fatal(err)
	}

	rule, err := ws.AddRule("Datum")
	if err != nil {
		t.Fatal(err)
	}
	if rule.Operator != dataset.OpEqualsDate {
		t.Errorf("new rule operator = %s, want the date default", rule.Operator)
	}

	// Replacing rules normalizes illegal operators.
	normalized, err := ws.SetRules([]dataset.Rule{
		{Field: "Waarde", Operator: dataset.OpContains, Value: "100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if normalized[0].Operator != dataset.OpEquals {
		t.Errorf("operator = %s, want %s", normalized[0].Operator, dataset.OpEquals)
	}

	rows, descs, err := ws.FilteredView()
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 3 {
		t.Errorf("len(descs) = %d", len(descs))
	}
	if len(rows) != 1 || rows[0].ID != "0" {
		t.Errorf("filtered rows = %d", len(rows))
	}
}

func TestWorkspace_LoadSheetResetsState(t *testing.T) {
	ws := New(Options{})
	ws.LoadSheet(testSheet())
	if err := ws.ConfirmMapping(testMapping()); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.AddRule("Naam"); err != nil {
		t.Fatal(err)
	}
	ws.SetInstruction("controleer")
	ws.SetSettings(report.Settings{GroupBy: "Naam", SelectedColumns: []string{"Naam"}})

	ws.LoadSheet(testSheet())

	if len(ws.Rules()) != 0 {
		t.Error("rules survived a sheet reload")
	}
	if ws.Instruction() != "" {
		t.Error("instruction survived a sheet reload")
	}
	if ws.Settings().GroupBy != "" {
		t.Error("report settings survived a sheet reload")
	}
	if _, err := ws.Dataset(); !errors.Is(err, ErrNoDataset) {
		t.Error("dataset survived a sheet reload")
	}
}

func TestWorkspace_SnapshotAndApplyProfile(t *testing.T) {
	ws := New(Options{})
	ws.LoadSheet(testSheet())
	if err := ws.ConfirmMapping(testMapping()); err != nil {
		t.Fatal(err)
	}
	ws.SetInstruction("controleer facturen")
	ws.SetSettings(report.Settings{GroupBy: "Naam", SelectedColumns: []string{"Naam", "Waarde"}})
	if _, err := ws.SetRules([]dataset.Rule{
		{Field: "Waarde", Operator: dataset.OpGreaterThan, Value: "50"},
	}); err != nil {
		t.Fatal(err)
	}

	p, err := ws.SnapshotProfile("inkoop")
	if err != nil {
		t.Fatalf("SnapshotProfile() error = %v", err)
	}
	if p.Name != "inkoop" || len(p.Headers) != 3 || len(p.Mapping) != 3 || len(p.Filters) != 1 {
		t.Fatalf("profile = %+v", p)
	}
	if p.AIInstruction != "controleer facturen" {
		t.Errorf("instruction = %q", p.AIInstruction)
	}

	// Fresh workspace, same layout: the profile restores everything.
	ws2 := New(Options{})
	ws2.LoadSheet(testSheet())
	if err := ws2.ApplyProfile(p); err != nil {
		t.Fatalf("ApplyProfile() error = %v", err)
	}
	if ws2.Instruction() != "controleer facturen" {
		t.Error("instruction not restored")
	}
	if got := ws2.Settings().GroupBy; got != "Naam" {
		t.Errorf("settings.GroupBy = %q", got)
	}
	rows, _, err := ws2.FilteredView()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("restored filter kept %d rows, want 2", len(rows))
	}

	// Foreign layout: the profile is rejected.
	ws3 := New(Options{})
	ws3.LoadSheet(&ingest.Sheet{Headers: []string{"Iets", "Anders"}})
	if err := ws3.ApplyProfile(p); err == nil {
		t.Error("ApplyProfile accepted a profile for different headers")
	}
}

func TestWorkspace_ApplyProfileRequiresSheet(t *testing.T) {
	ws := New(Options{})
	if err := ws.ApplyProfile(profile.Profile{}); !errors.Is(err, ErrNoSheet) {
		t.Errorf("ApplyProfile() error = %v, want ErrNoSheet", err)
	}
}

// blockingEngine holds every evaluation until released.
type blockingEngine struct {
	mu       sync.Mutex
	started  int
	releaseC chan struct{}
}

func (e *blockingEngine) Evaluate(ctx context.Context, req inference.Request) (inference.Result, error) {
	e.mu.Lock()
	e.started++
	e.mu.Unlock()
	select {
	case <-e.releaseC:
	case <-ctx.Done():
	}
	return inference.Result{Status: "Goedgekeurd", Reasoning: "ok"}, nil
}

func TestWorkspace_StartRunSingleFlight(t *testing.T) {
	ws := New(Options{BatchSize: 1, Cooldown: 0})
	ws.LoadSheet(testSheet())
	if err := ws.ConfirmMapping(testMapping()); err != nil {
		t.Fatal(err)
	}

	engine := &blockingEngine{releaseC: make(chan struct{})}
	if err := ws.StartRun(engine); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	if err := ws.StartRun(engine); !errors.Is(err, inference.ErrTooManyRuns) {
		t.Errorf("second StartRun() error = %v, want ErrTooManyRuns", err)
	}

	close(engine.releaseC)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	p := ws.RunProgress()
	if p.Running {
		t.Error("progress still running after drain")
	}
	if p.Done != 2 {
		t.Errorf("progress.Done = %d, want 2", p.Done)
	}

	// A new run is possible after the previous one finished.
	if err := ws.StartRun(engine); err != nil {
		t.Errorf("StartRun() after drain error = %v", err)
	}
	if err := ws.Drain(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestWorkspace_StartRunRequiresDataset(t *testing.T) {
	ws := New(Options{})
	if err := ws.StartRun(&blockingEngine{releaseC: make(chan struct{})}); !errors.Is(err, ErrNoDataset) {
		t.Errorf("StartRun() error = %v, want ErrNoDataset", err)
	}
}

func TestWorkspace_CancelRun(t *testing.T) {
	ws := New(Options{BatchSize: 1, Cooldown: time.Hour})
	ws.LoadSheet(testSheet())
	if err := ws.ConfirmMapping(testMapping()); err != nil {
		t.Fatal(err)
	}

	if ws.CancelRun() {
		t.Error("CancelRun reported success with no active run")
	}

	engine := &blockingEngine{releaseC: make(chan struct{})}
	if err := ws.StartRun(engine); err != nil {
		t.Fatal(err)
	}
	close(engine.releaseC)

	// The hour-long cooldown keeps the run alive until cancelled.
	deadline := time.After(2 * time.Second)
	for !ws.CancelRun() {
		select {
		case <-deadline:
			t.Fatal("run never became cancellable")
		case <-time.After(10 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}
