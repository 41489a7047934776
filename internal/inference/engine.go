// Package inference dispatches typed rows to an external model for
// per-row review and folds the verdicts back into the dataset as
// enrichment patches. The engine itself is a black box behind the Engine
// interface; the Runner owns batching, pacing and failure capture.
package inference

import (
	"context"
	"strings"

	"github.com/weMaron/excel-processor/internal/dataset"
)

// StatusField is the enrichment field holding the model's verdict.
const StatusField = "AI_Status"

// ReasoningField is the enrichment field holding the model's explanation.
const ReasoningField = "AI_Reasoning"

// approvedStatuses are the verdicts that count as "done": rows carrying one
// are skipped on subsequent runs and counted as correct in reports.
var approvedStatuses = []string{"goedgekeurd", "approved", "correct", "ok"}

// IsApproved reports whether a status string is an approving verdict.
// Matching is case-insensitive.
func IsApproved(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, ok := range approvedStatuses {
		if s == ok {
			return true
		}
	}
	return false
}

// Request carries one row to the model: a snapshot of the typed row, the
// user's free-text instruction and the column descriptors (so the engine
// can locate link columns whose files should accompany the prompt).
type Request struct {
	Row         dataset.TypedRow
	Instruction string
	Descriptors []dataset.ColumnDescriptor
}

// Result is the model's verdict for one row.
type Result struct {
	Status    string `json:"status"`
	Reasoning string `json:"reasoning"`
}

// Engine evaluates a single row. Implementations must be safe for
// concurrent use; the Runner issues a batch of calls at a time.
type Engine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}
