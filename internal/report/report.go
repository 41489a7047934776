// Package report turns a filtered view into grouped analysis reports: rows
// are bucketed by a group-by field, projected onto the selected columns and
// summarized by review outcome. Rendering targets are PDF (one document per
// group) and CSV.
package report

import (
	"strings"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/inference"
)

// UnknownGroup is the bucket name for rows whose group-by field is blank.
const UnknownGroup = "Onbekend"

// Settings selects how a report is built. JSON field names match the stored
// profile document shape.
type Settings struct {
	GroupBy         string   `json:"groupBy"`
	SelectedColumns []string `json:"selectedColumns"`
	HeaderText      string   `json:"headerText"`
}

// Validate reports whether the settings can produce a report.
func (s Settings) Validate() error {
	if s.GroupBy == "" {
		return errNoGroupBy
	}
	if len(s.SelectedColumns) == 0 {
		return errNoColumns
	}
	return nil
}

var (
	errNoGroupBy = settingsError("report settings: groupBy is required")
	errNoColumns = settingsError("report settings: at least one column must be selected")
)

type settingsError string

func (e settingsError) Error() string { return string(e) }

// Group is one report bucket: the group-by value and its rows in original
// relative order.
type Group struct {
	Name string
	Rows []dataset.TypedRow
}

// GroupRows buckets rows by the string form of the group-by field. Groups
// appear in order of first appearance; blank values collect under
// UnknownGroup.
func GroupRows(rows []dataset.TypedRow, groupBy string) []Group {
	var groups []Group
	byName := make(map[string]int)

	for _, row := range rows {
		name := row.Fields[groupBy].StringForm()
		if strings.TrimSpace(name) == "" {
			name = UnknownGroup
		}
		i, ok := byName[name]
		if !ok {
			groups = append(groups, Group{Name: name})
			i = len(groups) - 1
			byName[name] = i
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}

	return groups
}

// Summary counts review outcomes within a group.
type Summary struct {
	Total    int
	Approved int
	Failed   int
}

// Summarize counts rows by their review status. Rows without an approving
// verdict (including rows never reviewed) count as failed, matching how the
// rendered report highlights them.
func Summarize(rows []dataset.TypedRow) Summary {
	s := Summary{Total: len(rows)}
	for _, row := range rows {
		if inference.IsApproved(row.Fields[inference.StatusField].StringForm()) {
			s.Approved++
		} else {
			s.Failed++
		}
	}
	return s
}

// isLinkColumn reports whether a column should render as a hyperlink cell.
// Mirrors the header-token heuristic used for type inference.
func isLinkColumn(name string) bool {
	h := strings.ToLower(name)
	return strings.Contains(h, "url") || strings.Contains(h, "link")
}
