// Package profile persists named processing profiles: the column mapping,
// filter rules, review instruction and report settings for a known
// spreadsheet layout. Profiles are matched to a freshly uploaded dataset by
// unordered header-set equality so returning users get their configuration
// back automatically.
package profile

import (
	"sort"
	"time"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/report"
)

// Profile is the stored document shape. JSON field names are the wire and
// storage contract.
type Profile struct {
	ID             string                     `json:"id,omitempty"`
	Name           string                     `json:"name"`
	Headers        []string                   `json:"headers"`
	Mapping        []dataset.ColumnDescriptor `json:"mapping"`
	Filters        []dataset.Rule             `json:"filters"`
	AIInstruction  string                     `json:"aiInstruction"`
	ReportSettings report.Settings            `json:"reportSettings"`
	UpdatedAt      time.Time                  `json:"updatedAt,omitzero"`
}

// MatchesHeaders reports whether the profile was saved for the same header
// set, ignoring column order: both lists are sorted and compared for exact
// sequence equality.
func (p Profile) MatchesHeaders(headers []string) bool {
	if len(p.Headers) != len(headers) {
		return false
	}
	a := append([]string(nil), p.Headers...)
	b := append([]string(nil), headers...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BestMatch returns the first profile matching the header set. Profiles are
// expected in updated-at descending order, so the first match is the most
// recently used one.
func BestMatch(profiles []Profile, headers []string) (Profile, bool) {
	for _, p := range profiles {
		if p.MatchesHeaders(headers) {
			return p, true
		}
	}
	return Profile{}, false
}
