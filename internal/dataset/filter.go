package dataset

// filter.go implements the filter predicate model and the evaluation engine.
//
// Each rule is (field, operator, value) where value is always stored as the
// user's unparsed string and reparsed at evaluation time against the live
// type of the row value. Rules combine with logical AND; an empty rule set
// passes every row.
//
// Null policy: is_not_empty is the only operator evaluated against null
// values. Every other operator short-circuits to false on null - a null
// value never matches a positive comparison.
//
// Vacuous pass: a comparison value that cannot be parsed for the typed
// comparison (empty date input, non-numeric text in a numeric rule) makes
// that rule pass rather than silently excluding everything.

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operator is a closed comparison operator vocabulary. Which operators are
// legal for a rule follows from the referenced column's declared type; see
// OperatorsFor.
type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "startsWith"
	OpIsNotEmpty  Operator = "is_not_empty"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpEqualsDate  Operator = "eq_date"
	OpAfterDate   Operator = "after_date"
	OpBeforeDate  Operator = "before_date"
)

var (
	dateOperators   = []Operator{OpEqualsDate, OpAfterDate, OpBeforeDate}
	numberOperators = []Operator{OpEquals, OpGreaterThan, OpLessThan}
	stringOperators = []Operator{OpContains, OpNotContains, OpEquals, OpStartsWith, OpIsNotEmpty}
)

// OperatorsFor returns the legal operator set for a declared column type.
// The first entry is the default operator a new or re-targeted rule gets.
func OperatorsFor(t FieldType) []Operator {
	switch t {
	case TypeDate:
		return dateOperators
	case TypeNumber, TypeCurrency:
		return numberOperators
	default:
		return stringOperators
	}
}

// OperatorLegal reports whether op is in the legal set for type t.
func OperatorLegal(op Operator, t FieldType) bool {
	for _, legal := range OperatorsFor(t) {
		if op == legal {
			return true
		}
	}
	return false
}

// Rule is one filter predicate contributing to the AND-conjunction.
type Rule struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// NewRule creates a rule targeting a field of the given type, with the
// first legal operator and an empty comparison value.
func NewRule(field string, t FieldType) Rule {
	return Rule{
		ID:       uuid.NewString(),
		Field:    field,
		Operator: OperatorsFor(t)[0],
		Value:    "",
	}
}

// SetField re-targets the rule and resets its operator to the first legal
// operator for the new field's type. A stale operator from the previous
// type never survives a field change.
func (r *Rule) SetField(field string, t FieldType) {
	r.Field = field
	r.Operator = OperatorsFor(t)[0]
}

// Normalize forces the rule's operator back into the legal set for the
// referenced column's type, using the registry lookup. Used when rules
// arrive from outside (API payloads, stored profiles).
func (r *Rule) Normalize(reg *Registry) {
	t := reg.TypeOf(r.Field)
	if !OperatorLegal(r.Operator, t) {
		r.Operator = OperatorsFor(t)[0]
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// EvaluateRule reports whether a typed row passes a single rule. The
// registry supplies the declared type of the referenced field; a field
// absent from the registry is compared on the string path.
func EvaluateRule(row TypedRow, rule Rule, reg *Registry) bool {
	value := row.Fields[rule.Field]

	// is_not_empty is a null/blank test and must run before the null check.
	if rule.Operator == OpIsNotEmpty {
		return !value.IsNull() && strings.TrimSpace(value.StringForm()) != ""
	}

	if value.IsNull() {
		return false
	}

	fieldType := reg.TypeOf(rule.Field)

	if fieldType == TypeDate && value.Kind == KindDate {
		if pass, decided := evaluateDate(value.Time, rule); decided {
			return pass
		}
	}

	if (fieldType == TypeNumber || fieldType == TypeCurrency) && value.Kind == KindNumber {
		if pass, decided := evaluateNumber(value.Num, rule); decided {
			return pass
		}
	}

	// String/link path, and the fallback for any type/value mismatch.
	rowStr := strings.ToLower(value.StringForm())
	cmpStr := strings.ToLower(rule.Value)

	switch rule.Operator {
	case OpEquals:
		return rowStr == cmpStr
	case OpContains:
		return strings.Contains(rowStr, cmpStr)
	case OpNotContains:
		return !strings.Contains(rowStr, cmpStr)
	case OpStartsWith:
		return strings.HasPrefix(rowStr, cmpStr)
	}

	// An operator with no meaning on this path passes vacuously.
	return true
}

// evaluateDate applies a date operator against a date row value. The second
// return is false when the operator is not a date operator, handing the
// decision to the string path. Both sides are truncated to the date
// component; time-of-day never participates.
func evaluateDate(rowTime time.Time, rule Rule) (pass, decided bool) {
	cmp, ok := ParseComparisonDate(rule.Value)
	if !ok {
		// Empty or unparseable comparison date: the rule passes vacuously.
		switch rule.Operator {
		case OpEqualsDate, OpAfterDate, OpBeforeDate:
			return true, true
		}
		return false, false
	}

	rowDay := truncateToDay(rowTime)
	cmpDay := truncateToDay(cmp)

	switch rule.Operator {
	case OpEqualsDate:
		return rowDay.Equal(cmpDay), true
	case OpAfterDate:
		return rowDay.After(cmpDay), true
	case OpBeforeDate:
		return rowDay.Before(cmpDay), true
	}
	return false, false
}

// evaluateNumber applies a numeric operator against a numeric row value.
// Equality is exact float64 equality, no epsilon.
func evaluateNumber(rowNum float64, rule Rule) (pass, decided bool) {
	trimmed := strings.TrimSpace(rule.Value)
	isNumericOp := rule.Operator == OpEquals || rule.Operator == OpGreaterThan || rule.Operator == OpLessThan

	if trimmed == "" {
		if isNumericOp {
			return true, true
		}
		return false, false
	}

	cmp, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		if isNumericOp {
			return true, true
		}
		return false, false
	}

	switch rule.Operator {
	case OpEquals:
		return rowNum == cmp, true
	case OpGreaterThan:
		return rowNum > cmp, true
	case OpLessThan:
		return rowNum < cmp, true
	}
	return false, false
}

// comparisonDateLayouts accepts the ISO form produced by date inputs first,
// then the Dutch forms the parser accepts. No round-trip validation here:
// an invalid comparison date simply fails to parse and the rule passes.
var comparisonDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
}

// ParseComparisonDate parses a filter rule's comparison value as a date.
func ParseComparisonDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range comparisonDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncateToDay discards the time-of-day component.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EvaluateRules reports whether a row passes every rule. The conjunction
// short-circuits on the first failing rule.
func EvaluateRules(row TypedRow, rules []Rule, reg *Registry) bool {
	for _, rule := range rules {
		if !EvaluateRule(row, rule, reg) {
			return false
		}
	}
	return true
}

// ApplyRules narrows typed rows to those passing every rule, preserving
// order. An empty rule set returns the input unchanged. The result is a
// derived view; the input is never mutated.
func ApplyRules(rows []TypedRow, rules []Rule, reg *Registry) []TypedRow {
	if len(rules) == 0 {
		return rows
	}
	out := make([]TypedRow, 0, len(rows))
	for _, row := range rows {
		if EvaluateRules(row, rules, reg) {
			out = append(out, row)
		}
	}
	return out
}

// DescribeRules renders the active rule set as a single human-readable
// line for report headers, e.g. "Status contains fout; Datum after_date
// 2024-01-01". An empty rule set reads "Geen filters".
func DescribeRules(rules []Rule) string {
	if len(rules) == 0 {
		return "Geen filters"
	}
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Operator == OpIsNotEmpty {
			parts = append(parts, r.Field+" "+string(r.Operator))
			continue
		}
		parts = append(parts, r.Field+" "+string(r.Operator)+" "+r.Value)
	}
	return strings.Join(parts, "; ")
}
