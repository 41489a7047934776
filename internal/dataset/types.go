// Package dataset provides the typed-row engine: locale-aware cell parsing,
// the column type registry, declarative filter evaluation, and row-identity
// merge of enrichment results. This package has no I/O dependencies and is
// deterministic given its inputs, so it can be invoked on every state change
// without locking concerns beyond the Dataset's own mutex.
package dataset

import (
	"encoding/json"
	"strconv"
	"time"
)

// FieldType declares the semantic type of a column. It drives both cell
// parsing and the legal filter operator set for the column.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeDate     FieldType = "date"
	TypeNumber   FieldType = "number"
	TypeCurrency FieldType = "currency"
	TypeLink     FieldType = "link"
)

// FieldTypes lists all declarable column types.
var FieldTypes = []FieldType{TypeString, TypeDate, TypeNumber, TypeCurrency, TypeLink}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeDate, TypeNumber, TypeCurrency, TypeLink:
		return true
	}
	return false
}

// ColumnDescriptor declares how a single spreadsheet column is interpreted.
// SourceName keys the raw row; DisplayName keys the typed row. The two may be
// equal. JSON field names match the stored profile document shape.
type ColumnDescriptor struct {
	SourceName  string    `json:"originalHeader"`
	DisplayName string    `json:"targetHeader"`
	Type        FieldType `json:"type"`
}

// Kind tags the runtime type of a Value.
type Kind int

const (
	// KindNull is the zero Kind so a missing map entry reads as null.
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

// Value is the tagged union a typed-row cell can hold: null, string, number
// or date. The zero Value is null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsNull reports whether the value is absent/unparseable.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// StringForm renders the value the way filter comparisons and displays see
// it: numbers without trailing zeros, dates in dd-mm-yyyy form, null as the
// empty string.
func (v Value) StringForm() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.Format("02-01-2006")
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its natural JSON type. Dates use the
// ISO yyyy-mm-dd form so downstream consumers can reparse them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindDate:
		return json.Marshal(v.Time.Format("2006-01-02"))
	default:
		return []byte("null"), nil
	}
}

// RawRow is an as-ingested row keyed by original header. Cell values are
// untyped scalars (string, float64, int, time.Time or nil) exactly as the
// ingestion step produced them. Raw rows are immutable after ingestion.
type RawRow struct {
	// ID is the synthetic row identifier, assigned in ingestion order and
	// stable for the row's lifetime.
	ID    string
	Cells map[string]any
}

// TypedRow is a row after locale-aware parsing, keyed by display name.
type TypedRow struct {
	ID     string
	Fields map[string]Value
}

// Clone returns a deep copy of the row. Used for snapshots handed to
// external collaborators so later merges cannot race with them.
func (r TypedRow) Clone() TypedRow {
	fields := make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return TypedRow{ID: r.ID, Fields: fields}
}

// Patch is a partial, row-identified update produced by an external
// computation. Only the named fields of the matching row are overwritten;
// a Patch whose RowID matches no master row is a no-op.
type Patch struct {
	RowID  string           `json:"rowId"`
	Fields map[string]Value `json:"fields"`
}
