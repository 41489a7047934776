package dataset

// parse.go converts raw spreadsheet cells into typed values under Dutch
// formatting conventions:
//   - Dates in dd-mm-yyyy or dd/mm/yyyy form, validated against the calendar
//   - Numbers/amounts in European format: 1.234,56 with optional euro sign
//   - Strings and links passed through untouched
//
// Parsing is pure and total: it never panics and never consults the clock.
// Anything unparseable becomes the null value, which the filter engine
// treats as "absent".

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseValue converts a raw cell to a typed value for the declared target
// type. The raw cell may be a string, float64, int, time.Time or nil.
func ParseValue(raw any, target FieldType) Value {
	if raw == nil {
		return Null()
	}

	switch target {
	case TypeDate:
		return parseDateCell(raw)
	case TypeNumber, TypeCurrency:
		return parseNumberCell(raw)
	default:
		// string and link: pass through as string representation
		return parseStringCell(raw)
	}
}

// parseDateCell handles the date target type. Only string input is reparsed;
// values the ingestion step already decoded (dates, numeric serials) pass
// through as-is.
func parseDateCell(raw any) Value {
	switch v := raw.(type) {
	case string:
		t, ok := ParseDutchDate(v)
		if !ok {
			return Null()
		}
		return Date(t)
	case time.Time:
		return Date(v)
	case float64:
		return Number(v)
	case int:
		return Number(float64(v))
	default:
		return Null()
	}
}

// parseNumberCell handles number and currency target types.
func parseNumberCell(raw any) Value {
	switch v := raw.(type) {
	case string:
		f, ok := ParseEuropeanNumber(v)
		if !ok {
			return Null()
		}
		return Number(f)
	case float64:
		return Number(v)
	case int:
		return Number(float64(v))
	default:
		// Coerce to string form and retry; failure yields null.
		f, ok := ParseEuropeanNumber(parseStringCell(raw).StringForm())
		if !ok {
			return Null()
		}
		return Number(f)
	}
}

// parseStringCell renders any raw cell as a string value.
func parseStringCell(raw any) Value {
	switch v := raw.(type) {
	case string:
		return String(v)
	case float64:
		return String(strconv.FormatFloat(v, 'f', -1, 64))
	case int:
		return String(strconv.Itoa(v))
	case time.Time:
		return String(v.Format("02-01-2006"))
	case bool:
		return String(strconv.FormatBool(v))
	default:
		return Null()
	}
}

// ParseDutchDate parses a dd-mm-yyyy or dd/mm/yyyy date string. The parsed
// components must round-trip through calendar construction: 31-02-2023 does
// not survive and reports false. Other separators are unsupported.
func ParseDutchDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Split(strings.ReplaceAll(s, "/", "-"), "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	// time.Date normalizes out-of-range components (day 31 in a 30-day month
	// rolls into the next month), so an exact round-trip check catches
	// calendar-invalid input.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}

	return t, true
}

// ParseEuropeanNumber parses a number in European/Dutch format. The euro
// glyph and all whitespace are stripped, every '.' is dropped as a thousands
// separator and the sole decimal ',' becomes '.': "1.234,56" -> 1234.56.
func ParseEuropeanNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '€' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseRow derives a typed row from a raw row and the registry's descriptor
// sequence. The same raw row and registry always yield the same typed row;
// there is no hidden state. Duplicate display names resolve last-write-wins
// in descriptor order.
func ParseRow(raw RawRow, reg *Registry) TypedRow {
	descs := reg.Descriptors()
	fields := make(map[string]Value, len(descs))
	for _, desc := range descs {
		fields[desc.DisplayName] = ParseValue(raw.Cells[desc.SourceName], desc.Type)
	}
	return TypedRow{ID: raw.ID, Fields: fields}
}
