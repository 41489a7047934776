package dataset

// registry.go holds the ordered column descriptor sequence. The registry is
// the single lookup both the parser and the filter engine consult to know how
// a named field is interpreted.

import "strings"

// Registry is an ordered sequence of column descriptors with an O(1) lookup
// keyed by display name. The registry itself is not goroutine-safe; the
// owning Dataset serializes access.
type Registry struct {
	descriptors []ColumnDescriptor
	byDisplay   map[string]int
}

// NewRegistry builds a registry from a descriptor sequence. When two
// descriptors share a display name the later one wins the lookup, matching
// the last-write-wins behavior of typed-row construction.
func NewRegistry(descs []ColumnDescriptor) *Registry {
	r := &Registry{
		descriptors: make([]ColumnDescriptor, 0, len(descs)),
		byDisplay:   make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		r.descriptors = append(r.descriptors, d)
		r.byDisplay[d.DisplayName] = len(r.descriptors) - 1
	}
	return r
}

// Descriptors returns a copy of the descriptor sequence in registry order.
func (r *Registry) Descriptors() []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len returns the number of descriptors.
func (r *Registry) Len() int { return len(r.descriptors) }

// Lookup resolves a display name to its descriptor.
func (r *Registry) Lookup(displayName string) (ColumnDescriptor, bool) {
	i, ok := r.byDisplay[displayName]
	if !ok {
		return ColumnDescriptor{}, false
	}
	return r.descriptors[i], true
}

// TypeOf returns the declared type for a display name. Unknown fields report
// TypeString so filter evaluation can fall back to string comparison instead
// of failing.
func (r *Registry) TypeOf(displayName string) FieldType {
	if d, ok := r.Lookup(displayName); ok {
		return d.Type
	}
	return TypeString
}

// Extend adds a default string descriptor for a field name that is not yet
// registered, and reports whether anything was added. Extending with an
// existing display name is a no-op, so repeated enrichment patches never
// duplicate registry entries.
func (r *Registry) Extend(displayName string) bool {
	if _, ok := r.byDisplay[displayName]; ok {
		return false
	}
	r.descriptors = append(r.descriptors, ColumnDescriptor{
		SourceName:  displayName,
		DisplayName: displayName,
		Type:        TypeString,
	})
	r.byDisplay[displayName] = len(r.descriptors) - 1
	return true
}

// InferType suggests a column type from header-name substrings, in fixed
// priority order: a date token beats a currency token beats a link token
// beats a count token. The suggestion is a convenience default only; the
// confirmed mapping overrides it.
func InferType(header string) FieldType {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "datum"):
		return TypeDate
	case strings.Contains(h, "waarde"):
		return TypeCurrency
	case strings.Contains(h, "url"):
		return TypeLink
	case strings.Contains(h, "aantal"):
		return TypeNumber
	default:
		return TypeString
	}
}

// InferDescriptors builds an initial descriptor sequence for a header row,
// defaulting each display name to the source name.
func InferDescriptors(headers []string) []ColumnDescriptor {
	descs := make([]ColumnDescriptor, len(headers))
	for i, h := range headers {
		descs[i] = ColumnDescriptor{
			SourceName:  h,
			DisplayName: h,
			Type:        InferType(h),
		}
	}
	return descs
}
