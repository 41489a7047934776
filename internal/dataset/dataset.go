package dataset

// dataset.go owns the master typed-row set. Rows are created once from the
// raw rows at mapping confirmation and afterwards mutated only field-wise by
// enrichment patches. Filtering never removes rows from the master set, only
// from the derived view.

import "sync"

// Dataset is the master typed-row set plus its registry. All access goes
// through the mutex: merges and user edits are single-writer, reads take
// snapshots so callers never observe a half-applied patch.
type Dataset struct {
	mu       sync.RWMutex
	registry *Registry
	rows     []TypedRow
	index    map[string]int // rowId -> position in rows
}

// New derives the master typed-row set from raw rows and a registry. Row
// order follows ingestion order; each row keeps the identifier assigned at
// ingestion.
func New(raw []RawRow, reg *Registry) *Dataset {
	d := &Dataset{
		registry: reg,
		rows:     make([]TypedRow, 0, len(raw)),
		index:    make(map[string]int, len(raw)),
	}
	for _, r := range raw {
		d.rows = append(d.rows, ParseRow(r, reg))
		d.index[r.ID] = len(d.rows) - 1
	}
	return d
}

// Len returns the master row count.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rows)
}

// Rows returns a deep-copied snapshot of the master set in order.
func (d *Dataset) Rows() []TypedRow {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]TypedRow, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.Clone()
	}
	return out
}

// Row returns a copy of the row with the given id.
func (d *Dataset) Row(rowID string) (TypedRow, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[rowID]
	if !ok {
		return TypedRow{}, false
	}
	return d.rows[i].Clone(), true
}

// Descriptors returns the current descriptor sequence.
func (d *Dataset) Descriptors() []ColumnDescriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry.Descriptors()
}

// Filtered returns the ordered subsequence of rows passing every rule.
// The view is recomputed on each call and shares no storage with the
// master set.
func (d *Dataset) Filtered(rules []Rule) []TypedRow {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]TypedRow, 0, len(d.rows))
	for _, row := range d.rows {
		if EvaluateRules(row, rules, d.registry) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// Normalize forces every rule's operator into the legal set for its
// referenced column under this dataset's registry.
func (d *Dataset) Normalize(rules []Rule) []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		out[i].Normalize(d.registry)
	}
	return out
}

// Merge applies enrichment patches to the master set. For each patch the
// row with matching id has exactly the named fields overwritten; row order,
// row count and unrelated fields are untouched. A patch without a matching
// row is a no-op. First-seen enrichment fields extend the registry with a
// default string descriptor, exactly once per field name.
func (d *Dataset) Merge(patches []Patch) {
	if len(patches) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range patches {
		i, ok := d.index[p.RowID]
		if !ok {
			continue
		}
		for name, value := range p.Fields {
			d.registry.Extend(name)
			d.rows[i].Fields[name] = value
		}
	}
}
