package models

import (
	"errors"
	"strconv"

	"harvester/pkg/fingerprint"
)

// ErrTableFinalized is returned when Build is called a second time.
var ErrTableFinalized = errors.New("table already finalized")

// IDStrategy decides how a record's id is obtained.
type IDStrategy int

const (
	// NaturalID uses the platform identifier already on the record.
	// Records without one are dropped.
	NaturalID IDStrategy = iota
	// ContentHash fills missing ids with a fingerprint of the record's stable fields:
	// source, kind, parent id, created_at and text. Two records agreeing on all of
	// those are treated as the same record.
	ContentHash
	// Sequence numbers records 0..n-1 in final order. No dedup is applied.
	Sequence
)

// Table is a finalized, deduplicated result set for one platform run.
type Table struct {
	Name     string
	Platform string
	IDField  string
	Records  []Record
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// BuildStats summarizes what Build did.
type BuildStats struct {
	Appended   int
	Duplicates int
	Dropped    int
}

// TableBuilder accumulates records in insertion order and is finalized exactly once.
//
// Insertion order is the dedup order: the first record appended for a given id wins.
// Callers feed partial results in a fixed order (configured entity order, then page
// order), so the result does not depend on filesystem or map iteration order.
type TableBuilder struct {
	name     string
	platform string
	idField  string
	records  []Record
	strategy IDStrategy
	built    bool
}

// NewTableBuilder creates a builder for the named table.
func NewTableBuilder(name, platform string, strategy IDStrategy) *TableBuilder {
	return &TableBuilder{
		name:     name,
		platform: platform,
		idField:  "id",
		strategy: strategy,
	}
}

// WithIDField overrides the id column name reported to sinks.
func (b *TableBuilder) WithIDField(field string) *TableBuilder {
	b.idField = field

	return b
}

// Append adds one record.
func (b *TableBuilder) Append(r Record) {
	if b.built {
		panic("models: append to finalized table " + b.name)
	}

	b.records = append(b.records, r)
}

// AppendAll adds a partial result in order.
func (b *TableBuilder) AppendAll(records []Record) {
	for _, r := range records {
		b.Append(r)
	}
}

// Partial is the ordered output of harvesting one tracked entity.
type Partial struct {
	Entity  string
	Records []Record
}

// Merge appends partial results in argument order. Callers pass them in configured
// entity order.
func (b *TableBuilder) Merge(parts ...Partial) {
	for _, p := range parts {
		b.AppendAll(p.Records)
	}
}

// Len returns the number of records appended so far.
func (b *TableBuilder) Len() int {
	return len(b.records)
}

// CountWhere counts appended records matching fn.
func (b *TableBuilder) CountWhere(fn func(*Record) bool) int {
	n := 0

	for i := range b.records {
		if fn(&b.records[i]) {
			n++
		}
	}

	return n
}

// Build assigns ids according to the strategy, removes duplicates and returns the table.
func (b *TableBuilder) Build() (*Table, BuildStats, error) {
	if b.built {
		return nil, BuildStats{}, ErrTableFinalized
	}

	b.built = true
	stats := BuildStats{Appended: len(b.records)}

	table := &Table{
		Name:     b.name,
		Platform: b.platform,
		IDField:  b.idField,
	}

	if b.strategy == Sequence {
		table.Records = make([]Record, len(b.records))
		for i, r := range b.records {
			r.ID = strconv.Itoa(i)
			table.Records[i] = r
		}

		return table, stats, nil
	}

	seen := make(map[string]struct{}, len(b.records))
	out := make([]Record, 0, len(b.records))

	for _, r := range b.records {
		if r.ID == "" {
			if b.strategy != ContentHash {
				stats.Dropped++

				continue
			}

			r.ID = ContentID(&r)
		}

		if _, dup := seen[r.ID]; dup {
			stats.Duplicates++

			continue
		}

		seen[r.ID] = struct{}{}
		out = append(out, r)
	}

	table.Records = out

	return table, stats, nil
}

// ContentID returns the content-hash id for a record.
func ContentID(r *Record) string {
	return fingerprint.Short(32, r.Source, string(r.Kind), Deref(r.ParentID), r.CreatedAt, r.Text)
}
