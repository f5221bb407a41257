package reconcile

import (
	"sort"
)

// Differ classifies staging records against canonical ones.
type Differ struct {
	// Comparable lists the attributes participating in change detection.
	Comparable []string

	// FloatTolerance relaxes float comparison; zero means exact equality.
	FloatTolerance float64
}

// Diff computes the delta between staging and canonical using exact comparison
// of the given attributes.
func Diff(staging, canonical *RecordSet, attributes []string) *Delta {
	return Differ{Comparable: attributes}.Diff(staging, canonical)
}

// Diff classifies every id of staging ∪ canonical as insert, update, delete or
// unchanged. Matching is by id only; the output is sorted by id so that it does
// not depend on input order.
func (d Differ) Diff(staging, canonical *RecordSet) *Delta {
	delta := &Delta{
		Inserts: []TreeRecord{},
		Updates: []Update{},
		Deletes: []string{},
	}

	for _, record := range staging.records {
		old, exists := canonical.Lookup(record.ID)
		if !exists {
			delta.Inserts = append(delta.Inserts, record)
			continue
		}

		changed := d.changedAttributes(record, old)
		if len(changed) == 0 {
			delta.Unchanged++
			continue
		}

		delta.Updates = append(delta.Updates, Update{
			ID:         record.ID,
			Attributes: copyAttributes(record.Attributes),
			Changed:    changed,
		})
	}

	for _, record := range canonical.records {
		if !staging.Contains(record.ID) {
			delta.Deletes = append(delta.Deletes, record.ID)
		}
	}

	sort.Slice(delta.Inserts, func(i, j int) bool {
		return delta.Inserts[i].ID < delta.Inserts[j].ID
	})
	sort.Slice(delta.Updates, func(i, j int) bool {
		return delta.Updates[i].ID < delta.Updates[j].ID
	})
	sort.Strings(delta.Deletes)

	return delta
}

// changedAttributes returns the sorted names of compared attributes that differ.
// An attribute missing from one side compares as nil.
func (d Differ) changedAttributes(fresh, old TreeRecord) []string {
	var changed []string
	for _, name := range d.Comparable {
		if !valuesEqual(fresh.Attributes[name], old.Attributes[name], d.FloatTolerance) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

func copyAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
