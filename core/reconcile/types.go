package reconcile

import "time"

// Kind is the value type of a schema attribute.
type Kind string

const (
	// KindString holds free text (street names, species names, districts).
	KindString Kind = "string"
	// KindInt holds whole numbers such as planting years.
	KindInt Kind = "int"
	// KindFloat holds measurements such as trunk diameter or coordinates.
	KindFloat Kind = "float"
	// KindDate holds calendar dates, represented as time.Time at UTC midnight.
	KindDate Kind = "date"
	// KindBool holds flags.
	KindBool Kind = "bool"
)

// Attribute describes one named, typed attribute of a record.
type Attribute struct {
	// Name is the attribute (and column) name.
	Name string

	// Kind is the value type values are normalized to.
	Kind Kind
}

// Schema is the fixed attribute set shared by every record of a dataset.
type Schema struct {
	// IDAttribute is the name of the identifier attribute (e.g. "id").
	IDAttribute string

	// LastChangedAttribute optionally names a date attribute recording when
	// the source last changed the record. It is informational only.
	LastChangedAttribute string

	// Attributes lists every non-identifier attribute.
	Attributes []Attribute
}

// Has reports whether name is a non-identifier attribute of the schema.
func (s Schema) Has(name string) bool {
	_, ok := s.kindOf(name)
	return ok
}

// Names returns the attribute names in schema order, without the identifier.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Attributes))
	for _, attr := range s.Attributes {
		names = append(names, attr.Name)
	}
	return names
}

// Columns returns the identifier followed by every attribute name.
func (s Schema) Columns() []string {
	return append([]string{s.IDAttribute}, s.Names()...)
}

func (s Schema) kindOf(name string) (Kind, bool) {
	for _, attr := range s.Attributes {
		if attr.Name == name {
			return attr.Kind, true
		}
	}
	return "", false
}

// Row is a raw record as handed over by a store or a transformer:
// the identifier plus every schema attribute, keyed by name.
type Row map[string]any

// TreeRecord is one normalized tree observation.
type TreeRecord struct {
	// ID is the stable external identifier, unique within a RecordSet.
	ID string `json:"id"`

	// Attributes maps every schema attribute to its normalized value.
	// A nil value means the attribute is absent (NULL).
	Attributes map[string]any `json:"attributes"`

	// LastChanged mirrors the schema's last-changed attribute, if any.
	LastChanged *time.Time `json:"last_changed,omitempty"`
}

// Update is a record present on both sides whose compared attributes differ.
type Update struct {
	// ID identifies the record.
	ID string `json:"id"`

	// Attributes is the full attribute set of the staging record.
	Attributes map[string]any `json:"attributes"`

	// Changed lists the compared attributes that differ, in sorted order.
	Changed []string `json:"changed"`
}

// Delta is the insert/update/delete classification between staging and canonical.
// The three buckets are disjoint by id; every id of staging ∪ canonical lands
// in exactly one bucket or is counted as unchanged.
type Delta struct {
	// Inserts holds staging records whose id is absent from canonical.
	Inserts []TreeRecord `json:"inserts"`

	// Updates holds records present in both sets with a differing compared attribute.
	Updates []Update `json:"updates"`

	// Deletes holds ids present only in canonical.
	Deletes []string `json:"deletes"`

	// Unchanged counts records present identically in both sets.
	Unchanged int `json:"unchanged"`
}

// IsEmpty reports whether the delta requires no mutation.
func (d *Delta) IsEmpty() bool {
	return len(d.Inserts) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

// SyncReport summarizes one sync run. It is meant for logging by the caller
// and is not persisted.
type SyncReport struct {
	// Inserted is the number of records inserted into the canonical table.
	Inserted int `json:"inserted"`

	// Updated is the number of canonical records overwritten from staging.
	Updated int `json:"updated"`

	// Deleted is the number of canonical records removed.
	Deleted int `json:"deleted"`

	// Unchanged is the number of records left untouched.
	Unchanged int `json:"unchanged"`

	// CompletedAt is when the run committed (or, for dry runs, finished).
	CompletedAt time.Time `json:"completed_at"`

	// DryRun is true when the delta was computed but not applied.
	DryRun bool `json:"dry_run"`
}

// Options configures an Engine.
type Options struct {
	// CanonicalTable is the durable table mutated by the apply step.
	CanonicalTable string

	// StagingTable is the per-run table read as the source of truth.
	StagingTable string

	// ComparableAttributes are the attributes participating in change detection.
	ComparableAttributes []string

	// FloatTolerance is the absolute difference under which two float values
	// count as equal. Zero (the default) means exact equality.
	FloatTolerance float64

	// DryRun computes and reports the delta but rolls the transaction back.
	DryRun bool

	// Now returns the completion timestamp. Defaults to time.Now.
	Now func() time.Time
}
