package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tree-sync/core/utils"
)

// RecordSet is an immutable collection of tree records keyed by id.
// Insertion order is kept for iteration but carries no meaning.
type RecordSet struct {
	schema  Schema
	records []TreeRecord
	index   map[string]int
}

// NewRecordSet validates and normalizes rows against schema.
// source names the input in error messages (usually a table name).
//
// Every row must carry a non-empty identifier and exactly the schema's
// attributes; values are converted to the canonical type of their kind.
func NewRecordSet(source string, schema Schema, rows []Row) (*RecordSet, error) {
	if schema.IDAttribute == "" {
		return nil, &SchemaError{Source: source, Index: -1, Reason: "schema has no identifier attribute"}
	}

	rs := &RecordSet{
		schema:  schema,
		records: make([]TreeRecord, 0, len(rows)),
		index:   make(map[string]int, len(rows)),
	}

	for i, row := range rows {
		record, err := buildRecord(source, schema, i, row)
		if err != nil {
			return nil, err
		}

		if _, exists := rs.index[record.ID]; exists {
			return nil, &DuplicateKeyError{Source: source, ID: record.ID}
		}

		rs.index[record.ID] = len(rs.records)
		rs.records = append(rs.records, record)
	}

	return rs, nil
}

func buildRecord(source string, schema Schema, i int, row Row) (TreeRecord, error) {
	rawID, ok := row[schema.IDAttribute]
	rawID = deref(rawID)
	if !ok || rawID == nil {
		return TreeRecord{}, &SchemaError{Source: source, Index: i, Reason: fmt.Sprintf("missing identifier %q", schema.IDAttribute)}
	}

	id := strings.TrimSpace(utils.ToString(rawID))
	if id == "" {
		return TreeRecord{}, &SchemaError{Source: source, Index: i, Reason: fmt.Sprintf("empty identifier %q", schema.IDAttribute)}
	}

	if len(row) != len(schema.Attributes)+1 {
		return TreeRecord{}, &SchemaError{Source: source, Index: i, Reason: attributeSetReason(schema, row)}
	}

	attrs := make(map[string]any, len(schema.Attributes))
	for _, attr := range schema.Attributes {
		raw, ok := row[attr.Name]
		if !ok {
			return TreeRecord{}, &SchemaError{Source: source, Index: i, Reason: attributeSetReason(schema, row)}
		}

		value, err := normalizeValue(attr.Kind, raw)
		if err != nil {
			return TreeRecord{}, &SchemaError{Source: source, Index: i, Reason: fmt.Sprintf("attribute %s: %v", attr.Name, err)}
		}
		attrs[attr.Name] = value
	}

	record := TreeRecord{ID: id, Attributes: attrs}
	if schema.LastChangedAttribute != "" {
		if t, ok := attrs[schema.LastChangedAttribute].(time.Time); ok {
			record.LastChanged = &t
		}
	}

	return record, nil
}

// attributeSetReason names the attributes a row is missing and the ones it should not have.
func attributeSetReason(schema Schema, row Row) string {
	var missing, unexpected []string
	for _, name := range schema.Names() {
		if _, ok := row[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range row {
		if name != schema.IDAttribute && !schema.Has(name) {
			unexpected = append(unexpected, name)
		}
	}
	sort.Strings(unexpected)
	return fmt.Sprintf("wrong attribute set (missing %v, unexpected %v)", missing, unexpected)
}

// Schema returns the schema the set was validated against.
func (rs *RecordSet) Schema() Schema {
	return rs.schema
}

// Len returns the number of records.
func (rs *RecordSet) Len() int {
	return len(rs.records)
}

// Lookup returns the record with the given id.
func (rs *RecordSet) Lookup(id string) (TreeRecord, bool) {
	i, ok := rs.index[id]
	if !ok {
		return TreeRecord{}, false
	}
	return rs.records[i], true
}

// Contains reports whether a record with the given id exists.
func (rs *RecordSet) Contains(id string) bool {
	_, ok := rs.index[id]
	return ok
}

// IDs returns the set of ids.
func (rs *RecordSet) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(rs.index))
	for id := range rs.index {
		ids[id] = struct{}{}
	}
	return ids
}

// Records returns a copy of the records in insertion order.
func (rs *RecordSet) Records() []TreeRecord {
	out := make([]TreeRecord, len(rs.records))
	copy(out, rs.records)
	return out
}
