package trees

import (
	"context"
	"testing"
	"time"

	"tree-sync/core/database"
	"tree-sync/core/reconcile"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	firstRun  = time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC)
	secondRun = time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		Name:   ":memory:",
	})
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	store := NewStore(db, Schema(), 2)
	store.now = func() time.Time { return firstRun }
	return store, db
}

// testTree builds a normalized tree record with every schema attribute set.
func testTree(id, species string, diameter float64) reconcile.TreeRecord {
	attrs := make(map[string]any, len(treeAttributes))
	for _, name := range Schema().Names() {
		attrs[name] = nil
	}
	attrs[AttrSpecies] = species
	attrs[AttrGenus] = species
	attrs[AttrTrunkDiameter] = diameter
	attrs[AttrPlantingYear] = int64(1990)
	attrs[AttrLatitude] = 52.52
	attrs[AttrLongitude] = 13.40
	attrs[AttrDistrict] = "Mitte"
	attrs[AttrLastChanged] = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return reconcile.TreeRecord{ID: id, Attributes: attrs}
}

// seed replaces table with records.
func seed(t *testing.T, store *Store, table string, records ...reconcile.TreeRecord) {
	t.Helper()
	require.NoError(t, store.LoadStaging(context.Background(), table, records))
}

func species(t *testing.T, store *Store, table string) map[string]string {
	t.Helper()
	rs, err := store.Snapshot(context.Background(), table)
	require.NoError(t, err)

	out := make(map[string]string, rs.Len())
	for _, rec := range rs.Records() {
		out[rec.ID], _ = rec.Attributes[AttrSpecies].(string)
	}
	return out
}
