package trees

import (
	"context"
	"sync"
	"testing"
	"time"

	"tree-sync/core/reconcile"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CanonicalTable:       "trees",
		StagingTable:         "trees_tmp",
		ComparableAttributes: DefaultComparable(),
		BatchSize:            2,
		Source:               SourceFile,
		CityShapeName:        "city_shape",
		TreesName:            "raw",
		GeoJSONName:          "trees-transformed",
		DistrictProperty:     "bezirk",
	}
}

type serviceFixture struct {
	service *Service
	store   *Store
	source  *FileSource
}

func newServiceFixture(t *testing.T, raw *geojson.FeatureCollection) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	source := NewFileSource(t.TempDir())
	require.NoError(t, source.Write(ctx, KindCityShape, "city_shape", testCityShape()))
	require.NoError(t, source.Write(ctx, KindTrees, "raw", raw))

	store, _ := newTestStore(t)
	svc := NewService(store, source, newTestTransformer(t), testConfig(), nil)
	return &serviceFixture{service: svc, store: store, source: source}
}

func rawInventory(trees ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range trees {
		fc.Append(f)
	}
	return fc
}

func TestService_ProcessEndToEnd(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory(
		rawTree("a", 13.38, 52.53),
		rawTree("b", 13.40, 52.54),
		rawTree("c", 13.42, 52.65),
	))

	report, err := fx.service.Process(ctx, ProcessOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Inserted)
	assert.False(t, report.CompletedAt.IsZero())

	stored, err := fx.source.Read(ctx, KindTrees, "trees-transformed")
	require.NoError(t, err)
	assert.Len(t, stored.Features, 3)

	// running the same inventory again changes nothing
	report, err = fx.service.Process(ctx, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
	assert.Equal(t, 0, report.Inserted+report.Updated+report.Deleted)

	// next inventory: b grew, c was felled, d was planted
	grown := rawTree("b", 13.40, 52.54)
	grown.Properties["stammumfg"] = 170.0
	require.NoError(t, fx.source.Write(ctx, KindTrees, "raw", rawInventory(
		rawTree("a", 13.38, 52.53),
		grown,
		rawTree("d", 13.45, 52.55),
	)))

	report, err = fx.service.Process(ctx, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Unchanged)

	rec, err := fx.service.Lookup(ctx, TableCanonical, "b")
	require.NoError(t, err)
	assert.Equal(t, 54.1, rec.Attributes[AttrTrunkDiameter])

	_, err = fx.service.Lookup(ctx, TableCanonical, "c")
	assert.ErrorIs(t, err, ErrTreeNotFound)
}

func TestService_ProcessSkipUpload(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory(rawTree("a", 13.38, 52.53)))

	report, err := fx.service.Process(ctx, ProcessOptions{SkipUpload: true, GeoJSONName: "preview"})
	require.NoError(t, err)
	assert.Nil(t, report)

	names, err := fx.service.Sources(ctx, KindTrees)
	require.NoError(t, err)
	assert.Equal(t, []string{"preview", "raw"}, names)

	columns, err := fx.store.Columns(ctx, "trees")
	require.NoError(t, err)
	assert.Empty(t, columns, "nothing was uploaded")
}

func TestService_ProcessSkipTransform(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory(rawTree("a", 13.38, 52.53), rawTree("b", 13.40, 52.54)))

	_, err := fx.service.Process(ctx, ProcessOptions{SkipUpload: true})
	require.NoError(t, err)

	// the raw inventory is gone; the stored transformed GeoJSON is enough
	require.NoError(t, fx.source.Write(ctx, KindTrees, "raw", rawInventory()))

	report, err := fx.service.Process(ctx, ProcessOptions{SkipTransform: true, SkipStoreGeoJSON: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
}

func TestService_ProcessDuplicateIDs(t *testing.T) {
	fx := newServiceFixture(t, rawInventory(rawTree("a", 13.38, 52.53), rawTree("a", 13.40, 52.54)))

	_, err := fx.service.Process(context.Background(), ProcessOptions{})
	assert.ErrorIs(t, err, reconcile.ErrDuplicateKey)
}

func TestService_ProcessMissingCityShape(t *testing.T) {
	fx := newServiceFixture(t, rawInventory(rawTree("a", 13.38, 52.53)))

	_, err := fx.service.Process(context.Background(), ProcessOptions{CityShapeName: "atlantis"})
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestService_ProcessRefusesCanonicalAsStaging(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory(rawTree("a", 13.38, 52.53)))
	seed(t, fx.store, "trees", testTree("old1", "Oak", 30), testTree("old2", "Birch", 12))

	report, err := fx.service.Process(ctx, ProcessOptions{StagingTable: "trees"})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "must differ")

	assert.Equal(t, map[string]string{"old1": "Oak", "old2": "Birch"}, species(t, fx.store, "trees"))

	_, err = fx.source.Read(ctx, KindTrees, "trees-transformed")
	assert.ErrorIs(t, err, ErrResourceNotFound, "nothing is written for rejected options")
}

func TestService_SyncTablesConcurrentStagingTables(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory())
	seed(t, fx.store, "trees")
	seed(t, fx.store, "stage_a", testTree("A", "Oak", 30))
	seed(t, fx.store, "stage_b", testTree("A", "Oak", 30), testTree("B", "Birch", 12))

	var wg sync.WaitGroup
	reports := make(map[string]*reconcile.SyncReport, 2)
	errs := make(map[string]error, 2)
	var mu sync.Mutex
	for _, staging := range []string{"stage_a", "stage_b"} {
		wg.Add(1)
		go func(staging string) {
			defer wg.Done()
			report, err := fx.service.SyncTables(ctx, "trees", staging, false)
			mu.Lock()
			defer mu.Unlock()
			reports[staging], errs[staging] = report, err
		}(staging)
	}
	wg.Wait()

	require.NoError(t, errs["stage_a"])
	require.NoError(t, errs["stage_b"])

	// each run diffed its own staging table, whichever committed first
	a, b := reports["stage_a"], reports["stage_b"]
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, a.Inserted+a.Unchanged)
	assert.Equal(t, 2, b.Inserted+b.Unchanged)

	final := species(t, fx.store, "trees")
	assert.Equal(t, "Oak", final["A"])
	if a.Deleted == 1 {
		assert.Equal(t, map[string]string{"A": "Oak"}, final, "stage_a committed last")
	} else {
		assert.Equal(t, map[string]string{"A": "Oak", "B": "Birch"}, final, "stage_b committed last")
	}
}

func TestService_SyncLastChangedOnlyIsUpdate(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory())
	touched := testTree("1", "Oak", 30)
	touched.Attributes[AttrLastChanged] = time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	seed(t, fx.store, "trees", testTree("1", "Oak", 30))
	seed(t, fx.store, "trees_tmp", touched)

	report, err := fx.service.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Unchanged)

	rec, err := fx.service.Lookup(ctx, TableCanonical, "1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), rec.Attributes[AttrLastChanged])

	// a second run sees nothing left to do
	report, err = fx.service.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
}

func TestService_SyncDryRun(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory())
	seed(t, fx.store, "trees", testTree("1", "Oak", 30), testTree("2", "Birch", 12))
	seed(t, fx.store, "trees_tmp", testTree("1", "Oak", 32), testTree("3", "Maple", 8))

	report, err := fx.service.Sync(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Deleted)

	assert.Equal(t, map[string]string{"1": "Oak", "2": "Birch"}, species(t, fx.store, "trees"))
}

func TestService_Lookup(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t, rawInventory())
	seed(t, fx.store, "trees_tmp", testTree("7", "Maple", 8))

	rec, err := fx.service.Lookup(ctx, TableStaging, "7")
	require.NoError(t, err)
	assert.Equal(t, "7", rec.ID)

	_, err = fx.service.Lookup(ctx, "archive", "7")
	assert.ErrorIs(t, err, ErrUnknownTable)
}
