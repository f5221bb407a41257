package trees

import (
	"testing"
	"time"

	"tree-sync/core/reconcile"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCityShape() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	mitte := geojson.NewFeature(orb.Polygon{{{13.3, 52.5}, {13.5, 52.5}, {13.5, 52.6}, {13.3, 52.6}, {13.3, 52.5}}})
	mitte.Properties["bezirk"] = "Mitte"
	fc.Append(mitte)

	pankow := geojson.NewFeature(orb.MultiPolygon{{{{13.3, 52.6}, {13.5, 52.6}, {13.5, 52.7}, {13.3, 52.7}, {13.3, 52.6}}}})
	pankow.Properties["bezirk"] = "Pankow"
	fc.Append(pankow)

	return fc
}

func rawTree(gisid string, lng, lat float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lng, lat})
	f.Properties = geojson.Properties{
		"gisid":           gisid,
		"strname":         "Invalidenstraße",
		"hausnr":          "42",
		"art_bot":         "Tilia cordata",
		"art_dtsch":       "Winter-Linde",
		"standortnr":      "17",
		"baumhoehe":       18.0,
		"kronedurch":      9.0,
		"gattung_deutsch": "LINDE",
		"pflanzjahr":      1987.0,
		"stammumfg":       157.0,
		"aend_dat":        "2024-11-05Z",
	}
	return f
}

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	mapping, err := LoadMapping("")
	require.NoError(t, err)
	tr, err := NewTransformer(Schema(), mapping, "bezirk", nil)
	require.NoError(t, err)
	return tr
}

func TestTransform(t *testing.T) {
	raw := geojson.NewFeatureCollection()
	raw.Append(rawTree("00008100:000a1b2c", 13.38, 52.53))
	outside := rawTree("00008100:000a1b2d", 14.0, 52.53)
	outside.Properties["stammumfg"] = nil
	outside.Properties["art_bot"] = ""
	raw.Append(outside)

	rows, err := newTestTransformer(t).Transform(raw, testCityShape())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rs, err := reconcile.NewRecordSet("trees", Schema(), rows)
	require.NoError(t, err, "transformed rows carry exactly the schema attributes")

	linden, ok := rs.Lookup("00008100:000a1b2c")
	require.True(t, ok)
	assert.Equal(t, "Tilia", linden.Attributes[AttrGenus])
	assert.Equal(t, 50.0, linden.Attributes[AttrTrunkDiameter])
	assert.Equal(t, int64(1987), linden.Attributes[AttrPlantingYear])
	assert.Equal(t, 52.53, linden.Attributes[AttrLatitude])
	assert.Equal(t, 13.38, linden.Attributes[AttrLongitude])
	assert.Equal(t, "Mitte", linden.Attributes[AttrDistrict])
	assert.Equal(t, time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC), linden.Attributes[AttrLastChanged])

	other, _ := rs.Lookup("00008100:000a1b2d")
	assert.Nil(t, other.Attributes[AttrDistrict])
	assert.Nil(t, other.Attributes[AttrTrunkDiameter])
	assert.Nil(t, other.Attributes[AttrGenus])
}

func TestTransform_MultiPolygonDistrict(t *testing.T) {
	raw := geojson.NewFeatureCollection()
	raw.Append(rawTree("1", 13.4, 52.65))

	rows, err := newTestTransformer(t).Transform(raw, testCityShape())
	require.NoError(t, err)
	assert.Equal(t, "Pankow", rows[0][AttrDistrict])
}

func TestTransform_FeatureIDFallback(t *testing.T) {
	f := rawTree("", 13.4, 52.55)
	delete(f.Properties, "gisid")
	f.ID = "feature-7"
	raw := geojson.NewFeatureCollection()
	raw.Append(f)

	rows, err := newTestTransformer(t).Transform(raw, testCityShape())
	require.NoError(t, err)
	assert.Equal(t, "feature-7", rows[0][AttrID])
}

func TestTransform_Errors(t *testing.T) {
	noID := rawTree("x", 13.4, 52.55)
	delete(noID.Properties, "gisid")

	polygon := rawTree("y", 0, 0)
	polygon.Geometry = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}

	badCircumference := rawTree("z", 13.4, 52.55)
	badCircumference.Properties["stammumfg"] = "thick"

	tests := []struct {
		name    string
		feature *geojson.Feature
		message string
	}{
		{name: "missing id", feature: noID, message: "missing identifier"},
		{name: "not a point", feature: polygon, message: "want point"},
		{name: "bad circumference", feature: badCircumference, message: "attribute stammdurch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := geojson.NewFeatureCollection()
			raw.Append(rawTree("ok", 13.4, 52.55))
			raw.Append(tt.feature)

			_, err := newTestTransformer(t).Transform(raw, testCityShape())
			require.Error(t, err)
			assert.ErrorIs(t, err, reconcile.ErrSchema)
			assert.Contains(t, err.Error(), tt.message)

			var schemaErr *reconcile.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, 1, schemaErr.Index)
		})
	}
}

func TestTransform_UnparseableDateBecomesNull(t *testing.T) {
	f := rawTree("1", 13.4, 52.55)
	f.Properties["aend_dat"] = "gestern"
	raw := geojson.NewFeatureCollection()
	raw.Append(f)

	rows, err := newTestTransformer(t).Transform(raw, testCityShape())
	require.NoError(t, err)
	assert.Nil(t, rows[0][AttrLastChanged])
}

func TestTransform_DistrictNeedsCityShape(t *testing.T) {
	raw := geojson.NewFeatureCollection()
	raw.Append(rawTree("1", 13.4, 52.55))

	_, err := newTestTransformer(t).Transform(raw, nil)
	assert.Error(t, err)
}

func TestMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "unknown op",
			yaml:    "calculated:\n  lat:\n    op: teleport\n",
			message: "unknown op",
		},
		{
			name:    "unknown target",
			yaml:    "mapping:\n  crown: krone\n",
			message: "unknown attribute",
		},
		{
			name:    "mapped and calculated",
			yaml:    "mapping:\n  lat: y\ncalculated:\n  lat:\n    op: latitude\n",
			message: "both mapped and calculated",
		},
		{
			name:    "missing source",
			yaml:    "calculated:\n  gattung:\n    op: first_word\n",
			message: "needs a source property",
		},
		{
			name:    "incomplete",
			yaml:    "mapping:\n  id: gisid\n",
			message: "leaves attributes unset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMapping([]byte(tt.yaml))
			require.NoError(t, err)
			err = m.Validate(Schema())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadMapping_File(t *testing.T) {
	_, err := LoadMapping("does-not-exist.yaml")
	assert.Error(t, err)

	_, err = ParseMapping([]byte("mapping: [not, a, map]"))
	assert.Error(t, err)
}

func TestCircumferenceToDiameter(t *testing.T) {
	assert.Equal(t, 50.0, CircumferenceToDiameter(157))
	assert.Equal(t, 31.8, CircumferenceToDiameter(100))
	assert.Equal(t, 0.0, CircumferenceToDiameter(0))
}

func TestFeatureCollectionRoundTrip(t *testing.T) {
	oak := testTree("1", "Quercus robur", 30)
	noCoords := testTree("2", "Betula", 12)
	noCoords.Attributes[AttrLatitude] = nil
	noCoords.Attributes[AttrLongitude] = nil

	fc := ToFeatureCollection(Schema(), []reconcile.TreeRecord{oak, noCoords})
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "2024-03-01", fc.Features[0].Properties[AttrLastChanged])
	assert.Equal(t, orb.Point{13.40, 52.52}, fc.Features[0].Geometry)
	assert.Nil(t, fc.Features[1].Geometry)

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	decoded, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	rs, err := reconcile.NewRecordSet("trees", Schema(), FromFeatureCollection(Schema(), decoded))
	require.NoError(t, err)

	delta := reconcile.Diff(rs, mustRecordSet(t, oak, noCoords), DefaultComparable())
	assert.True(t, delta.IsEmpty())
	assert.Equal(t, 2, delta.Unchanged)
}

func mustRecordSet(t *testing.T, records ...reconcile.TreeRecord) *reconcile.RecordSet {
	t.Helper()
	rows := make([]reconcile.Row, 0, len(records))
	for _, rec := range records {
		row := reconcile.Row{AttrID: rec.ID}
		for k, v := range rec.Attributes {
			row[k] = v
		}
		rows = append(rows, row)
	}
	rs, err := reconcile.NewRecordSet("expected", Schema(), rows)
	require.NoError(t, err)
	return rs
}
