package trees

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"tree-sync/core/reconcile"
	"tree-sync/core/utils"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed mapping.yaml
var defaultMapping []byte

// Calculation ops.
const (
	OpCopy                    = "copy"
	OpDate                    = "date"
	OpFirstWord               = "first_word"
	OpCircumferenceToDiameter = "circumference_to_diameter"
	OpLatitude                = "latitude"
	OpLongitude               = "longitude"
	OpDistrict                = "district"
)

var opNeedsSource = map[string]bool{
	OpCopy:                    true,
	OpDate:                    true,
	OpFirstWord:               true,
	OpCircumferenceToDiameter: true,
	OpLatitude:                false,
	OpLongitude:               false,
	OpDistrict:                false,
}

// Calculation derives one attribute.
type Calculation struct {
	Op   string `yaml:"op"`
	From string `yaml:"from"`
}

// Mapping describes how raw inventory properties become schema attributes.
type Mapping struct {
	Mapping    map[string]string      `yaml:"mapping"`
	Calculated map[string]Calculation `yaml:"calculated"`
}

// LoadMapping reads a mapping file, or the built-in mapping when file is empty.
func LoadMapping(file string) (*Mapping, error) {
	if file == "" {
		return ParseMapping(defaultMapping)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes a YAML mapping document.
func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}
	return &m, nil
}

// Validate checks that every column of schema is produced exactly once and
// that every calculation is known.
func (m *Mapping) Validate(schema reconcile.Schema) error {
	columns := make(map[string]bool)
	for _, c := range schema.Columns() {
		columns[c] = false
	}

	mark := func(target string) error {
		seen, ok := columns[target]
		if !ok {
			return fmt.Errorf("mapping targets unknown attribute %q", target)
		}
		if seen {
			return fmt.Errorf("attribute %q is both mapped and calculated", target)
		}
		columns[target] = true
		return nil
	}

	for target, src := range m.Mapping {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("mapping of %q has no source property", target)
		}
		if err := mark(target); err != nil {
			return err
		}
	}
	for target, calc := range m.Calculated {
		needsSource, known := opNeedsSource[calc.Op]
		if !known {
			return fmt.Errorf("calculation of %q uses unknown op %q", target, calc.Op)
		}
		if needsSource && calc.From == "" {
			return fmt.Errorf("calculation of %q (%s) needs a source property", target, calc.Op)
		}
		if err := mark(target); err != nil {
			return err
		}
	}

	var missing []string
	for c, seen := range columns {
		if !seen {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("mapping leaves attributes unset: %v", missing)
	}
	return nil
}

func (m *Mapping) usesDistricts() bool {
	for _, calc := range m.Calculated {
		if calc.Op == OpDistrict {
			return true
		}
	}
	return false
}

// Transformer turns the raw inventory into schema rows.
type Transformer struct {
	schema           reconcile.Schema
	mapping          *Mapping
	districtProperty string
	logger           *zap.Logger
}

// NewTransformer validates mapping against schema.
func NewTransformer(schema reconcile.Schema, mapping *Mapping, districtProperty string, logger *zap.Logger) (*Transformer, error) {
	if err := mapping.Validate(schema); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{
		schema:           schema,
		mapping:          mapping,
		districtProperty: districtProperty,
		logger:           logger,
	}, nil
}

type district struct {
	name  string
	geom  orb.Geometry
	bound orb.Bound
}

func (d district) contains(pt orb.Point) bool {
	if !d.bound.Contains(pt) {
		return false
	}
	switch g := d.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// Transform maps every tree feature to a row. cityShape supplies the district
// polygons and may be nil when the mapping does not use them.
func (t *Transformer) Transform(trees, cityShape *geojson.FeatureCollection) ([]reconcile.Row, error) {
	var districts []district
	if t.mapping.usesDistricts() {
		if cityShape == nil {
			return nil, fmt.Errorf("district calculation needs a city shape")
		}
		districts = t.districts(cityShape)
	}

	rows := make([]reconcile.Row, 0, len(trees.Features))
	outside := 0
	for i, f := range trees.Features {
		row, err := t.transformFeature(i, f, districts)
		if err != nil {
			return nil, err
		}
		if len(districts) > 0 && row[AttrDistrict] == nil {
			outside++
		}
		rows = append(rows, row)
	}

	if outside > 0 {
		t.logger.Warn("Trees outside of every district", zap.Int("count", outside))
	}
	t.logger.Info("Trees transformed", zap.Int("count", len(rows)))
	return rows, nil
}

func (t *Transformer) districts(cityShape *geojson.FeatureCollection) []district {
	var out []district
	for _, f := range cityShape.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		name, ok := f.Properties[t.districtProperty]
		if !ok || name == nil {
			continue
		}
		out = append(out, district{name: utils.ToString(name), geom: f.Geometry, bound: f.Geometry.Bound()})
	}
	if len(out) == 0 {
		t.logger.Warn("City shape has no district polygons", zap.String("property", t.districtProperty))
	}
	return out
}

func (t *Transformer) transformFeature(i int, f *geojson.Feature, districts []district) (reconcile.Row, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return nil, &reconcile.SchemaError{Source: KindTrees, Index: i, Reason: fmt.Sprintf("geometry is %T, want point", f.Geometry)}
	}

	row := make(reconcile.Row, len(t.schema.Attributes)+1)
	for target, src := range t.mapping.Mapping {
		row[target] = f.Properties[src]
	}

	idAttr := t.schema.IDAttribute
	if row[idAttr] == nil && f.ID != nil {
		row[idAttr] = f.ID
	}
	if row[idAttr] == nil {
		return nil, &reconcile.SchemaError{Source: KindTrees, Index: i, Reason: "missing identifier"}
	}

	for target, calc := range t.mapping.Calculated {
		value, err := t.calculate(calc, f.Properties, pt, districts)
		if err != nil {
			return nil, &reconcile.SchemaError{Source: KindTrees, Index: i, Reason: fmt.Sprintf("attribute %s: %v", target, err)}
		}
		row[target] = value
	}
	return row, nil
}

func (t *Transformer) calculate(calc Calculation, props geojson.Properties, pt orb.Point, districts []district) (any, error) {
	raw := props[calc.From]

	switch calc.Op {
	case OpCopy:
		return raw, nil

	case OpDate:
		if isBlank(raw) {
			return nil, nil
		}
		d, err := utils.ParseDate(raw)
		if err != nil {
			t.logger.Debug("Dropping unparseable date", zap.Any("value", raw), zap.Error(err))
			return nil, nil
		}
		return d, nil

	case OpFirstWord:
		if isBlank(raw) {
			return nil, nil
		}
		return strings.Fields(utils.ToString(raw))[0], nil

	case OpCircumferenceToDiameter:
		if isBlank(raw) {
			return nil, nil
		}
		circumference, err := utils.ParseFloat(raw)
		if err != nil {
			return nil, err
		}
		return CircumferenceToDiameter(circumference), nil

	case OpLatitude:
		return pt.Lat(), nil

	case OpLongitude:
		return pt.Lon(), nil

	case OpDistrict:
		for _, d := range districts {
			if d.contains(pt) {
				return d.name, nil
			}
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unknown op %q", calc.Op)
}

// CircumferenceToDiameter converts a trunk circumference to its diameter,
// rounded to one decimal.
func CircumferenceToDiameter(circumference float64) float64 {
	return math.Round(circumference/math.Pi*10) / 10
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// ToFeatureCollection renders records as point features. Dates are written
// as YYYY-MM-DD; records without coordinates get a null geometry.
func ToFeatureCollection(schema reconcile.Schema, records []reconcile.TreeRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		var f *geojson.Feature
		lat, latOK := rec.Attributes[AttrLatitude].(float64)
		lng, lngOK := rec.Attributes[AttrLongitude].(float64)
		if latOK && lngOK {
			f = geojson.NewFeature(orb.Point{lng, lat})
		} else {
			f = &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}
		}

		f.ID = rec.ID
		f.Properties[schema.IDAttribute] = rec.ID
		for _, name := range schema.Names() {
			value := rec.Attributes[name]
			if d, ok := value.(time.Time); ok {
				value = d.Format(utils.DateLayout)
			}
			f.Properties[name] = value
		}
		fc.Append(f)
	}
	return fc
}

// FromFeatureCollection reads rows back from a previously written
// transformed collection. Only schema columns are taken from the properties.
func FromFeatureCollection(schema reconcile.Schema, fc *geojson.FeatureCollection) []reconcile.Row {
	rows := make([]reconcile.Row, 0, len(fc.Features))
	for _, f := range fc.Features {
		row := make(reconcile.Row, len(schema.Attributes)+1)
		for _, c := range schema.Columns() {
			if v, ok := f.Properties[c]; ok {
				row[c] = v
			}
		}
		if _, ok := row[schema.IDAttribute]; !ok && f.ID != nil {
			row[schema.IDAttribute] = f.ID
		}
		rows = append(rows, row)
	}
	return rows
}
