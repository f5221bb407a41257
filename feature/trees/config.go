package trees

import (
	"fmt"
	"strings"
)

// Source kinds for GeoJSON resources.
const (
	SourceFile   = "file"
	SourceBucket = "bucket"
)

// Config holds the tree pipeline and sync settings.
type Config struct {
	// CanonicalTable is the durable tree table.
	CanonicalTable string `mapstructure:"canonical_table" default:"trees"`
	// StagingTable is the per-run table the transformed trees are loaded into.
	StagingTable string `mapstructure:"staging_table" default:"trees_tmp"`
	// ComparableAttributes lists the attributes used for change detection.
	ComparableAttributes []string `mapstructure:"comparable_attributes" default:"strname,hausnr,art_bot,art_dtsch,standortnr,baumhoehe,stammdurch,kronedurch,aend_dat,gattung,gattung_deutsch,pflanzjahr,stammumfg,lat,lng,bezirk"`
	// FloatTolerance relaxes float comparison; 0 means exact.
	FloatTolerance float64 `mapstructure:"float_tolerance" default:"0"`
	// BatchSize is the number of rows per insert/delete statement.
	BatchSize int `mapstructure:"batch_size" default:"500"`
	// Source selects where GeoJSON resources live (file or bucket).
	Source string `mapstructure:"source" default:"file"`
	// ResourcesDir is the root directory of file resources.
	ResourcesDir string `mapstructure:"resources_dir" default:"resources"`
	// BucketPrefix is the object prefix of bucket resources.
	BucketPrefix string `mapstructure:"bucket_prefix" default:"resources"`
	// CityShapeName is the GeoJSON name of the district polygons.
	CityShapeName string `mapstructure:"city_shape_name" default:"city_shape"`
	// TreesName is the GeoJSON name of the raw tree inventory.
	TreesName string `mapstructure:"trees_name" default:"s_wfs_baumbestand_2025-01-07"`
	// GeoJSONName is the GeoJSON name the transformed trees are stored under.
	GeoJSONName string `mapstructure:"geojson_name" default:"trees-transformed"`
	// DistrictProperty is the city shape property holding the district name.
	DistrictProperty string `mapstructure:"district_property" default:"bezirk"`
	// MappingFile optionally overrides the embedded schema mapping.
	MappingFile string `mapstructure:"mapping_file" default:""`
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Source {
	case SourceFile, SourceBucket:
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceFile, SourceBucket)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// Comparable returns the trimmed, non-empty comparable attribute names.
func (c Config) Comparable() []string {
	var out []string
	for _, name := range c.ComparableAttributes {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
