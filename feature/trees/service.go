package trees

import (
	"context"
	"errors"
	"fmt"

	"tree-sync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Table selectors accepted by Lookup.
const (
	TableCanonical = "canonical"
	TableStaging   = "staging"
)

// ErrUnknownTable is returned by Lookup for an unknown table selector.
var ErrUnknownTable = errors.New("unknown table")

// ProcessOptions controls one run of the tree pipeline. Empty names fall back
// to the configured defaults.
type ProcessOptions struct {
	CityShapeName string
	TreesName     string
	GeoJSONName   string
	StagingTable  string

	SkipTransform    bool
	SkipStoreGeoJSON bool
	SkipUpload       bool
	DryRun           bool
}

// Service runs the tree pipeline and the staging-to-canonical sync.
type Service struct {
	store       *Store
	source      GeoDataSource
	transformer *Transformer
	cfg         Config
	logger      *zap.Logger
	group       singleflight.Group
}

// NewService creates a new tree service.
func NewService(store *Store, source GeoDataSource, transformer *Transformer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		source:      source,
		transformer: transformer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Sync reconciles the configured staging table into the canonical table.
func (s *Service) Sync(ctx context.Context, dryRun bool) (*reconcile.SyncReport, error) {
	return s.SyncTables(ctx, s.cfg.CanonicalTable, s.cfg.StagingTable, dryRun)
}

// SyncTables reconciles staging into canonical. Concurrent calls for the same
// table pair and mode share one run and its result; the run uses the context
// of the caller that started it.
func (s *Service) SyncTables(ctx context.Context, canonical, staging string, dryRun bool) (*reconcile.SyncReport, error) {
	key := fmt.Sprintf("%s|%s|%t", canonical, staging, dryRun)
	v, err, shared := s.group.Do(key, func() (any, error) {
		engine, err := reconcile.NewEngine(Schema(), s.syncOptions(canonical, staging, dryRun), s.logger)
		if err != nil {
			return nil, err
		}
		return engine.Sync(ctx, s.store)
	})
	if shared {
		s.logger.Debug("Joined running sync", zap.String("canonical", canonical), zap.String("staging", staging))
	}
	if err != nil {
		return nil, err
	}
	return v.(*reconcile.SyncReport), nil
}

func (s *Service) syncOptions(canonical, staging string, dryRun bool) reconcile.Options {
	return reconcile.Options{
		CanonicalTable:       canonical,
		StagingTable:         staging,
		ComparableAttributes: s.cfg.Comparable(),
		FloatTolerance:       s.cfg.FloatTolerance,
		DryRun:               dryRun,
	}
}

// Process runs the pipeline: transform the raw inventory (or reuse the stored
// transformed GeoJSON), store the result as GeoJSON, load it into the staging
// table and sync. The report is nil when the upload is skipped.
func (s *Service) Process(ctx context.Context, opts ProcessOptions) (*reconcile.SyncReport, error) {
	opts = s.withDefaults(opts)
	schema := Schema()

	// LoadStaging drops its table, so a staging name that points at the
	// canonical table must be refused before anything is written.
	if !opts.SkipUpload {
		if err := s.syncOptions(s.cfg.CanonicalTable, opts.StagingTable, opts.DryRun).Validate(schema); err != nil {
			return nil, fmt.Errorf("invalid process options: %w", err)
		}
	}

	rows, err := s.loadRows(ctx, opts)
	if err != nil {
		return nil, err
	}

	records, err := reconcile.NewRecordSet(opts.StagingTable, schema, rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transformed trees ready", zap.Int("count", records.Len()))

	if !opts.SkipStoreGeoJSON {
		fc := ToFeatureCollection(schema, records.Records())
		if err := s.source.Write(ctx, KindTrees, opts.GeoJSONName, fc); err != nil {
			return nil, err
		}
		s.logger.Info("Stored transformed trees", zap.String("name", opts.GeoJSONName))
	}

	if opts.SkipUpload {
		return nil, nil
	}

	s.logger.Info("Adding new trees to database", zap.String("table", opts.StagingTable))
	if err := s.store.PrepareTable(ctx, s.cfg.CanonicalTable); err != nil {
		return nil, err
	}
	if err := s.store.LoadStaging(ctx, opts.StagingTable, records.Records()); err != nil {
		return nil, err
	}

	return s.SyncTables(ctx, s.cfg.CanonicalTable, opts.StagingTable, opts.DryRun)
}

func (s *Service) loadRows(ctx context.Context, opts ProcessOptions) ([]reconcile.Row, error) {
	if opts.SkipTransform {
		fc, err := s.source.Read(ctx, KindTrees, opts.GeoJSONName)
		if err != nil {
			return nil, err
		}
		return FromFeatureCollection(Schema(), fc), nil
	}

	cityShape, err := s.source.Read(ctx, KindCityShape, opts.CityShapeName)
	if err != nil {
		return nil, err
	}
	raw, err := s.source.Read(ctx, KindTrees, opts.TreesName)
	if err != nil {
		return nil, err
	}
	return s.transformer.Transform(raw, cityShape)
}

func (s *Service) withDefaults(opts ProcessOptions) ProcessOptions {
	if opts.CityShapeName == "" {
		opts.CityShapeName = s.cfg.CityShapeName
	}
	if opts.TreesName == "" {
		opts.TreesName = s.cfg.TreesName
	}
	if opts.GeoJSONName == "" {
		opts.GeoJSONName = s.cfg.GeoJSONName
	}
	if opts.StagingTable == "" {
		opts.StagingTable = s.cfg.StagingTable
	}
	return opts
}

// Lookup returns one tree from the canonical or the staging table.
func (s *Service) Lookup(ctx context.Context, table, id string) (*reconcile.TreeRecord, error) {
	var name string
	switch table {
	case TableCanonical, "":
		name = s.cfg.CanonicalTable
	case TableStaging:
		name = s.cfg.StagingTable
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTable, table)
	}
	return s.store.Find(ctx, name, id)
}

// Sources lists the GeoJSON resources of kind.
func (s *Service) Sources(ctx context.Context, kind string) ([]string, error) {
	return s.source.List(ctx, kind)
}
