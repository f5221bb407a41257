package cmd

import (
	"context"
	"fmt"

	"tree-sync/core/config"
	"tree-sync/core/database"
	"tree-sync/core/logger"
	"tree-sync/core/storage"
	"tree-sync/feature/trees"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	store  *trees.Store
}

// bootstrap loads configuration, builds the logger and connects to the database.
func bootstrap() (*env, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: l,
		db:     db,
		store:  trees.NewStore(db, trees.Schema(), cfg.Trees.BatchSize),
	}, nil
}

// newTreeService wires the tree service with its GeoJSON source and transformer.
// The storage client is only created for bucket sources.
func (a *env) newTreeService() (*trees.Service, error) {
	var client storage.Client
	if a.cfg.Trees.Source == trees.SourceBucket {
		c, err := storage.NewClient(a.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		client = c
	}

	source, err := trees.NewGeoDataSource(a.cfg.Trees, client, a.cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}
	if bucket, ok := source.(*trees.BucketSource); ok {
		if err := bucket.EnsureBucket(context.Background()); err != nil {
			return nil, err
		}
	}

	mapping, err := trees.LoadMapping(a.cfg.Trees.MappingFile)
	if err != nil {
		return nil, err
	}
	transformer, err := trees.NewTransformer(trees.Schema(), mapping, a.cfg.Trees.DistrictProperty, a.logger)
	if err != nil {
		return nil, fmt.Errorf("invalid schema mapping: %w", err)
	}

	return trees.NewService(a.store, source, transformer, a.cfg.Trees, a.logger), nil
}

func (a *env) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
