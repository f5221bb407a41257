// Package trees implements the municipal tree inventory feature.
//
// It turns the raw tree inventory (a GeoJSON export) into rows of the tree
// schema, loads them into a staging table and reconciles the staging table
// into the canonical table with the core/reconcile engine.
//
// # Components
//
//   - Store: GORM implementation of reconcile.Store for the tree tables,
//     including staging loads and driver error classification.
//   - GeoDataSource: named GeoJSON resources on disk (FileSource) or in an
//     S3 bucket (BucketSource).
//   - Transformer: YAML driven property mapping and derived attributes
//     (genus, trunk diameter, coordinates, district).
//   - Service: the processing pipeline and coalesced sync runs.
//   - Handler / Feature: HTTP endpoints registered through core/loader.
//   - ExportSnapshot: Parquet snapshots of a table.
package trees
