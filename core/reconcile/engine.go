package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine reconciles a staging table into a canonical table.
type Engine struct {
	schema Schema
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an engine for records of the given schema.
// A nil logger disables logging.
func NewEngine(schema Schema, opts Options, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := opts.Validate(schema); err != nil {
		return nil, err
	}
	return &Engine{schema: schema, opts: opts, logger: logger}, nil
}

// Validate checks the options against schema. Unknown comparable attributes
// are reported as SchemaError.
func (o Options) Validate(schema Schema) error {
	if strings.TrimSpace(o.CanonicalTable) == "" {
		return fmt.Errorf("canonical table name is required")
	}
	if strings.TrimSpace(o.StagingTable) == "" {
		return fmt.Errorf("staging table name is required")
	}
	if o.CanonicalTable == o.StagingTable {
		return fmt.Errorf("canonical and staging table must differ, both are %q", o.CanonicalTable)
	}
	if o.FloatTolerance < 0 {
		return fmt.Errorf("float tolerance must not be negative, got %v", o.FloatTolerance)
	}
	if len(o.ComparableAttributes) == 0 {
		return &SchemaError{Source: "comparable attributes", Index: -1, Reason: "no comparable attributes configured"}
	}
	for _, name := range o.ComparableAttributes {
		if !schema.Has(name) {
			return &SchemaError{Source: "comparable attributes", Index: -1, Reason: fmt.Sprintf("unknown attribute %q", name)}
		}
	}
	return nil
}

// Options returns the engine's configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Sync reconciles staging into canonical inside one transaction of store.
//
// Deletes are applied before updates and inserts. Any failure after the
// transaction is opened rolls it back entirely and is returned as
// SyncFailedError; nothing is retried.
func (e *Engine) Sync(ctx context.Context, store Store) (report *SyncReport, err error) {
	canonical, staging := e.opts.CanonicalTable, e.opts.StagingTable
	log := e.logger.With(zap.String("canonical", canonical), zap.String("staging", staging))

	if err := e.checkColumns(ctx, store); err != nil {
		return nil, err
	}

	log.Info("Sync started", zap.Bool("dry_run", e.opts.DryRun))

	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, &SyncFailedError{Stage: "begin", Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("Rollback failed", zap.Error(rbErr))
		}
		if r := recover(); r != nil {
			panic(r)
		}
		if err != nil {
			log.Warn("Sync rolled back", zap.Error(err))
		}
	}()

	canonicalSet, err := tx.ReadAll(ctx, canonical)
	if err != nil {
		return nil, &SyncFailedError{Stage: "read_canonical", Err: err}
	}

	stagingSet, err := tx.ReadAll(ctx, staging)
	if err != nil {
		return nil, &SyncFailedError{Stage: "read_staging", Err: err}
	}

	differ := Differ{Comparable: e.opts.ComparableAttributes, FloatTolerance: e.opts.FloatTolerance}
	delta := differ.Diff(stagingSet, canonicalSet)

	log.Info("Delta computed",
		zap.Int("staging_records", stagingSet.Len()),
		zap.Int("canonical_records", canonicalSet.Len()),
		zap.Int("to_insert", len(delta.Inserts)),
		zap.Int("to_update", len(delta.Updates)),
		zap.Int("to_delete", len(delta.Deletes)),
		zap.Int("unchanged", delta.Unchanged),
	)
	e.logSampleUpdates(log, delta, canonicalSet)

	report = &SyncReport{
		Inserted:  len(delta.Inserts),
		Updated:   len(delta.Updates),
		Deleted:   len(delta.Deletes),
		Unchanged: delta.Unchanged,
		DryRun:    e.opts.DryRun,
	}

	if e.opts.DryRun {
		// deferred rollback releases the transaction
		report.CompletedAt = e.opts.Now()
		log.Info("Dry-run: no changes were applied")
		return report, nil
	}

	if err := e.apply(ctx, tx, delta); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &SyncFailedError{Stage: "commit", Err: err}
	}
	committed = true

	report.CompletedAt = e.opts.Now()
	log.Info("Sync committed",
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("unchanged", report.Unchanged),
	)

	return report, nil
}

// Plan computes the delta without applying it. The transaction is always
// rolled back.
func (e *Engine) Plan(ctx context.Context, store Store) (*Delta, error) {
	if err := e.checkColumns(ctx, store); err != nil {
		return nil, err
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, &SyncFailedError{Stage: "begin", Err: err}
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("Rollback failed", zap.Error(rbErr))
		}
	}()

	canonicalSet, err := tx.ReadAll(ctx, e.opts.CanonicalTable)
	if err != nil {
		return nil, &SyncFailedError{Stage: "read_canonical", Err: err}
	}
	stagingSet, err := tx.ReadAll(ctx, e.opts.StagingTable)
	if err != nil {
		return nil, &SyncFailedError{Stage: "read_staging", Err: err}
	}

	differ := Differ{Comparable: e.opts.ComparableAttributes, FloatTolerance: e.opts.FloatTolerance}
	return differ.Diff(stagingSet, canonicalSet), nil
}

// apply writes the delta in delete, update, insert order.
func (e *Engine) apply(ctx context.Context, tx Tx, delta *Delta) error {
	table := e.opts.CanonicalTable

	if len(delta.Deletes) > 0 {
		if err := tx.BulkDelete(ctx, table, delta.Deletes); err != nil {
			return &SyncFailedError{Stage: "apply_delete", Err: err}
		}
	}

	if len(delta.Updates) > 0 {
		if err := tx.BulkUpdate(ctx, table, delta.Updates); err != nil {
			return &SyncFailedError{Stage: "apply_update", Err: err}
		}
	}

	if len(delta.Inserts) > 0 {
		if err := tx.BulkInsert(ctx, table, delta.Inserts); err != nil {
			return &SyncFailedError{Stage: "apply_insert", Err: err}
		}
	}

	return nil
}

// checkColumns verifies both tables carry the identifier and every schema
// attribute, when the store can tell. It runs before any transaction. Missing
// columns are a SchemaError; a failing inspection is a SyncFailedError.
func (e *Engine) checkColumns(ctx context.Context, store Store) error {
	inspector, ok := store.(SchemaInspector)
	if !ok {
		return nil
	}

	for _, table := range []string{e.opts.CanonicalTable, e.opts.StagingTable} {
		columns, err := inspector.Columns(ctx, table)
		if err != nil {
			return &SyncFailedError{Stage: "inspect", Err: fmt.Errorf("failed to inspect table %s: %w", table, err)}
		}

		present := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			present[strings.ToLower(c)] = struct{}{}
		}

		var missing []string
		for _, c := range e.schema.Columns() {
			if _, ok := present[strings.ToLower(c)]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return &SchemaError{Source: table, Index: -1, Reason: fmt.Sprintf("missing columns %v", missing)}
		}
	}

	return nil
}

// logSampleUpdates logs up to five updates with their changed attributes, and
// notes updates whose last-changed date did not advance.
func (e *Engine) logSampleUpdates(log *zap.Logger, delta *Delta, canonical *RecordSet) {
	maxShow := 5
	if len(delta.Updates) < maxShow {
		maxShow = len(delta.Updates)
	}
	for i := 0; i < maxShow; i++ {
		u := delta.Updates[i]
		log.Debug("Sample update", zap.String("id", u.ID), zap.Strings("changed", u.Changed))
	}
	if len(delta.Updates) > maxShow {
		log.Debug("Additional updates not shown", zap.Int("count", len(delta.Updates)-maxShow))
	}

	name := e.schema.LastChangedAttribute
	if name == "" {
		return
	}
	stale := 0
	for _, u := range delta.Updates {
		fresh, _ := u.Attributes[name].(time.Time)
		old, ok := canonical.Lookup(u.ID)
		if !ok || old.LastChanged == nil || fresh.IsZero() {
			continue
		}
		if !fresh.After(*old.LastChanged) {
			stale++
		}
	}
	if stale > 0 {
		log.Info("Updates without newer last-changed date", zap.String("attribute", name), zap.Int("count", stale))
	}
}

// Sync is a convenience wrapper building a default engine for one run.
func Sync(ctx context.Context, store Store, schema Schema, canonicalTable, stagingTable string, attributes []string) (*SyncReport, error) {
	engine, err := NewEngine(schema, Options{
		CanonicalTable:       canonicalTable,
		StagingTable:         stagingTable,
		ComparableAttributes: attributes,
	}, nil)
	if err != nil {
		return nil, err
	}
	return engine.Sync(ctx, store)
}
