// Package reconcile synchronizes a freshly transformed dataset (the staging
// table) into a persisted dataset (the canonical table).
//
// The package is storage agnostic: it consumes a Store that opens
// transactions exposing read-all and bulk insert/update/delete operations.
//
// # Architecture
//
// 1. RecordSet: validated, immutable collection of records keyed by id. Rows
//    are normalized to one in-memory representation per attribute kind
//    (dates become time.Time at UTC midnight) when the set is built.
//
// 2. Differ: classifies every id of staging ∪ canonical as insert, update,
//    delete or unchanged, comparing only the configured attributes.
//
// 3. Engine: opens one transaction, reads both tables, diffs them and applies
//    the delta (deletes, updates, inserts) before committing. Any failure
//    rolls back the whole transaction.
//
// # Float comparison
//
// Float attributes compare with exact equality by default. A tolerance can be
// configured through Options.FloatTolerance; it changes which records count as
// updated, so it is off unless set explicitly.
//
// # Usage Example
//
//	engine, err := reconcile.NewEngine(schema, reconcile.Options{
//	    CanonicalTable:       "trees",
//	    StagingTable:         "trees_tmp",
//	    ComparableAttributes: []string{"art_bot", "stammdurch"},
//	}, logger)
//	report, err := engine.Sync(ctx, store)
//
// # Errors
//
// SchemaError and DuplicateKeyError describe malformed input. ConnectionError
// and ConstraintViolationError are produced by stores. SyncFailedError wraps
// anything that went wrong inside the transaction; use errors.As or
// IsRetryable to inspect the cause.
package reconcile
