package reconcile

import "context"

// Store is the persisted table pair (canonical + staging) the engine works on.
type Store interface {
	// Begin opens a transaction. The engine releases it on every exit path,
	// either by Commit or by Rollback.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a scoped store transaction. None of its mutating operations commit
// on their own.
type Tx interface {
	// ReadAll loads every record of table as a validated RecordSet.
	ReadAll(ctx context.Context, table string) (*RecordSet, error)

	// BulkInsert inserts records into table.
	BulkInsert(ctx context.Context, table string, records []TreeRecord) error

	// BulkUpdate overwrites the attributes of existing records by id.
	BulkUpdate(ctx context.Context, table string, updates []Update) error

	// BulkDelete removes records by id.
	BulkDelete(ctx context.Context, table string, ids []string) error

	// Commit makes the transaction's changes durable.
	Commit() error

	// Rollback discards the transaction's changes.
	Rollback() error
}

// SchemaInspector is implemented by stores able to list table columns. The
// engine uses it to reject tables lacking schema attributes before it opens
// a transaction.
type SchemaInspector interface {
	Columns(ctx context.Context, table string) ([]string, error)
}
