package trees

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"tree-sync/core/database"
	"tree-sync/core/reconcile"
	"tree-sync/feature/trees/models"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrTreeNotFound is returned by Find when no tree has the requested id.
var ErrTreeNotFound = errors.New("tree not found")

// MySQL server error numbers treated as constraint violations.
var constraintErrorNumbers = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1364: true, // field has no default value
	1451: true, // foreign key: row is referenced
	1452: true, // foreign key: parent row missing
	3819: true, // check constraint violated
}

// Store persists tree tables through GORM.
type Store struct {
	db        *gorm.DB
	schema    reconcile.Schema
	batchSize int
	now       func() time.Time
}

// NewStore creates a store for tables of the given schema.
func NewStore(db *gorm.DB, schema reconcile.Schema, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Store{db: db, schema: schema, batchSize: batchSize, now: time.Now}
}

// Begin opens a transaction. Nothing written through it is visible to others
// until Commit.
func (s *Store) Begin(ctx context.Context) (reconcile.Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classifyError("begin", "", tx.Error)
	}
	return &storeTx{db: tx, store: s}, nil
}

// Columns lists the columns of table. A missing table has no columns.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	names, err := database.ColumnNames(ctx, s.db, table)
	if err != nil {
		return nil, classifyError("inspect", table, err)
	}
	return names, nil
}

// PrepareTable creates table, or adds missing columns to it.
func (s *Store) PrepareTable(ctx context.Context, table string) error {
	if err := s.db.WithContext(ctx).Table(table).AutoMigrate(&models.Tree{}); err != nil {
		return classifyError("migrate", table, err)
	}
	return nil
}

// LoadStaging replaces table with a fresh one holding records.
func (s *Store) LoadStaging(ctx context.Context, table string, records []reconcile.TreeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Migrator().DropTable(table); err != nil {
			return classifyError("drop", table, err)
		}
		if err := tx.Table(table).AutoMigrate(&models.Tree{}); err != nil {
			return classifyError("migrate", table, err)
		}
		return s.insert(ctx, tx, table, records)
	})
}

// Snapshot reads every record of table outside of any sync transaction.
func (s *Store) Snapshot(ctx context.Context, table string) (*reconcile.RecordSet, error) {
	return s.readAll(ctx, s.db, table)
}

// Find returns the tree with the given id from table.
func (s *Store) Find(ctx context.Context, table, id string) (*reconcile.TreeRecord, error) {
	var tree models.Tree
	err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&tree).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s in %s", ErrTreeNotFound, id, table)
	}
	if err != nil {
		return nil, classifyError("find", table, err)
	}

	rs, err := reconcile.NewRecordSet(table, s.schema, []reconcile.Row{tree.ToRow()})
	if err != nil {
		return nil, err
	}
	rec, _ := rs.Lookup(tree.ID)
	return &rec, nil
}

func (s *Store) readAll(ctx context.Context, db *gorm.DB, table string) (*reconcile.RecordSet, error) {
	var trees []models.Tree
	if err := db.WithContext(ctx).Table(table).Order("id").Find(&trees).Error; err != nil {
		return nil, classifyError("read", table, err)
	}

	rows := make([]reconcile.Row, 0, len(trees))
	for _, tree := range trees {
		rows = append(rows, tree.ToRow())
	}
	return reconcile.NewRecordSet(table, s.schema, rows)
}

func (s *Store) insert(ctx context.Context, db *gorm.DB, table string, records []reconcile.TreeRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := s.now().UTC()
	trees := make([]models.Tree, 0, len(records))
	for _, rec := range records {
		tree := models.FromRecord(rec)
		tree.UpdatedAt = now
		trees = append(trees, tree)
	}

	if err := db.WithContext(ctx).Table(table).CreateInBatches(&trees, s.batchSize).Error; err != nil {
		return classifyError("insert", table, err)
	}
	return nil
}

// storeTx is a reconcile.Tx over one GORM transaction.
type storeTx struct {
	db    *gorm.DB
	store *Store
}

func (t *storeTx) ReadAll(ctx context.Context, table string) (*reconcile.RecordSet, error) {
	return t.store.readAll(ctx, t.db, table)
}

func (t *storeTx) BulkInsert(ctx context.Context, table string, records []reconcile.TreeRecord) error {
	return t.store.insert(ctx, t.db, table, records)
}

// BulkUpdate overwrites the schema attributes of each id, one statement per tree.
func (t *storeTx) BulkUpdate(ctx context.Context, table string, updates []reconcile.Update) error {
	now := t.store.now().UTC()
	for _, u := range updates {
		values := make(map[string]any, len(u.Attributes)+1)
		for _, name := range t.store.schema.Names() {
			values[name] = u.Attributes[name]
		}
		values["updated_at"] = now

		if err := t.db.WithContext(ctx).Table(table).Where("id = ?", u.ID).Updates(values).Error; err != nil {
			return classifyError("update", table, err)
		}
	}
	return nil
}

// BulkDelete removes ids in chunks of the store's batch size.
func (t *storeTx) BulkDelete(ctx context.Context, table string, ids []string) error {
	for start := 0; start < len(ids); start += t.store.batchSize {
		end := start + t.store.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		err := t.db.WithContext(ctx).
			Table(table).
			Where("id IN ?", ids[start:end]).
			Delete(&models.Tree{}).Error
		if err != nil {
			return classifyError("delete", table, err)
		}
	}
	return nil
}

func (t *storeTx) Commit() error {
	if err := t.db.Commit().Error; err != nil {
		return classifyError("commit", "", err)
	}
	return nil
}

func (t *storeTx) Rollback() error {
	err := t.db.Rollback().Error
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return classifyError("rollback", "", err)
}

// classifyError maps driver errors onto the reconcile error categories.
// Errors that fit no category are wrapped with the operation context.
func classifyError(op, table string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return &reconcile.ConstraintViolationError{Op: op, Table: table, Err: err}
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && constraintErrorNumbers[myErr.Number] {
		return &reconcile.ConstraintViolationError{Op: op, Table: table, Err: err}
	}

	// sqlite reports NOT NULL and CHECK failures only through the message
	if strings.Contains(err.Error(), "constraint failed") {
		return &reconcile.ConstraintViolationError{Op: op, Table: table, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysqldriver.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return &reconcile.ConnectionError{Op: op, Err: err}
	}

	if table == "" {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return fmt.Errorf("%s %s failed: %w", op, table, err)
}
