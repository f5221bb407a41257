package reconcile

import (
	"errors"
	"fmt"
)

// Error categories. Every typed error below matches exactly one of these
// through errors.Is.
var (
	ErrSchema              = errors.New("schema error")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConnection          = errors.New("store connection error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrSyncFailed          = errors.New("sync failed")
)

// SchemaError reports input that does not have the expected shape:
// a missing identifier, a wrong attribute set or an unconvertible value.
type SchemaError struct {
	// Source names the record set or table being validated.
	Source string
	// Index is the position of the offending row, or -1 when not row specific.
	Index int
	// Reason describes the violation.
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("schema error in %s at row %d: %s", e.Source, e.Index, e.Reason)
	}
	return fmt.Sprintf("schema error in %s: %s", e.Source, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// DuplicateKeyError reports two records sharing an id within one record set.
type DuplicateKeyError struct {
	Source string
	ID     string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate id %q in %s", e.ID, e.Source)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// ConnectionError is a transient store connectivity failure. The whole sync
// may be re-run from scratch.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ConstraintViolationError is a data integrity violation raised by the store.
// Retrying with unchanged input fails identically.
type ConstraintViolationError struct {
	Op    string
	Table string
	Err   error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation during %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

func (e *ConstraintViolationError) Is(target error) bool { return target == ErrConstraintViolation }

// SyncFailedError wraps any failure inside the sync transaction. It always
// implies that the transaction was rolled back.
type SyncFailedError struct {
	// Stage is the step that failed (begin, read, apply_delete, ...).
	Stage string
	// Err is the underlying cause.
	Err error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("sync failed at %s: %v", e.Stage, e.Err)
}

func (e *SyncFailedError) Unwrap() error { return e.Err }

func (e *SyncFailedError) Is(target error) bool { return target == ErrSyncFailed }

// IsRetryable reports whether err leaves the caller free to re-run the sync
// unchanged, which is only the case for connection failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnection)
}
