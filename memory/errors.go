package memory

import "fmt"

// ValidationError reports caller input that violates a precondition
// (empty text or query). It is surfaced immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps any failure in the embed/encrypt/index chain
// during a write or a bulk read. The underlying cause is preserved for
// errors.Is/As.
type StorageError struct {
	Op  string // operation that failed, e.g. "add memory"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
