package stream

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an operation against a missing id. Callers treat it as
// a no-op with a reported failure, never a crash.
var ErrNotFound = errors.New("not found")

// ErrQuotaExceeded reports that a binary payload write ran out of storage.
// Distinct from ErrNotFound so the caller can surface it to the user.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ErrSnapshotVersion reports an import document with an unsupported format
// version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// ValidationError rejects bad input before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
