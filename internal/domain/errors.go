package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a rejected request: malformed IP, non-positive TTL,
	// interval below the minimum or a field of the wrong type.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a lookup that has no result and no fallback.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps failures of the underlying durable store.
	ErrStorage = errors.New("storage failure")

	ErrDatabaseNotInitialised = errors.New("database not initialised")
)

// WrapStorage tags err as a storage failure for operation op.
func WrapStorage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
