package errors

import "errors"

var (
	ErrNotFound = errors.New("loan not found")

	ErrInvalidID = errors.New("invalid loan ID format")

	// ErrLockHeld means another request is inside the loan-creation
	// critical section for the same book.
	ErrLockHeld = errors.New("loan lock already held")
)
