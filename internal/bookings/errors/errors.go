package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means the stored status no longer matches the one
	// the transition was decided on.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
