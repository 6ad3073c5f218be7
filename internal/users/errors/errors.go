package errors

import "errors"

var (
	ErrNotFound = errors.New("user not found")

	ErrInvalidID = errors.New("invalid user ID format")

	ErrDuplicateEmail = errors.New("email already registered")

	ErrOTPNotFound = errors.New("otp not found")

	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)
