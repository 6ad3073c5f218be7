package errors

import "errors"

var (
	ErrDuplicate = errors.New("review already exists for booking")
)
