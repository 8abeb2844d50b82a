package state

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrInvalidDir  = errors.ErrorCode("state_invalid_directory")
	ErrCorruption  = errors.ErrStateCorruption
	ErrWriteFailed = errors.ErrStateWrite
)
