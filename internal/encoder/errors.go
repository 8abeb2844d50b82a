package encoder

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrUnknownFormat = errors.ErrorCode("encoder_unknown_format")
	ErrWriteFailed   = errors.ErrorCode("encoder_write_failed")
)
