package telemetry

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	// Engine errors
	ErrUnknownCounter = errors.ErrorCode("telemetry_unknown_counter")
	ErrStaleSample    = errors.ErrStaleSample
	ErrCounterReset   = errors.ErrCounterReset

	// Correlation errors
	ErrInvalidRecord = errors.ErrorCode("telemetry_invalid_record")
)
