package collector

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrNoSwitches   = errors.ErrorCode("collector_no_switches")
	ErrEncodeFailed = errors.ErrorCode("collector_encode_failed")
)
