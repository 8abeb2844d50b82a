package clicmd

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrDialFailed = errors.ErrorCode("clicmd_dial_failed")
	ErrCmdFailed  = errors.ErrorCode("clicmd_command_failed")
	ErrBadOutput  = errors.ErrParseFailure
)
