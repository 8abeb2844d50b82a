package nxapi

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrBadStatus   = errors.ErrorCode("nxapi_bad_status")
	ErrBadResponse = errors.ErrorCode("nxapi_bad_response")
	ErrAuth        = errors.ErrAuthFailure
	ErrTransport   = errors.ErrTransportFailure
)
