package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Collection errors
	ErrTransportFailure ErrorCode = "transport_failure"
	ErrAuthFailure      ErrorCode = "authentication_failure"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrParseFailure     ErrorCode = "parse_failure"

	// Counter processing errors
	ErrStaleSample  ErrorCode = "stale_sample"
	ErrCounterReset ErrorCode = "counter_reset"

	// State errors
	ErrStateCorruption ErrorCode = "state_corruption"
	ErrStateWrite      ErrorCode = "state_write_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrUnavailable:      "Service unavailable",
	ErrInvalidConfig:    "Invalid configuration",
	ErrMissingConfig:    "Missing configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read configuration",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInitFailed:       "Initialization failed",
	ErrShutdownFailed:   "Shutdown failed",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrTransportFailure: "Transport failure",
	ErrAuthFailure:      "Authentication failed",
	ErrTimeout:          "Operation timed out",
	ErrParseFailure:     "Failed to parse device output",
	ErrStaleSample:      "Sample is stale or out of order",
	ErrCounterReset:     "Counter reset detected",
	ErrStateCorruption:  "Persisted counter state is corrupt",
	ErrStateWrite:       "Failed to persist counter state",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
