package config

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrInvalidFormat    = errors.ErrorCode("config_invalid_output_format")
	ErrMissingArguments = errors.ErrorCode("config_missing_arguments")
	ErrInvalidHeadroom  = errors.ErrorCode("config_invalid_headroom")

	// Inventory errors
	ErrInventoryRead     = errors.ErrorCode("config_inventory_read_failed")
	ErrInventoryLocation = errors.ErrorCode("config_inventory_missing_location")
	ErrInventoryLine     = errors.ErrInvalidConfig
)
