package archive

import "codeberg.org/mutker/nexmon/internal/errors"

const (
	ErrInvalidDBPath    = errors.ErrorCode("archive_invalid_db_path")
	ErrStorageInit      = errors.ErrorCode("archive_init_failed")
	ErrStorageClose     = errors.ErrorCode("archive_close_failed")
	ErrTransaction      = errors.ErrorCode("archive_transaction_failed")
	ErrSchemaInit       = errors.ErrorCode("archive_schema_init_failed")
	ErrSchemaValidation = errors.ErrorCode("archive_schema_validation_failed")
	ErrSchemaNewer      = errors.ErrorCode("archive_schema_too_new")
)
