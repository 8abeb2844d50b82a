// Package archive keeps an optional local sqlite copy of every emitted
// record, so a missed scrape window can be replayed without re-polling the
// switches.
package archive

import (
	"database/sql"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultDirPerm = 0o755

type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive database at path.
func Open(path string) (*Archive, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := path + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := validateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().
		Str("path", path).
		Int("schema_version", SchemaVersion).
		Msg("Record archive opened")

	return &Archive{db: db}, nil
}

// Store writes one poll's record set for one switch inside a single
// transaction, so a crashed run never leaves a half-written poll behind.
func (a *Archive) Store(switchID string, records []telemetry.UnifiedRecord) error {
	if len(records) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := a.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransaction, err)
	}

	stmt, err := tx.Prepare(insertRecordSQL)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error().Err(rbErr).Msg("Failed to roll back archive transaction")
		}
		return errFactory.Wrap(ErrTransaction, err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		tags, err := json.Marshal(rec.Tags)
		if err != nil {
			continue
		}
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			continue
		}
		if _, err := stmt.Exec(rec.Time.UnixNano(), switchID, rec.Measurement,
			string(tags), string(fields)); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error().Err(rbErr).Msg("Failed to roll back archive transaction")
			}
			return errFactory.Wrap(ErrTransaction, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransaction, err)
	}

	return nil
}

func (a *Archive) Close() error {
	errFactory := errors.New()

	if _, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := a.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}
