package archive

import (
	"database/sql"

	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS records (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL,
	       switch      TEXT NOT NULL,
	       measurement TEXT NOT NULL,
	       tags        TEXT NOT NULL,
	       fields      TEXT NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS idx_records_switch_ts
	       ON records (switch, timestamp);`

	insertRecordSQL = `
    INSERT INTO records (timestamp, switch, measurement, tags, fields)
    VALUES (?, ?, ?, ?, ?)`
)

// initSchema creates the tables and records the current schema version.
func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to roll back schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	if _, err := tx.Exec(`
        INSERT OR IGNORE INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}
	committed = true

	return nil
}

// schemaVersion returns the version stored in the database, zero when the
// database is fresh.
func schemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name='schema_versions'
        )
    `).Scan(&exists)
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidation, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidation, err)
	}

	return version, nil
}

// validateSchema initializes a fresh database and refuses one written by a
// newer build.
func validateSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	switch {
	case version == 0:
		return initSchema(db)
	case version == SchemaVersion:
		return nil
	case version > SchemaVersion:
		return errors.New().WithData(ErrSchemaNewer, struct {
			Found    int
			Expected int
		}{version, SchemaVersion})
	default:
		// No migrations yet; future versions slot in here.
		return initSchema(db)
	}
}
