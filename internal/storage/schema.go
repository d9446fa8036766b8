package storage

import (
	"database/sql"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createAuditRunsTable(tx); err != nil {
			return err
		}
		if err := createAuditFindingsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Debug("Audit ledger schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == 0 {
		// Empty file left behind by an interrupted first run.
		return db.initializeSchema()
	}
	if version != currentSchemaVersion {
		db.logger.Debug("Audit ledger schema version differs",
			"from_version", version,
			"to_version", currentSchemaVersion,
		)
	}
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createAuditRunsTable creates one row per engine run.
func createAuditRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS audit_runs (
			run_id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			warnings INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_runs_timestamp ON audit_runs(timestamp)`)
	return err
}

// createAuditFindingsTable holds failed files and error messages per run.
func createAuditFindingsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS audit_findings (
			run_id TEXT NOT NULL REFERENCES audit_runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('failed_file', 'error')),
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, kind, seq)
		)
	`)
	return err
}
