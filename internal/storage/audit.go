package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// AuditRun is one engine run as stored in the ledger.
type AuditRun struct {
	RunID       string
	Timestamp   time.Time
	Total       int
	Passed      int
	Failed      int
	Warnings    int
	FailedFiles []string
	Errors      []string
}

// AuditRepository reads and writes audit_runs and audit_findings.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert stores a run and its findings in one transaction.
func (r *AuditRepository) Insert(run *AuditRun) error {
	return r.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO audit_runs (run_id, timestamp, total, passed, failed, warnings)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.RunID, run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Total, run.Passed, run.Failed, run.Warnings)
		if err != nil {
			return fmt.Errorf("failed to insert audit run: %w", err)
		}
		if err := insertFindings(tx, run.RunID, "failed_file", run.FailedFiles); err != nil {
			return err
		}
		return insertFindings(tx, run.RunID, "error", run.Errors)
	})
}

func insertFindings(tx *sql.Tx, runID, kind string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO audit_findings (run_id, seq, kind, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, v := range values {
		if _, err := stmt.Exec(runID, i, kind, v); err != nil {
			return fmt.Errorf("failed to insert audit %s: %w", kind, err)
		}
	}
	return nil
}

// Get loads a run by id. It returns sql.ErrNoRows when the run is unknown.
func (r *AuditRepository) Get(runID string) (*AuditRun, error) {
	run := &AuditRun{RunID: runID}
	var ts string
	err := r.db.QueryRow(`
		SELECT timestamp, total, passed, failed, warnings
		FROM audit_runs WHERE run_id = ?
	`, runID).Scan(&ts, &run.Total, &run.Passed, &run.Failed, &run.Warnings)
	if err != nil {
		return nil, err
	}
	if run.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}

	rows, err := r.db.Query(`
		SELECT kind, value FROM audit_findings
		WHERE run_id = ? ORDER BY kind, seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, err
		}
		if kind == "failed_file" {
			run.FailedFiles = append(run.FailedFiles, value)
		} else {
			run.Errors = append(run.Errors, value)
		}
	}
	return run, rows.Err()
}

// Count returns the number of stored runs.
func (r *AuditRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM audit_runs`).Scan(&n)
	return n, err
}
