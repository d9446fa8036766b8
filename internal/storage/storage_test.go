package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/slogutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger", "audit.db"), slogutil.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.getSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
	assert.FileExists(t, db.Path())
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, NewAuditRepository(db).Insert(&AuditRun{RunID: "a", Timestamp: time.Now()}))
	require.NoError(t, db.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	defer db.Close()
	n, err := NewAuditRepository(db).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuditRepository_InsertGet(t *testing.T) {
	repo := NewAuditRepository(setupTestDB(t))
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	run := &AuditRun{
		RunID:       "run-1",
		Timestamp:   ts,
		Total:       3,
		Passed:      1,
		Failed:      1,
		Warnings:    1,
		FailedFiles: []string{"backend/apps/users/views.py"},
		Errors:      []string{"first", "second"},
	}
	require.NoError(t, repo.Insert(run))

	got, err := repo.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.Error(t, repo.Insert(run), "duplicate run id")
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
