// Package audit appends one JSON-lines record per engine run to the first
// writable log location, optionally mirroring it into a SQLite ledger.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"compliance/internal/slogutil"
	"compliance/internal/storage"
)

// FallbackName is the file name used by the fallback locations.
const FallbackName = "compliance_audit.log"

// Summary counts the files of a run by status.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
}

// Record is one audit log line.
type Record struct {
	Timestamp   string   `json:"timestamp"`
	RunID       string   `json:"run_id"`
	Summary     Summary  `json:"summary"`
	FailedFiles []string `json:"failed_files"`
	Errors      []string `json:"errors"`
}

// Options configures a Writer.
type Options struct {
	RepoRoot string
	// LogPath is the preferred location, relative to RepoRoot unless absolute.
	LogPath string
	// DBPath enables the SQLite mirror when set.
	DBPath string
	// TempDir defaults to os.TempDir().
	TempDir string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Writer appends records. It is safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	candidates []string
	dbPath     string
	logger     *slog.Logger
	now        func() time.Time
	open       func(p string) (logFile, error)
}

// logFile is the subset of *os.File used to append a record.
type logFile interface {
	io.WriteCloser
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// errPartialWrite marks a record left half-written in a log that could not
// be rolled back. No further location is tried.
var errPartialWrite = errors.New("partial audit record could not be rolled back")

func openLogFile(p string) (logFile, error) {
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewWriter creates a writer over the fallback chain
// <repo>/<LogPath>, <repo>/logs/compliance_audit.log, <tmp>/compliance_audit.log.
func NewWriter(opts Options) *Writer {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Writer{logger: opts.Logger, now: opts.Now, open: openLogFile}
	if opts.LogPath != "" {
		w.candidates = append(w.candidates, resolve(opts.RepoRoot, opts.LogPath))
	}
	w.candidates = append(w.candidates,
		filepath.Join(opts.RepoRoot, "logs", FallbackName),
		filepath.Join(opts.TempDir, FallbackName),
	)
	if opts.DBPath != "" {
		w.dbPath = resolve(opts.RepoRoot, opts.DBPath)
	}
	return w
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// Candidates returns the log locations in priority order.
func (w *Writer) Candidates() []string {
	return append([]string(nil), w.candidates...)
}

// Append writes rec as a single line to the first writable candidate and
// returns its path. Timestamp and RunID are filled in when empty.
func (w *Writer) Append(rec Record) (string, error) {
	if rec.Timestamp == "" {
		rec.Timestamp = w.now().UTC().Format(time.RFC3339)
	}
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.FailedFiles == nil {
		rec.FailedFiles = []string{}
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode audit record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	written := ""
	for _, p := range w.candidates {
		if err := w.appendLine(p, data); err != nil {
			if errors.Is(err, errPartialWrite) {
				return "", err
			}
			w.logger.Debug("Audit location not writable", "path", p, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		written = p
		break
	}
	if written == "" {
		return "", fmt.Errorf("no writable audit log location: %w", errors.Join(errs...))
	}

	if w.dbPath != "" {
		if err := w.mirror(rec); err != nil {
			w.logger.Warn("Audit ledger write failed", "path", w.dbPath, "error", err.Error())
		}
	}
	return written, nil
}

// appendLine writes line to p. A failed write is rolled back to the prior
// size so the log never keeps a truncated record.
func (w *Writer) appendLine(p string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := w.open(p)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	n, err := f.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if n > 0 {
			if terr := f.Truncate(info.Size()); terr != nil {
				f.Close()
				return fmt.Errorf("%s: %w: %v", p, errPartialWrite, errors.Join(err, terr))
			}
		}
		f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) mirror(rec Record) error {
	db, err := storage.Open(w.dbPath, w.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		ts = w.now()
	}
	return storage.NewAuditRepository(db).Insert(&storage.AuditRun{
		RunID:       rec.RunID,
		Timestamp:   ts,
		Total:       rec.Summary.Total,
		Passed:      rec.Summary.Passed,
		Failed:      rec.Summary.Failed,
		Warnings:    rec.Summary.Warnings,
		FailedFiles: rec.FailedFiles,
		Errors:      rec.Errors,
	})
}
