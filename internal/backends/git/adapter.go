package git

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cerrors "compliance/internal/errors"
	"compliance/internal/slogutil"
)

const (
	// DefaultQueryTimeout bounds every git invocation.
	DefaultQueryTimeout = 10 * time.Second
)

// Adapter implements Backend by shelling out to the git binary.
type Adapter struct {
	binary       string
	queryTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	marked map[string]bool
}

// NewAdapter creates a git adapter. A zero timeout selects DefaultQueryTimeout.
func NewAdapter(timeout time.Duration, logger *slog.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Adapter{
		binary:       "git",
		queryTimeout: timeout,
		logger:       logger,
		marked:       make(map[string]bool),
	}
}

// Available reports whether the git binary is on PATH.
func (g *Adapter) Available() bool {
	_, err := exec.LookPath(g.binary)
	return err == nil
}

// IsRepository checks for a .git entry (directory, or file for worktrees) at root.
func (g *Adapter) IsRepository(_ context.Context, root string) bool {
	if root == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

// MarkSafe adds root to the global safe.directory list unless it is already
// listed. Failures are logged at debug and otherwise ignored.
func (g *Adapter) MarkSafe(ctx context.Context, root string) {
	g.mu.Lock()
	done := g.marked[root]
	g.marked[root] = true
	g.mu.Unlock()
	if done || !g.Available() {
		return
	}

	out, err := g.execute(ctx, "", "config", "--global", "--get-all", "safe.directory")
	if err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			entry := strings.TrimSpace(line)
			if entry == "*" || entry == root {
				return
			}
		}
	}
	if _, err := g.execute(ctx, "", "config", "--global", "--add", "safe.directory", root); err != nil {
		g.logger.Debug("Could not mark directory as safe", "root", root, "error", err.Error())
	}
}

// ShowStaged reads `:<rel>` from the index of the repository at root.
func (g *Adapter) ShowStaged(ctx context.Context, root, rel string) ([]byte, error) {
	return g.execute(ctx, root, "show", ":"+filepath.ToSlash(rel))
}

// StagedDiff returns the zero-context staged diff for path.
func (g *Adapter) StagedDiff(ctx context.Context, root, path string) (string, error) {
	out, err := g.execute(ctx, root, "diff", "--cached", "--unified=0", "--", path)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// LastCommitMessage returns the message of HEAD.
func (g *Adapter) LastCommitMessage(ctx context.Context, root string) (string, error) {
	out, err := g.execute(ctx, root, "log", "-1", "--pretty=%B")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// execute runs a git command with timeout and returns raw stdout.
func (g *Adapter) execute(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	g.logger.Debug("Executing git command", "args", args, "dir", dir)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, cerrors.New(cerrors.Timeout, "git command timed out", err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, cerrors.New(cerrors.InternalError, "git command failed", err).WithDetails(map[string]interface{}{
				"args":   args,
				"stderr": strings.TrimSpace(stderr.String()),
			})
		}
		return nil, cerrors.New(cerrors.VCSUnavailable, "failed to execute git", err)
	}
	return output, nil
}
