// Package content resolves a path to bytes from the working tree or, for
// files that are staged but not on disk, from the VCS index.
package content

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"compliance/internal/backends/git"
	"compliance/internal/paths"
	"compliance/internal/slogutil"
)

// Origin tells where content came from.
type Origin string

const (
	WorkingTree Origin = "working_tree"
	VCSIndex    Origin = "vcs_index"
	Absent      Origin = "absent"
)

// Blob is the outcome of a read. Data is nil when Origin is Absent.
type Blob struct {
	Data   []byte
	Origin Origin
	// Path is the file read from disk, or the requested path otherwise.
	Path string
	// Root and Rel identify the index entry for VCSIndex reads.
	Root string
	Rel  string
}

// Found reports whether content was located.
func (b Blob) Found() bool { return b.Origin != Absent }

// Text returns the content as a string.
func (b Blob) Text() string { return string(b.Data) }

// Reader is implemented by Accessor and by test fakes.
type Reader interface {
	Read(ctx context.Context, path string) Blob
}

// Options configures an Accessor.
type Options struct {
	// WorkDir defaults to the process working directory.
	WorkDir string
	// ContainerRoot is the well-known checkout location inside containers.
	ContainerRoot string
	Logger        *slog.Logger
}

// Accessor implements Reader over the filesystem and a git.Backend.
type Accessor struct {
	vcs           git.Backend
	workDir       string
	containerRoot string
	logger        *slog.Logger
}

// NewAccessor creates an accessor. vcs may be nil to disable index reads.
func NewAccessor(vcs git.Backend, opts Options) *Accessor {
	if opts.WorkDir == "" {
		opts.WorkDir, _ = os.Getwd()
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	return &Accessor{
		vcs:           vcs,
		workDir:       opts.WorkDir,
		containerRoot: opts.ContainerRoot,
		logger:        opts.Logger,
	}
}

// Read resolves path. It never fails: Absent is a normal outcome.
func (a *Accessor) Read(ctx context.Context, path string) (blob Blob) {
	blob = Blob{Origin: Absent, Path: path}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Content resolution panicked", "path", path, "panic", r)
			blob = Blob{Origin: Absent, Path: path}
		}
	}()
	if strings.TrimSpace(path) == "" {
		return blob
	}

	for _, candidate := range a.diskCandidates(path) {
		if data, ok := readRegular(candidate); ok {
			return Blob{Data: data, Origin: WorkingTree, Path: candidate}
		}
	}

	if a.vcs == nil {
		return blob
	}
	abs := paths.Absolute(path, a.workDir)
	for _, root := range a.vcsCandidates() {
		if ctx.Err() != nil {
			return blob
		}
		if !a.vcs.IsRepository(ctx, root) {
			continue
		}
		a.vcs.MarkSafe(ctx, root)
		rel := relativize(abs, root)
		data, err := a.vcs.ShowStaged(ctx, root, rel)
		if err != nil {
			a.logger.Debug("Not in index", "root", root, "rel", rel, "error", err.Error())
			continue
		}
		if len(data) > 0 {
			return Blob{Data: data, Origin: VCSIndex, Path: path, Root: root, Rel: rel}
		}
	}
	return blob
}

// Exists reports whether path resolves to any content.
func (a *Accessor) Exists(ctx context.Context, path string) bool {
	return a.Read(ctx, path).Found()
}

func (a *Accessor) diskCandidates(path string) []string {
	if filepath.IsAbs(path) {
		return []string{path}
	}
	out := []string{filepath.Join(a.workDir, path)}
	if a.containerRoot != "" {
		out = append(out, filepath.Join(a.containerRoot, path))
	}
	return out
}

// vcsCandidates returns the working directory, its parent and the container
// root, de-duplicated, in that order.
func (a *Accessor) vcsCandidates() []string {
	var roots []string
	seen := make(map[string]bool)
	for _, r := range []string{a.workDir, filepath.Dir(a.workDir), a.containerRoot} {
		if r == "" {
			continue
		}
		r = filepath.Clean(r)
		if seen[r] {
			continue
		}
		seen[r] = true
		roots = append(roots, r)
	}
	return roots
}

// relativize returns abs relative to root, or its base name when it does not
// live under root.
func relativize(abs, root string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}

func readRegular(p string) ([]byte, bool) {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return data, true
}
