// Package testutil provides throwaway repositories and an in-memory VCS for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Repo is a repository laid out in a temporary directory.
type Repo struct {
	t    *testing.T
	Root string
}

// NewRepo creates an empty repository root with a .git marker directory.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	return &Repo{t: t, Root: root}
}

// Path returns the absolute path of a repo-relative slash path.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// Write creates rel with content, making parent directories.
func (r *Repo) Write(rel, content string) string {
	r.t.Helper()
	p := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		r.t.Fatalf("Failed to write %s: %v", rel, err)
	}
	return p
}

// Mkdir creates a repo-relative directory.
func (r *Repo) Mkdir(rel string) string {
	r.t.Helper()
	p := r.Path(rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		r.t.Fatalf("Failed to create %s: %v", rel, err)
	}
	return p
}

// WritePRD writes a PRD at the fixed requirements layout.
func (r *Repo) WritePRD(reqID, frontmatter, body string) string {
	r.t.Helper()
	return r.Write("docs/00_product/requirements/"+reqID+"/"+reqID+".md", "---\n"+frontmatter+"---\n\n"+body)
}
