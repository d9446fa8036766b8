package trace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"compliance/internal/artifacts"
	"compliance/internal/content"
	"compliance/internal/paths"
)

// Repository layout.
const (
	RequirementsDir = "docs/00_product/requirements"
	TasksFile       = ".taskmaster/tasks/tasks.json"
	CatalogSuffix   = "-test-cases"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Resolver maps requirement ids to artifacts under Root. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	Root string
	// Content, when set, supplies staged versions of artifacts missing on disk.
	Content content.Reader
}

// NewResolver creates a resolver rooted at root.
func NewResolver(root string, reader content.Reader) *Resolver {
	return &Resolver{Root: root, Content: reader}
}

// FindRepoRoot walks upward from seed looking for the requirements tree,
// then a .compliance directory, then a .git entry.
func FindRepoRoot(seed string) (string, bool) {
	for _, marker := range []string{RequirementsDir, ".compliance", ".git"} {
		if root, ok := paths.FindUpward(seed, marker); ok {
			return root, true
		}
	}
	return "", false
}

// PRDPath returns <root>/docs/00_product/requirements/<ID>/<ID>.md.
func (r *Resolver) PRDPath(id ReqID) string {
	return filepath.Join(r.requirementDir(id), id.String()+".md")
}

// CatalogPath returns the catalog path beside the PRD.
func (r *Resolver) CatalogPath(id ReqID, ext string) string {
	return filepath.Join(r.requirementDir(id), id.String()+CatalogSuffix+"."+ext)
}

// TasksPath returns the central tasks document path.
func (r *Resolver) TasksPath() string {
	return paths.JoinRepoPath(r.Root, TasksFile)
}

func (r *Resolver) requirementDir(id ReqID) string {
	return filepath.Join(paths.JoinRepoPath(r.Root, RequirementsDir), id.String())
}

// Canonical converts path to a repo-relative slash path, falling back to the
// normalized raw path.
func (r *Resolver) Canonical(path string) string {
	if !filepath.IsAbs(path) {
		return paths.NormalizePath(filepath.Clean(path))
	}
	rel, err := paths.CanonicalizePath(path, r.Root)
	if err != nil {
		return paths.NormalizePath(path)
	}
	return rel
}

// Abs returns the absolute form of a repo-relative path.
func (r *Resolver) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return paths.JoinRepoPath(r.Root, path)
}

// LoadPRD reads and parses the PRD for id.
func (r *Resolver) LoadPRD(ctx context.Context, id ReqID) (*artifacts.PRD, error) {
	p := r.PRDPath(id)
	data, err := r.read(ctx, p)
	if err != nil {
		return nil, err
	}
	return artifacts.ParsePRD(p, data)
}

// LoadTasks reads the central tasks document.
func (r *Resolver) LoadTasks(ctx context.Context) (artifacts.TasksDocument, error) {
	data, err := r.read(ctx, r.TasksPath())
	if err != nil {
		return nil, err
	}
	return artifacts.ParseTasksDocument(data)
}

// TaskGroup returns the task group for id. ok is false when the document has
// no entry for id.
func (r *Resolver) TaskGroup(ctx context.Context, id ReqID) (group artifacts.TaskGroup, ok bool, err error) {
	doc, err := r.LoadTasks(ctx)
	if err != nil {
		return artifacts.TaskGroup{}, false, err
	}
	group, ok = doc.Group(id.String())
	return group, ok, nil
}

// ContractPath resolves the PRD's api_contract against the repo root.
func (r *Resolver) ContractPath(prd *artifacts.PRD) string {
	if prd == nil || prd.APIContract == "" {
		return ""
	}
	return r.Abs(prd.APIContract)
}

// ReadFile reads an artifact from disk, or from the index when missing.
func (r *Resolver) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return r.read(ctx, r.Abs(path))
}

func (r *Resolver) read(ctx context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if r.Content != nil {
		if blob := r.Content.Read(ctx, p); blob.Found() {
			return blob.Data, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
}
