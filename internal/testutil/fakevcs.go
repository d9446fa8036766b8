package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// FakeVCS is an in-memory git.Backend keyed on root and repo-relative path.
type FakeVCS struct {
	mu sync.Mutex

	// Repos lists roots that report as repositories.
	Repos map[string]bool
	// Index holds staged blobs: root → rel → content.
	Index map[string]map[string][]byte
	// Diffs holds staged diffs by the path argument given to StagedDiff.
	Diffs map[string]string
	// CommitMessage is returned by LastCommitMessage.
	CommitMessage string

	Marked []string
	Shown  []string
}

// NewFakeVCS creates a fake with root registered as a repository.
func NewFakeVCS(roots ...string) *FakeVCS {
	f := &FakeVCS{
		Repos: map[string]bool{},
		Index: map[string]map[string][]byte{},
		Diffs: map[string]string{},
	}
	for _, r := range roots {
		f.Repos[filepath.Clean(r)] = true
	}
	return f
}

// Stage records content in the index of root.
func (f *FakeVCS) Stage(root, rel, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root = filepath.Clean(root)
	if f.Index[root] == nil {
		f.Index[root] = map[string][]byte{}
	}
	f.Index[root][rel] = []byte(content)
}

// IsRepository implements git.Backend.
func (f *FakeVCS) IsRepository(_ context.Context, root string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Repos[filepath.Clean(root)]
}

// MarkSafe implements git.Backend.
func (f *FakeVCS) MarkSafe(_ context.Context, root string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Marked = append(f.Marked, root)
}

// ShowStaged implements git.Backend.
func (f *FakeVCS) ShowStaged(_ context.Context, root, rel string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Shown = append(f.Shown, rel)
	if data, ok := f.Index[filepath.Clean(root)][rel]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("fatal: path '%s' does not exist in the index", rel)
}

// StagedDiff implements git.Backend.
func (f *FakeVCS) StagedDiff(_ context.Context, _ string, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Diffs[path], nil
}

// LastCommitMessage implements git.Backend.
func (f *FakeVCS) LastCommitMessage(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CommitMessage, nil
}
