// Package git wraps the git subprocess calls the compliance gate needs.
// Every call is read-only with respect to repository state.
package git

import "context"

// Backend is the narrow VCS surface used by the content accessor and the checkers.
// Tests substitute an in-memory fake.
type Backend interface {
	// IsRepository reports whether a repository is rooted at root.
	IsRepository(ctx context.Context, root string) bool

	// MarkSafe registers root as a trusted directory. Best effort.
	MarkSafe(ctx context.Context, root string)

	// ShowStaged returns the index version of rel (repo-relative, slash separated).
	ShowStaged(ctx context.Context, root, rel string) ([]byte, error)

	// StagedDiff returns `diff --cached --unified=0` output for path.
	StagedDiff(ctx context.Context, root, path string) (string, error)

	// LastCommitMessage returns the body of the most recent commit.
	LastCommitMessage(ctx context.Context, root string) (string, error)
}
