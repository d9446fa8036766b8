// Package paths holds path helpers shared by the resolver, the accessor and the matcher.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRepo is returned when a path does not live under the repository root.
var ErrOutsideRepo = errors.New("path is outside the repository")

// CanonicalizePath converts an absolute path to a repo-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to repo root
// - Converts backslashes to forward slashes
// - Returns repo-relative path with forward slashes
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// A staged file may not exist on disk yet; its parent might.
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = resolveMissing(absolutePath)
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		repoRootResolved = repoRoot
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRepo
	}

	return filepath.ToSlash(relativePath), nil
}

// resolveMissing resolves symlinks on the longest existing ancestor of p and
// re-appends the missing tail.
func resolveMissing(p string) string {
	dir, tail := filepath.Dir(p), filepath.Base(p)
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, tail)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return p
		}
		tail = filepath.Join(filepath.Base(dir), tail)
		dir = parent
	}
}

// IsWithinRepo checks if a path is within the repository root
func IsWithinRepo(path string, repoRoot string) bool {
	_, err := CanonicalizePath(path, repoRoot)
	return err == nil
}

// NormalizePath normalizes a path by converting backslashes to forward slashes
// and dropping a leading "./".
func NormalizePath(path string) string {
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// JoinRepoPath joins a repo root with a canonical path
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// Absolute returns p unchanged when absolute, otherwise joined onto base.
func Absolute(p, base string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// FindUpward walks from seed towards the filesystem root and returns the
// first directory containing marker (a file or directory, may be nested
// like "docs/00_product/requirements").
func FindUpward(seed string, marker string) (string, bool) {
	dir := seed
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(marker))); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Exists reports whether p exists on disk.
func Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// IsFile reports whether p exists and is a regular file.
func IsFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
