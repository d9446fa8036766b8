// Package dispatch decides which rule-sets apply to a file.
package dispatch

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"compliance/internal/config"
	"compliance/internal/paths"
)

// Matcher applies exclusion globs and the file→rules mapping.
// Patterns use doublestar syntax against the slash-separated path; a pattern
// without a slash also matches the base name.
type Matcher struct {
	root    string
	exclude []string
	mapping []config.FileRule
}

// NewMatcher creates a matcher. repoRoot relativizes absolute inputs.
func NewMatcher(repoRoot string, exclude []string, mapping []config.FileRule) *Matcher {
	return &Matcher{root: repoRoot, exclude: exclude, mapping: mapping}
}

// FromConfig creates a matcher from the engine configuration.
func FromConfig(repoRoot string, cfg config.Config) *Matcher {
	return NewMatcher(repoRoot, cfg.ExcludePaths, cfg.FileRulesMapping)
}

// Excluded reports whether path matches any exclusion pattern.
func (m *Matcher) Excluded(path string) bool {
	forms := m.forms(path)
	for _, pattern := range m.exclude {
		if matchAny(pattern, forms) {
			return true
		}
	}
	return false
}

// Match returns the rule names of every mapping entry matching path, in
// mapping order, without duplicates. Excluded paths match nothing.
func (m *Matcher) Match(path string) []string {
	if m.Excluded(path) {
		return nil
	}
	forms := m.forms(path)
	var names []string
	seen := make(map[string]bool)
	for _, entry := range m.mapping {
		if !matchAny(entry.Pattern, forms) {
			continue
		}
		for _, name := range entry.Rules {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// forms returns the spellings of path tried against each pattern: the
// repo-relative path when one can be computed, then the raw argument.
func (m *Matcher) forms(path string) []string {
	raw := paths.NormalizePath(path)
	var forms []string
	if m.root != "" {
		abs := paths.Absolute(path, m.root)
		if rel, err := filepath.Rel(m.root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			forms = append(forms, filepath.ToSlash(rel))
		}
	}
	if len(forms) == 0 || forms[0] != raw {
		forms = append(forms, raw)
	}
	return forms
}

func matchAny(pattern string, forms []string) bool {
	pattern = filepath.ToSlash(pattern)
	baseOnly := !strings.Contains(pattern, "/")
	for _, f := range forms {
		if ok, _ := doublestar.Match(pattern, f); ok {
			return true
		}
		if baseOnly {
			if ok, _ := doublestar.Match(pattern, f[strings.LastIndex(f, "/")+1:]); ok {
				return true
			}
		}
	}
	return false
}
