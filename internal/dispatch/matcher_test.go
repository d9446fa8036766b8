package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"compliance/internal/config"
)

func testMatcher() *Matcher {
	return NewMatcher("/repo",
		[]string{"**/migrations/**", "*.min.js", "node_modules/**"},
		[]config.FileRule{
			{Pattern: "backend/apps/**/*.py", Rules: []string{"code", "commit"}},
			{Pattern: "backend/tests/**/test_*.py", Rules: []string{"test", "commit"}},
			{Pattern: "backend/**/*.py", Rules: []string{"commit", "code"}},
			{Pattern: "docs/00_product/requirements/**/*.md", Rules: []string{"prd"}},
			{Pattern: "docs/00_product/requirements/**/*-test-cases.csv", Rules: []string{"testcase"}},
		})
}

func TestExcluded(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		path string
		want bool
	}{
		{"backend/apps/users/migrations/0001_initial.py", true},
		{"frontend/dist/app.min.js", true},
		{"node_modules/lib/index.js", true},
		{"/repo/backend/apps/orders/migrations/0002.py", true},
		{"backend/apps/users/views.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Excluded(tt.path))
		})
	}
}

func TestMatch_UnionInOrder(t *testing.T) {
	m := testMatcher()

	assert.Equal(t, []string{"code", "commit"}, m.Match("backend/apps/users/views.py"))
	assert.Equal(t, []string{"test", "commit", "code"}, m.Match("backend/tests/unit/test_users_views.py"))
	assert.Equal(t, []string{"prd"}, m.Match("docs/00_product/requirements/REQ-2025-001/REQ-2025-001.md"))
}

func TestMatch_AbsolutePath(t *testing.T) {
	m := testMatcher()
	abs := filepath.Join("/repo", "backend", "apps", "users", "views.py")
	assert.Equal(t, []string{"code", "commit"}, m.Match(abs))
}

func TestMatch_NoEntryOrExcluded(t *testing.T) {
	m := testMatcher()
	assert.Empty(t, m.Match("README.md"))
	assert.Empty(t, m.Match("backend/apps/users/migrations/0001_initial.py"))
}

func TestMatch_Deterministic(t *testing.T) {
	m := testMatcher()
	first := m.Match("backend/tests/unit/test_a.py")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, m.Match("backend/tests/unit/test_a.py"))
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ExcludePaths = []string{"vendor/**"}
	cfg.FileRulesMapping = []config.FileRule{{Pattern: "*.md", Rules: []string{"prd", "prd"}}}

	m := FromConfig("", cfg)
	assert.True(t, m.Excluded("vendor/x.md"))
	assert.Equal(t, []string{"prd"}, m.Match("docs/x.md"))
}
