package checkers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/content"
	"compliance/internal/rules"
	"compliance/internal/slogutil"
	"compliance/internal/syntax"
	"compliance/internal/testutil"
	"compliance/internal/trace"
)

type fixture struct {
	repo *testutil.Repo
	vcs  *testutil.FakeVCS
	env  Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := testutil.NewRepo(t)
	vcs := testutil.NewFakeVCS(repo.Root)
	acc := content.NewAccessor(vcs, content.Options{WorkDir: repo.Root, Logger: slogutil.NewDiscardLogger()})
	return &fixture{
		repo: repo,
		vcs:  vcs,
		env: Env{
			Root:     repo.Root,
			Content:  acc,
			VCS:      vcs,
			Resolver: trace.NewResolver(repo.Root, acc),
			Syntax:   syntax.NewAnalyzer(),
			Logger:   slogutil.NewDiscardLogger(),
		},
	}
}

func (f *fixture) build(t *testing.T, ctor Constructor, raw map[string]interface{}) Checker {
	t.Helper()
	if raw == nil {
		raw = map[string]interface{}{}
	}
	c, err := ctor(rules.RuleSet{Name: "test", Raw: raw}, f.env)
	require.NoError(t, err)
	return c
}

func messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message+" | "+f.Hint)
	}
	return out
}

func hasFinding(findings []Finding, parts ...string) bool {
	for _, f := range findings {
		text := f.Message + " " + f.Hint
		all := true
		for _, p := range parts {
			if !strings.Contains(text, p) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func assertFinding(t *testing.T, findings []Finding, parts ...string) {
	t.Helper()
	assert.True(t, hasFinding(findings, parts...), "no finding containing %q in %q", parts, messages(findings))
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []Command
	result CommandResult
}

func (r *fakeRunner) Run(_ context.Context, cmd Command) CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	return r.result
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"code", "commit", "prd", "task", "test", "test_runner", "testcase"}, reg.Kinds())

	_, ok := reg.Lookup("code")
	assert.True(t, ok)
	_, ok = reg.Lookup("security")
	assert.False(t, ok)
}

func TestConstructorRejectsInvalidRules(t *testing.T) {
	f := newFixture(t)
	_, err := NewTestChecker(rules.RuleSet{Name: "test", Raw: map[string]interface{}{
		"naming": map[string]interface{}{"unit": "("},
	}}, f.env)
	assert.Error(t, err)
}

func TestFinding_String(t *testing.T) {
	assert.Equal(t, "a.py:3: boom", Finding{File: "a.py", Line: 3, Message: "boom"}.String())
	assert.Equal(t, "a.py: boom", Finding{File: "a.py", Message: "boom"}.String())
	assert.Equal(t, "boom", Finding{Message: "boom"}.String())
}

func TestCollector_Escalated(t *testing.T) {
	c := newCollector("x")
	c.escalated(false, "soft", "")
	res := c.result()
	assert.True(t, res.Passed)
	assert.Len(t, res.Warnings, 1)

	c = newCollector("x")
	c.escalated(true, "hard", "")
	res = c.result()
	assert.False(t, res.Passed)
	assert.Len(t, res.Errors, 1)
}
