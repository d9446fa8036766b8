package checkers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeChecker_MissingReqIDStrict(t *testing.T) {
	f := newFixture(t)
	f.env.Strict = true
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("x = 1\n")
	}
	p := f.repo.Write("backend/apps/users/views.py", b.String())

	c := f.build(t, NewCodeChecker, map[string]interface{}{
		"traceability": map[string]interface{}{"require_prd_link": true},
	})
	res := c.Check(context.Background(), p)
	assert.False(t, res.Passed)
	assertFinding(t, res.Errors, "must contain REQ-ID association")
}

func TestCodeChecker_ReqIDAfterScanWindow(t *testing.T) {
	f := newFixture(t)
	p := f.repo.Write("backend/apps/users/views.py", strings.Repeat("\n", 25)+"# REQ-2025-003-user-login\n")

	c := f.build(t, NewCodeChecker, map[string]interface{}{
		"traceability": map[string]interface{}{"require_prd_link": true},
	})
	assertFinding(t, c.Check(context.Background(), p).Errors, "first 20 lines")
}

func TestCodeChecker_PRDLink(t *testing.T) {
	rules := map[string]interface{}{"traceability": map[string]interface{}{"require_prd_link": true}}

	t.Run("listed", func(t *testing.T) {
		f := newFixture(t)
		f.repo.WritePRD("REQ-2025-003-user-login", "req_id: REQ-2025-003-user-login\nstatus: approved\nimplementation_files:\n  - backend/apps/users/views.py\n", "")
		p := f.repo.Write("backend/apps/users/views.py", "# req-2025-003-user-login\n")

		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
		assert.True(t, res.Passed, messages(res.Errors))
		assert.Empty(t, res.Warnings, messages(res.Warnings))
	})

	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		f.repo.WritePRD("REQ-2025-003-user-login", "req_id: REQ-2025-003-user-login\nimplementation_files:\n  - backend/apps/users/models.py\n", "")
		p := f.repo.Write("backend/apps/users/views.py", "# REQ-2025-003-user-login\n")

		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
		assert.True(t, res.Passed)
		assertFinding(t, res.Warnings, "not listed in implementation_files of REQ-2025-003-user-login")
	})

	t.Run("PRD missing", func(t *testing.T) {
		f := newFixture(t)
		p := f.repo.Write("backend/apps/users/views.py", "# REQ-2025-003-user-login\n")

		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
		assert.True(t, res.Passed)
		assertFinding(t, res.Warnings, "PRD for REQ-2025-003-user-login not found")

		f.env.Strict = true
		res = f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
		assert.False(t, res.Passed)
		assertFinding(t, res.Errors, "PRD for REQ-2025-003-user-login not found")
	})
}

func TestCodeChecker_TestLink(t *testing.T) {
	rules := map[string]interface{}{"traceability": map[string]interface{}{"require_test_link": true}}

	f := newFixture(t)
	p := f.repo.Write("backend/apps/users/views.py", "x = 1\n")
	c := f.build(t, NewCodeChecker, rules)

	res := c.Check(context.Background(), p)
	assert.False(t, res.Passed)
	assertFinding(t, res.Errors, "no test file found", "backend/tests/unit/test_views.py", "backend/tests/integration/test_users_views.py")

	f.repo.Write("backend/tests/integration/test_users_views.py", "def test_x():\n    assert True\n")
	res = c.Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))

	pkg := f.repo.Write("backend/apps/users/__init__.py", "")
	assert.True(t, c.Check(context.Background(), pkg).Passed)
}

func TestCodeChecker_FrontendE2E(t *testing.T) {
	rules := map[string]interface{}{"traceability": map[string]interface{}{"require_test_link": true}}

	f := newFixture(t)
	p := f.repo.Write("frontend/src/components/LoginForm.tsx", "export const LoginForm = () => null\n")
	c := f.build(t, NewCodeChecker, rules)

	res := c.Check(context.Background(), p)
	assert.True(t, res.Passed)
	assertFinding(t, res.Warnings, "no E2E test found")

	f.repo.Write("frontend/tests/e2e/smoke/test-login-form.spec.ts", "test('x', () => {})\n")
	res = c.Check(context.Background(), p)
	assert.Empty(t, res.Warnings, messages(res.Warnings))
}

// A file that exists only in the index is read from there, and so is its test.
func TestCodeChecker_StagedOnly(t *testing.T) {
	rules := map[string]interface{}{"traceability": map[string]interface{}{
		"require_prd_link": true, "require_test_link": true,
	}}

	for _, listed := range []bool{true, false} {
		f := newFixture(t)
		files := "  - backend/apps/users/models.py\n"
		if listed {
			files += "  - backend/apps/users/tasks.py\n"
		}
		f.repo.WritePRD("REQ-2025-003-user-login", "req_id: REQ-2025-003-user-login\nimplementation_files:\n"+files, "")
		f.vcs.Stage(f.repo.Root, "backend/apps/users/tasks.py", "# REQ-2025-003-user-login\ndef run():\n    pass\n")
		f.vcs.Stage(f.repo.Root, "backend/tests/unit/test_users_tasks.py", "def test_run():\n    assert True\n")

		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path("backend/apps/users/tasks.py"))
		assert.True(t, res.Passed, messages(res.Errors))
		assert.False(t, hasFinding(res.Warnings, "content unavailable"))
		if listed {
			assert.Empty(t, res.Warnings, messages(res.Warnings))
		} else {
			assertFinding(t, res.Warnings, "not listed in implementation_files")
		}
	}
}

func TestCodeChecker_Absent(t *testing.T) {
	f := newFixture(t)
	c := f.build(t, NewCodeChecker, map[string]interface{}{
		"traceability": map[string]interface{}{"require_prd_link": true},
	})

	res := c.Check(context.Background(), f.repo.Path("backend/apps/users/gone.py"))
	assert.True(t, res.Passed)
	assertFinding(t, res.Warnings, "content unavailable")
}

func TestCodeChecker_TaskLink(t *testing.T) {
	rules := map[string]interface{}{"traceability": map[string]interface{}{"require_task_link": true}}

	f := newFixture(t)
	p := f.repo.Write("backend/apps/users/views.py", "# REQ-2025-003-user-login\n")
	c := f.build(t, NewCodeChecker, rules)

	res := c.Check(context.Background(), p)
	assert.True(t, res.Passed)
	assertFinding(t, res.Warnings, "tasks document", "regenerate tasks for REQ-2025-003-user-login")

	f.repo.Write(".taskmaster/tasks/tasks.json", `{"REQ-2025-003-user-login": {"metadata": {}, "tasks": []}}`)
	res = c.Check(context.Background(), p)
	assertFinding(t, res.Warnings, "has no tasks")

	f.env.Strict = true
	res = f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
	assert.False(t, res.Passed)

	f.repo.Write(".taskmaster/tasks/tasks.json", `{"REQ-2025-003-user-login": {"metadata": {}, "tasks": [{"id": 0, "title": "self-check", "status": "pending"}]}}`)
	res = f.build(t, NewCodeChecker, rules).Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))
	assert.Empty(t, res.Warnings)

	none := f.repo.Write("backend/apps/users/models.py", "x = 1\n")
	assertFinding(t, c.Check(context.Background(), none).Errors, "cannot determine REQ-ID")
}

const checkoutDiff = `diff --git a/backend/apps/orders/views.py b/backend/apps/orders/views.py
index 1111111..2222222 100644
--- a/backend/apps/orders/views.py
+++ b/backend/apps/orders/views.py
@@ -10,3 +10,0 @@ class OrderView:
-def checkout(self, request):
-    order = self.get_object()
-    return order.pay()
`

func TestCodeChecker_Deletion(t *testing.T) {
	rules := map[string]interface{}{"modification_validation": map[string]interface{}{
		"require_prd_approval_for_deletion": true,
	}}
	const rel = "backend/apps/orders/views.py"

	setup := func(t *testing.T, deletable bool) *fixture {
		f := newFixture(t)
		flag := "false"
		if deletable {
			flag = "true"
		}
		f.repo.WritePRD("REQ-2025-010-checkout", "req_id: REQ-2025-010-checkout\nstatus: approved\ndeletable: "+flag+"\n", "")
		f.repo.Write(rel, "# REQ-2025-010-checkout\nclass OrderView:\n    pass\n")
		f.vcs.Diffs[rel] = checkoutDiff
		f.vcs.CommitMessage = "refactor: tidy up"
		return f
	}

	t.Run("unauthorized", func(t *testing.T) {
		f := setup(t, false)
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.False(t, res.Passed)
		require.Len(t, res.Errors, 1)
		assertFinding(t, res.Errors, "REQ-2025-010-checkout", "deletable", "[BUGFIX]/[REFACTOR]")
	})

	t.Run("deletable PRD", func(t *testing.T) {
		f := setup(t, true)
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.True(t, res.Passed, messages(res.Errors))
	})

	t.Run("bypass tag", func(t *testing.T) {
		f := setup(t, false)
		f.vcs.CommitMessage = "[REFACTOR] split checkout"
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.True(t, res.Passed, messages(res.Errors))
	})

	t.Run("PRD not found", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Write(rel, "# REQ-2025-011-refunds\nclass OrderView:\n    pass\n")
		f.vcs.Diffs[rel] = checkoutDiff
		f.vcs.CommitMessage = "refactor: tidy up"
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.False(t, res.Passed)
		assertFinding(t, res.Errors, "without PRD authorization", "PRD for REQ-2025-011-refunds not found")
	})

	t.Run("no REQ-ID", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Write(rel, "class OrderView:\n    pass\n")
		f.vcs.Diffs[rel] = checkoutDiff
		f.vcs.CommitMessage = "refactor: tidy up"
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.False(t, res.Passed)
		assertFinding(t, res.Errors, "without PRD authorization", "no REQ-ID found")
		assertFinding(t, res.Errors, "the requirement")
	})

	t.Run("no feature lines", func(t *testing.T) {
		f := setup(t, false)
		f.vcs.Diffs[rel] = "--- a/" + rel + "\n+++ b/" + rel + "\n@@ -3,2 +3,0 @@\n-    # old comment\n-    total = 0\n"
		res := f.build(t, NewCodeChecker, rules).Check(context.Background(), f.repo.Path(rel))
		assert.True(t, res.Passed, messages(res.Errors))
	})
}

func TestCodeChecker_APIContract(t *testing.T) {
	rules := map[string]interface{}{"modification_validation": map[string]interface{}{
		"require_api_contract_consistency": true,
	}}
	const rel = "backend/apps/orders/serializers.py"

	f := newFixture(t)
	f.repo.WritePRD("REQ-2025-010-checkout", "req_id: REQ-2025-010-checkout\napi_contract: docs/api/orders.yaml\n", "")
	p := f.repo.Write(rel, "# REQ-2025-010-checkout\n")
	c := f.build(t, NewCodeChecker, rules)

	assertFinding(t, c.Check(context.Background(), p).Errors, "does not exist")

	f.repo.Write("docs/api/orders.yaml", "info:\n  title: Orders\npaths: {}\n")
	res := c.Check(context.Background(), p)
	assertFinding(t, res.Errors, "missing the 'openapi' version field")
	assertFinding(t, res.Warnings, "declares no paths")

	f.repo.Write("docs/api/orders.yaml", "openapi: 3.0.3\npaths:\n  /orders:\n    get: {}\n")
	res = c.Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))
	assert.Empty(t, res.Warnings)

	f.repo.Write("docs/api/orders.yaml", "openapi: 3.0\npaths:\n  /orders:\n    get: {}\n")
	res = c.Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))

	other := f.repo.Write("backend/apps/orders/models.py", "x = 1\n")
	assert.Empty(t, c.Check(context.Background(), other).Warnings)
}

func TestCodeChecker_Quality(t *testing.T) {
	rules := map[string]interface{}{"quality": map[string]interface{}{
		"require_docstrings": true, "require_type_hints": true, "require_jsdoc": true,
	}}

	f := newFixture(t)
	c := f.build(t, NewCodeChecker, rules)

	py := f.repo.Write("backend/apps/users/services.py", "def handler(x):\n    return x\n")
	res := c.Check(context.Background(), py)
	assert.True(t, res.Passed)
	require.Len(t, res.Warnings, 1)
	assertFinding(t, res.Warnings, "quality", "docstrings", "type annotations")

	documented := f.repo.Write("backend/apps/users/helpers.py", "def handler(x: int) -> int:\n    \"\"\"Return x.\"\"\"\n    return x\n")
	assert.Empty(t, c.Check(context.Background(), documented).Warnings)

	js := f.repo.Write("frontend/src/util.js", "function add(a, b) {\n  return a + b\n}\n")
	res = c.Check(context.Background(), js)
	assertFinding(t, res.Warnings, "JSDoc")
	assert.False(t, hasFinding(res.Warnings, "type annotations"))
}
