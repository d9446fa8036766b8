package checkers

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"compliance/internal/artifacts"
	"compliance/internal/rules"
	"compliance/internal/trace"
)

var (
	caseIDPattern    = regexp.MustCompile(`^TC-[A-Z]+(_[A-Z]+)?-\d{3}$`)
	numberedStepMark = regexp.MustCompile(`\d+\.`)
)

// TestCaseChecker validates test-case catalogs.
type TestCaseChecker struct {
	rules     rules.TestCaseRules
	delimiter rune
	env       Env
}

// NewTestCaseChecker decodes the testcase rule-set.
func NewTestCaseChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodeTestCase(set)
	if err != nil {
		return nil, err
	}
	d, _ := utf8.DecodeRuneInString(r.Delimiter)
	return &TestCaseChecker{rules: r, delimiter: d, env: env}, nil
}

// Name implements Checker.
func (t *TestCaseChecker) Name() string { return "testcase" }

// Check implements Checker.
func (t *TestCaseChecker) Check(ctx context.Context, path string) Result {
	c := newCollector(t.env.Resolver.Canonical(path))
	base := filepath.Base(path)

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if !containsFold(t.rules.Extensions, ext) {
		c.errorf("test-case catalog must be a delimited file (.%s), got '%s'", strings.Join(t.rules.Extensions, ", ."), base)
		return c.result()
	}

	expected, _, named := trace.ParseCatalogName(base)
	if !named {
		c.add(SeverityError,
			fmt.Sprintf("catalog filename '%s' must match <REQ-ID>-test-cases.%s", base, ext),
			"rename to e.g. REQ-2025-001-feature-test-cases."+ext)
	}

	blob := t.env.Content.Read(ctx, path)
	if !blob.Found() {
		c.errorf("catalog not found in working tree or index")
		return c.result()
	}
	cat, err := artifacts.ReadCatalog(blob.Data, t.delimiter)
	if err != nil {
		c.errorf("malformed test-case catalog: %v", err)
		return c.result()
	}
	if missing := cat.MissingColumns(t.rules.Columns); len(missing) > 0 {
		c.errorf("catalog header is missing required columns: %s", strings.Join(missing, ", "))
		return c.result()
	}

	firstSeen := make(map[string]int)
	p0 := 0
	for _, row := range cat.Rows {
		t.checkRow(c, row, firstSeen, expected, named)
		if strings.EqualFold(row.Get("priority"), "P0") {
			p0++
		}
	}

	if want := t.rules.MinTestcases.Total; want > 0 && len(cat.Rows) < want {
		c.errorf("catalog has %d test cases, minimum is %d", len(cat.Rows), want)
	}
	if want := t.rules.MinTestcases.P0; want > 0 && p0 < want {
		c.errorf("catalog has %d P0 test cases, minimum is %d", p0, want)
	}
	return c.result()
}

func (t *TestCaseChecker) checkRow(c *collector, row artifacts.CatalogRow, firstSeen map[string]int, expected trace.ReqID, named bool) {
	n := row.Number

	for _, col := range t.rules.Columns {
		if row.Get(col) == "" {
			c.warnf("row %d: empty field '%s'", n, col)
		}
	}

	if id := row.Get("caseId"); id != "" {
		switch {
		case !caseIDPattern.MatchString(id):
			c.warnf("row %d: caseId '%s' does not match TC-<MODULE>_<FEATURE>-NNN", n, id)
		case !strings.Contains(id, "_"):
			c.warnf("row %d: caseId '%s' uses the old TC-<MODULE>-NNN form; migrate to TC-<MODULE>_<FEATURE>-NNN", n, id)
		}
		if first, dup := firstSeen[id]; dup {
			c.errorf("duplicate caseId '%s' at row %d (first seen at row %d)", id, n, first)
		} else {
			firstSeen[id] = n
		}
	}

	if kind := row.Get("kind"); kind != "" && !containsFold(t.rules.ValidKinds, kind) {
		c.errorf("row %d: invalid kind '%s' (expected one of: %s)", n, kind, strings.Join(t.rules.ValidKinds, ", "))
	}
	if prio := row.Get("priority"); prio != "" && !containsFold(t.rules.ValidPriorities, prio) {
		c.errorf("row %d: invalid priority '%s' (expected one of: %s)", n, prio, strings.Join(t.rules.ValidPriorities, ", "))
	}

	if linked := row.Get("linkedRequirement"); linked != "" && named && !strings.EqualFold(linked, expected.String()) {
		c.errorf("row %d: linkedRequirement '%s' does not match catalog requirement '%s'", n, linked, expected)
	}

	if steps := row.Get("steps"); steps != "" && !numberedStepMark.MatchString(steps) {
		c.warnf("row %d: steps should be numbered (1. 2. ...)", n)
	}
}
