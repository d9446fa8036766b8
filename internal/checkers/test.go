package checkers

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"

	"compliance/internal/rules"
	"compliance/internal/syntax"
)

var (
	pyTestFunc     = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+test\w*\s*\(`)
	scriptTestFunc = regexp.MustCompile(`(?m)\b(?:test|it)(?:\.(?:only|skip|describe))?\s*\(`)
	pyAssertion    = regexp.MustCompile(`\bassert\b|self\.assert\w+\(|pytest\.raises\(`)
	scriptAssert   = regexp.MustCompile(`\bexpect\s*\(|\bassert\b`)
)

// TestChecker validates test file location, naming and content.
type TestChecker struct {
	rules rules.TestRules
	kinds []string
	env   Env
}

// NewTestChecker decodes the test rule-set.
func NewTestChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodeTest(set)
	if err != nil {
		return nil, err
	}
	kinds := make([]string, 0, len(r.Locations))
	for k := range r.Locations {
		kinds = append(kinds, k)
	}
	// Longest location first so nested directories win.
	sort.Slice(kinds, func(i, j int) bool {
		li, lj := len(r.Locations[kinds[i]]), len(r.Locations[kinds[j]])
		if li != lj {
			return li > lj
		}
		return kinds[i] < kinds[j]
	})
	return &TestChecker{rules: r, kinds: kinds, env: env}, nil
}

// Name implements Checker.
func (t *TestChecker) Name() string { return "test" }

// Check implements Checker.
func (t *TestChecker) Check(ctx context.Context, p string) Result {
	rel := t.env.Resolver.Canonical(p)
	c := newCollector(rel)
	dir, base := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")

	kind := t.kindByLocation(dir)
	if kind == "" {
		if guessed := t.kindByKeyword(dir); guessed != "" {
			c.add(SeverityError, "test file of kind '"+guessed+"' is in '"+dir+"'",
				"move it under '"+t.rules.Locations[guessed]+"'")
			kind = guessed
		} else {
			c.warnf("cannot determine test kind for '%s'", rel)
		}
	}

	if kind != "" {
		if re := t.rules.NamingRegexps[kind]; re != nil && !re.MatchString(base) {
			c.errorf("test file name '%s' does not match the %s naming pattern '%s'", base, kind, re)
		}
	}

	if len(t.rules.RequiredContent) > 0 {
		t.checkContent(ctx, c, p, rel)
	}
	return c.result()
}

func (t *TestChecker) kindByLocation(dir string) string {
	for _, k := range t.kinds {
		loc := strings.TrimSuffix(t.rules.Locations[k], "/")
		if dir == loc || strings.HasPrefix(dir, loc+"/") {
			return k
		}
	}
	return ""
}

// kindByKeyword recognizes a kind from directory names alone, e.g.
// "unit" or "e2e/.../smoke".
func (t *TestChecker) kindByKeyword(dir string) string {
	segments := map[string]bool{}
	for _, s := range strings.Split(dir, "/") {
		segments[s] = true
	}
	sorted := append([]string(nil), t.kinds...)
	sort.Strings(sorted)
	// e2e kinds first: "regression" alone is ambiguous with e2e-regression.
	for _, k := range sorted {
		if sub, ok := strings.CutPrefix(k, "e2e-"); ok && segments["e2e"] && segments[sub] {
			return k
		}
	}
	for _, k := range sorted {
		if !strings.HasPrefix(k, "e2e-") && segments[k] {
			return k
		}
	}
	return ""
}

func (t *TestChecker) checkContent(ctx context.Context, c *collector, p, rel string) {
	blob := t.env.Content.Read(ctx, p)
	if !blob.Found() {
		c.warnf("test file content unavailable; content checks skipped")
		return
	}
	lang, ok := syntax.LanguageFromPath(rel)
	if !ok {
		return
	}
	text := blob.Text()

	funcs, asserts := pyTestFunc, pyAssertion
	if lang.IsScript() {
		funcs, asserts = scriptTestFunc, scriptAssert
	}

	if t.rules.Requires("test_function_definitions") && !funcs.MatchString(text) {
		c.errorf("no test functions defined")
	}
	if t.rules.Requires("assertions") && !asserts.MatchString(text) {
		c.warnf("no assertions found")
	}
	if t.rules.Requires("test_docstrings") && !t.documented(ctx, blob.Data, lang) {
		c.warnf("tests have no docstrings or doc comments")
	}
}

func (t *TestChecker) documented(ctx context.Context, source []byte, lang syntax.Language) bool {
	var facts *syntax.Facts
	if t.env.Syntax != nil {
		facts, _ = t.env.Syntax.Analyze(ctx, source, lang)
	}
	if facts == nil {
		facts = syntax.Scan(source, lang)
	}
	return facts.HasDocumentation() || facts.DocComment
}
