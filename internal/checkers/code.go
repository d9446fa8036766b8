package checkers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"compliance/internal/artifacts"
	"compliance/internal/backends/git"
	"compliance/internal/rules"
	"compliance/internal/syntax"
	"compliance/internal/trace"
)

// featureDefinition recognizes removed function or class definitions.
var featureDefinition = regexp.MustCompile(`^\s*(?:(?:async\s+)?def\s+\w+|class\s+\w+|async\s+function\b|export\s+(?:default\s+)?(?:async\s+)?function\b|export\s+(?:default\s+)?(?:abstract\s+)?class\b)`)

// CodeChecker enforces traceability and change policies on source files.
type CodeChecker struct {
	rules rules.CodeRules
	env   Env
}

// NewCodeChecker decodes the code rule-set.
func NewCodeChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodeCode(set)
	if err != nil {
		return nil, err
	}
	return &CodeChecker{rules: r, env: env}, nil
}

// Name implements Checker.
func (k *CodeChecker) Name() string { return "code" }

// codeFile is the per-call state shared by the phases.
type codeFile struct {
	rel   string
	text  string
	found bool
	id    trace.ReqID
	hasID bool
}

// Check implements Checker.
func (k *CodeChecker) Check(ctx context.Context, p string) Result {
	f := &codeFile{rel: k.env.Resolver.Canonical(p)}
	c := newCollector(f.rel)

	blob := k.env.Content.Read(ctx, p)
	f.found = blob.Found()
	if f.found {
		f.text = blob.Text()
		f.id, f.hasID = trace.FindReqID(f.text, k.rules.Traceability.ScanLines)
	} else {
		c.warnf("file content unavailable in working tree and index; content checks skipped")
	}

	if k.rules.Traceability.RequirePRDLink {
		k.checkPRDLink(ctx, c, f)
	}
	if k.rules.Traceability.RequireTestLink {
		k.checkTestLink(ctx, c, f)
	}
	if k.rules.Traceability.RequireTaskLink {
		k.checkTaskLink(ctx, c, f)
	}
	if k.rules.ModificationValidation.RequirePRDApprovalForDeletion {
		k.checkDeletion(ctx, c, f)
	}
	if k.rules.ModificationValidation.RequireAPIContractConsistency && matchesAny(k.rules.Paths.API, f.rel) {
		k.checkAPIContract(ctx, c, f)
	}
	if f.found {
		k.checkQuality(ctx, c, f)
	}
	return c.result()
}

// reqID returns the id from content, falling back to the path.
func (f *codeFile) reqID() (trace.ReqID, bool) {
	if f.hasID {
		return f.id, true
	}
	return trace.FindReqIDInPath(f.rel)
}

// P2
func (k *CodeChecker) checkPRDLink(ctx context.Context, c *collector, f *codeFile) {
	if !f.found {
		return
	}
	if !f.hasID {
		c.add(SeverityError,
			fmt.Sprintf("file must contain REQ-ID association in the first %d lines", k.rules.Traceability.ScanLines),
			"add a comment such as '# REQ-2025-001-feature-name' near the top of the file")
		return
	}
	prd, err := k.env.Resolver.LoadPRD(ctx, f.id)
	if err != nil {
		k.prdUnresolved(c, f.id, err)
		return
	}
	if prd.HasImplementationFiles() && !prd.ListsImplementationFile(f.rel) {
		c.add(SeverityWarning,
			fmt.Sprintf("file is not listed in implementation_files of %s", f.id),
			"add '"+f.rel+"' to implementation_files in "+k.env.Resolver.Canonical(prd.Path))
	}
}

func (k *CodeChecker) prdUnresolved(c *collector, id trace.ReqID, err error) {
	prdPath := k.env.Resolver.Canonical(k.env.Resolver.PRDPath(id))
	if errors.Is(err, trace.ErrNotFound) {
		c.escalated(k.env.Strict, fmt.Sprintf("PRD for %s not found at %s", id, prdPath), "create the PRD or fix the REQ-ID")
		return
	}
	c.escalated(k.env.Strict, fmt.Sprintf("PRD for %s could not be read: %v", id, err), "")
}

// P3
func (k *CodeChecker) checkTestLink(ctx context.Context, c *collector, f *codeFile) {
	base := path.Base(f.rel)
	switch {
	case k.isBackendSource(f.rel):
		candidates := k.testCandidates(f.rel)
		for _, cand := range candidates {
			if k.exists(ctx, cand) {
				return
			}
		}
		c.add(SeverityError, "no test file found for "+f.rel,
			"create one of: "+strings.Join(candidates, ", "))
	case matchesAny(k.rules.Paths.Frontend, f.rel) && !isScriptTest(base):
		if !k.hasE2ETest(f.rel) {
			c.warnf("no E2E test found for %s under %s", f.rel, k.rules.Paths.E2EDir)
		}
	}
}

func (k *CodeChecker) isBackendSource(rel string) bool {
	if !matchesAny(k.rules.Paths.Backend, rel) {
		return false
	}
	base := path.Base(rel)
	if base == "__init__.py" || strings.HasPrefix(base, "test_") {
		return false
	}
	tests := strings.TrimSuffix(k.rules.Paths.TestsRoot, "/")
	return !(tests != "" && strings.HasPrefix(rel, tests+"/")) && !strings.Contains(rel, "/migrations/")
}

// testCandidates lists the accepted test files for a backend module.
func (k *CodeChecker) testCandidates(rel string) []string {
	base := path.Base(rel)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	app := appName(rel)

	var out []string
	for _, kind := range []string{"unit", "integration"} {
		dir := path.Join(k.rules.Paths.TestsRoot, kind)
		out = append(out, path.Join(dir, "test_"+stem+ext))
		if app != "" {
			out = append(out, path.Join(dir, "test_"+app+"_"+stem+ext))
		}
	}
	return out
}

// appName returns the segment after "apps", if any.
func appName(rel string) string {
	segments := strings.Split(rel, "/")
	for i := 0; i+2 < len(segments); i++ {
		if segments[i] == "apps" {
			return segments[i+1]
		}
	}
	return ""
}

func (k *CodeChecker) exists(ctx context.Context, rel string) bool {
	abs := k.env.Resolver.Abs(rel)
	if _, err := os.Stat(abs); err == nil {
		return true
	}
	return k.env.Content.Read(ctx, abs).Found()
}

func (k *CodeChecker) hasE2ETest(rel string) bool {
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	lower, dashed := strings.ToLower(stem), kebab(stem)
	pattern := path.Join(k.rules.Paths.E2EDir, "**", "*.spec.{ts,tsx,js,jsx}")
	matches, err := doublestar.Glob(os.DirFS(k.env.Root), pattern)
	if err != nil {
		return false
	}
	for _, m := range matches {
		name := strings.ToLower(path.Base(m))
		if strings.Contains(name, lower) || strings.Contains(name, dashed) {
			return true
		}
	}
	return false
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func kebab(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "$1-$2"))
}

func isScriptTest(base string) bool {
	return strings.Contains(base, ".spec.") || strings.Contains(base, ".test.")
}

// P4
func (k *CodeChecker) checkTaskLink(ctx context.Context, c *collector, f *codeFile) {
	id, ok := f.reqID()
	if !ok {
		c.add(SeverityError, "cannot determine REQ-ID for task linkage",
			"add a REQ-ID comment to the file or place it under a REQ-ID directory")
		return
	}
	group, found, err := k.env.Resolver.TaskGroup(ctx, id)
	hint := "regenerate tasks for " + id.String() + " from its PRD"
	switch {
	case err != nil:
		c.escalated(k.env.Strict, fmt.Sprintf("tasks document %s unavailable: %v", trace.TasksFile, err), hint)
	case !found:
		c.escalated(k.env.Strict, fmt.Sprintf("no task group for %s in %s", id, trace.TasksFile), hint)
	case len(group.Tasks) == 0:
		c.escalated(k.env.Strict, fmt.Sprintf("task group for %s has no tasks", id), hint)
	}
}

// P5
func (k *CodeChecker) checkDeletion(ctx context.Context, c *collector, f *codeFile) {
	if k.env.VCS == nil {
		return
	}
	diff, err := k.env.VCS.StagedDiff(ctx, k.env.Root, f.rel)
	if err != nil {
		k.env.log().Debug("Staged diff unavailable", "path", f.rel, "error", err.Error())
		return
	}
	deleted := git.DeletedLines(diff)
	if !hasFeatureDeletion(deleted) {
		return
	}

	id, ok := f.reqID()
	if !ok {
		id, ok = trace.FindReqID(strings.Join(deleted, "\n"), 0)
	}
	var prd *artifacts.PRD
	if ok {
		prd, _ = k.env.Resolver.LoadPRD(ctx, id)
	}
	if prd.IsDeletable() {
		return
	}

	msg, err := k.env.VCS.LastCommitMessage(ctx, k.env.Root)
	if err == nil && containsAnyTag(msg, k.rules.ModificationValidation.BypassTags) {
		return
	}

	tags := strings.Join(k.rules.ModificationValidation.BypassTags, "/")
	var reason string
	switch {
	case !ok:
		reason = "no REQ-ID found"
	case prd == nil:
		reason = "PRD for " + id.String() + " not found"
	default:
		reason = id.String() + " has deletable: false"
	}
	c.add(SeverityError,
		fmt.Sprintf("feature code deleted without PRD authorization (%s)", reason),
		fmt.Sprintf("set 'deletable: true' in the PRD for %s, or tag the commit message with %s", reqLabel(id, ok), tags))
}

func reqLabel(id trace.ReqID, ok bool) string {
	if !ok {
		return "the requirement"
	}
	return id.String()
}

func hasFeatureDeletion(deleted []string) bool {
	for _, line := range deleted {
		if featureDefinition.MatchString(line) {
			return true
		}
	}
	return false
}

func containsAnyTag(msg string, tags []string) bool {
	for _, t := range tags {
		if t != "" && strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

// P6
func (k *CodeChecker) checkAPIContract(ctx context.Context, c *collector, f *codeFile) {
	id, ok := f.reqID()
	if !ok {
		c.warnf("API file has no REQ-ID; contract consistency not checked")
		return
	}
	prd, err := k.env.Resolver.LoadPRD(ctx, id)
	if err != nil {
		c.warnf("PRD for %s not found; API contract not checked", id)
		return
	}
	if prd.APIContract == "" {
		c.add(SeverityWarning, fmt.Sprintf("PRD for %s does not declare api_contract", id),
			"add 'api_contract: <path to OpenAPI document>' to the PRD frontmatter")
		return
	}
	data, err := k.env.Resolver.ReadFile(ctx, prd.APIContract)
	if err != nil {
		c.errorf("API contract '%s' referenced by %s does not exist", prd.APIContract, id)
		return
	}
	contract, err := artifacts.ParseContract(data)
	if err != nil {
		c.errorf("API contract '%s' is not a structured mapping: %v", prd.APIContract, err)
		return
	}
	if contract.OpenAPI == "" {
		c.errorf("API contract '%s' is missing the 'openapi' version field", prd.APIContract)
	}
	if len(contract.Paths) == 0 {
		c.warnf("API contract '%s' declares no paths", prd.APIContract)
	}
}

// P7
func (k *CodeChecker) checkQuality(ctx context.Context, c *collector, f *codeFile) {
	q := k.rules.Quality
	if !q.RequireDocstrings && !q.RequireTypeHints && !q.RequireJSDoc {
		return
	}
	lang, ok := syntax.LanguageFromPath(f.rel)
	if !ok {
		return
	}
	var facts *syntax.Facts
	if k.env.Syntax != nil {
		var err error
		if facts, err = k.env.Syntax.Analyze(ctx, []byte(f.text), lang); err != nil {
			k.env.log().Debug("Syntax analysis failed", "path", f.rel, "error", err.Error())
		}
	}
	if facts == nil {
		facts = syntax.Scan([]byte(f.text), lang)
	}
	if facts.Count("") == 0 {
		return
	}

	var missing []string
	if q.RequireDocstrings && lang == syntax.LangPython && !facts.HasDocumentation() {
		missing = append(missing, "docstrings")
	}
	if q.RequireTypeHints && lang != syntax.LangJavaScript && facts.Count("function") > 0 && !facts.HasAnnotations() {
		missing = append(missing, "type annotations")
	}
	if q.RequireJSDoc && lang.IsScript() && !facts.DocComment {
		missing = append(missing, "JSDoc comments")
	}
	if len(missing) > 0 {
		c.warnf("quality: no %s found", strings.Join(missing, " or "))
	}
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
