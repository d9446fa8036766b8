package checkers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"compliance/internal/artifacts"
	"compliance/internal/rules"
	"compliance/internal/trace"
)

// PRDChecker validates product requirements documents.
type PRDChecker struct {
	rules rules.PRDRules
	env   Env
}

// NewPRDChecker decodes the prd rule-set.
func NewPRDChecker(set rules.RuleSet, env Env) (Checker, error) {
	r, err := rules.DecodePRD(set)
	if err != nil {
		return nil, err
	}
	return &PRDChecker{rules: r, env: env}, nil
}

// Name implements Checker.
func (p *PRDChecker) Name() string { return "prd" }

var listItem = regexp.MustCompile(`^\s*(?:-|\d+\.)\s*`)

// Check implements Checker.
func (p *PRDChecker) Check(ctx context.Context, path string) Result {
	c := newCollector(p.env.Resolver.Canonical(path))

	blob := p.env.Content.Read(ctx, path)
	if !blob.Found() {
		c.errorf("PRD file not found in working tree or index")
		return c.result()
	}

	fm, body, err := artifacts.ParseFrontmatter(blob.Text())
	if errors.Is(err, artifacts.ErrNoFrontmatter) {
		c.add(SeverityError, "PRD must begin with a YAML frontmatter block delimited by '---'",
			"start the file with '---', the metadata fields, then a closing '---'")
		return c.result()
	}
	if err != nil {
		c.errorf("malformed PRD frontmatter: %v", err)
		return c.result()
	}

	p.checkRequired(c, fm)
	p.checkMetadata(c, fm)
	p.checkStatus(c, fm)
	p.checkReqID(c, fm, path)
	p.checkSections(c, body)
	p.checkContent(c, fm, body)
	return c.result()
}

func (p *PRDChecker) checkRequired(c *collector, fm *artifacts.Frontmatter) {
	for _, field := range p.rules.RequiredMetadataFields {
		v, ok := fm.Fields[field]
		if !ok || v == nil || v == "" {
			c.errorf("missing required metadata field '%s'", field)
		}
	}
}

func (p *PRDChecker) checkMetadata(c *collector, fm *artifacts.Frontmatter) {
	names := make([]string, 0, len(p.rules.MetadataValidation))
	for name := range p.rules.MetadataValidation {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := p.rules.MetadataValidation[name]
		value, ok := fm.Fields[name]
		if !ok || value == nil {
			continue
		}
		switch rule.Type {
		case "list":
			items, isList := value.([]interface{})
			if !isList {
				c.errorf("metadata field '%s' must be a list", name)
				continue
			}
			if rule.MinItems > 0 && len(items) < rule.MinItems {
				c.errorf("metadata field '%s' must have at least %d items (has %d)", name, rule.MinItems, len(items))
			}
		case "boolean":
			if _, isBool := value.(bool); !isBool {
				c.errorf("metadata field '%s' must be a boolean", name)
			}
		}
		text := fm.String(name)
		if rule.Regexp != nil && !rule.Regexp.MatchString(text) {
			c.errorf("metadata field '%s' value '%s' does not match pattern '%s'", name, text, rule.Pattern)
		}
		if len(rule.Enum) > 0 && !contains(rule.Enum, text) {
			c.errorf("metadata field '%s' must be one of [%s], got '%s'", name, strings.Join(rule.Enum, ", "), text)
		}
	}
}

func (p *PRDChecker) checkStatus(c *collector, fm *artifacts.Frontmatter) {
	status := strings.ToLower(strings.TrimSpace(fm.String("status")))
	switch {
	case status == "":
		return
	case status == artifacts.StatusDraft:
		c.add(SeverityError, "PRD status is 'draft', must be approved to start development",
			"move the PRD through review and set 'status: approved'")
	case !contains(p.rules.ValidStatuses, status):
		c.warnf("unknown PRD status '%s' (expected one of: %s)", status, strings.Join(p.rules.ValidStatuses, ", "))
	}
}

// checkReqID compares req_id with the requirement directory the PRD lives in.
func (p *PRDChecker) checkReqID(c *collector, fm *artifacts.Frontmatter, path string) {
	declared := fm.String("req_id")
	if declared == "" {
		return
	}
	fromPath, ok := trace.FindReqIDInPath(p.env.Resolver.Canonical(path))
	if !ok {
		return
	}
	id, err := trace.ParseReqID(declared)
	if err != nil {
		c.warnf("req_id '%s' is not a valid requirement id", declared)
		return
	}
	if !id.Equal(fromPath) {
		c.warnf("req_id '%s' does not match the requirement directory '%s'", id, fromPath)
	}
}

func (p *PRDChecker) checkSections(c *collector, body string) {
	for _, title := range p.rules.FileStructure.RequireSections {
		if !hasSection(body, title) {
			c.errorf("missing required section '%s'", title)
		}
	}
}

func (p *PRDChecker) checkContent(c *collector, fm *artifacts.Frontmatter, body string) {
	cv := p.rules.ContentValidation

	if n := utf8.RuneCountInString(strings.TrimSpace(body)); cv.MinLength > 0 && n < cv.MinLength {
		c.warnf("PRD body is too short (%d characters, minimum %d)", n, cv.MinLength)
	}

	for _, sec := range cv.RecommendedSections {
		if !applies(sec, fm) || hasSection(body, sec.Name) {
			continue
		}
		msg := fmt.Sprintf("missing recommended section '%s'", sec.Name)
		if sec.Description != "" {
			msg += ": " + sec.Description
		}
		if sec.Level == rules.LevelError {
			c.add(SeverityError, msg, "")
		} else {
			c.add(SeverityWarning, msg, "")
		}
	}

	names := make([]string, 0, len(cv.SectionDetailRequirements))
	for name := range cv.SectionDetailRequirements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		detail := cv.SectionDetailRequirements[name]
		text, ok := sectionText(body, name)
		if !ok {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range detail.RequireKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				continue
			}
			if detail.Format != "" {
				c.warnf("section '%s' should mention '%s' (expected format: %s)", name, kw, detail.Format)
			} else {
				c.warnf("section '%s' should mention '%s'", name, kw)
			}
		}
		if detail.MinItems > 0 {
			if n := countItems(text); n < detail.MinItems {
				c.warnf("section '%s' has %d items, expected at least %d", name, n, detail.MinItems)
			}
		}
	}
}

// applies evaluates applicable_when; an empty condition list always applies.
func applies(sec rules.RecommendedSection, fm *artifacts.Frontmatter) bool {
	if len(sec.ApplicableWhen) == 0 {
		return true
	}
	for _, cond := range sec.ApplicableWhen {
		if cond.Regexp == nil {
			continue
		}
		values := fm.Strings(cond.InField)
		if len(values) == 0 {
			values = []string{fm.String(cond.InField)}
		}
		for _, v := range values {
			if cond.Regexp.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func sectionPattern(title string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(#+)\s+` + regexp.QuoteMeta(title))
}

func hasSection(body, title string) bool {
	return sectionPattern(title).MatchString(body)
}

var heading = regexp.MustCompile(`(?m)^(#+)\s+`)

// sectionText returns the text under the heading title, up to the next
// heading of the same or a higher level.
func sectionText(body, title string) (string, bool) {
	loc := sectionPattern(title).FindStringSubmatchIndex(body)
	if loc == nil {
		return "", false
	}
	level := loc[3] - loc[2]
	rest := body[loc[1]:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return "", true
	}
	for _, h := range heading.FindAllStringSubmatchIndex(rest, -1) {
		if h[3]-h[2] <= level {
			return rest[:h[0]], true
		}
	}
	return rest, true
}

func countItems(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if listItem.MatchString(line) && strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
