package checkers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

var prdRules = map[string]interface{}{
	"required_metadata_fields": []interface{}{"req_id", "title", "status"},
	"metadata_validation": map[string]interface{}{
		"req_id":    map[string]interface{}{"pattern": `^REQ-\d{4}-\d{3}`},
		"status":    map[string]interface{}{"enum": []interface{}{"draft", "review", "approved", "archived"}},
		"deletable": map[string]interface{}{"type": "boolean"},
	},
	"file_structure": map[string]interface{}{
		"require_sections": []interface{}{"Overview", "Acceptance Criteria"},
	},
}

const prdBody = "# Overview\n\nUsers log in with email and password.\n\n## Acceptance Criteria\n\n- valid credentials succeed\n- invalid credentials fail\n"

func TestPRDChecker_Approved(t *testing.T) {
	f := newFixture(t)
	p := f.repo.WritePRD("REQ-2025-003-user-login",
		"req_id: REQ-2025-003-user-login\ntitle: Login\nstatus: approved\ndeletable: false\n", prdBody)

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))
	assert.Empty(t, res.Warnings)
}

func TestPRDChecker_Draft(t *testing.T) {
	f := newFixture(t)
	p := f.repo.WritePRD("REQ-2025-003-user-login",
		"req_id: REQ-2025-003-user-login\ntitle: Login\nstatus: draft\n", prdBody)

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), p)
	assert.False(t, res.Passed)
	assertFinding(t, res.Errors, "PRD status is 'draft'")
}

func TestPRDChecker_MissingFieldsAndSections(t *testing.T) {
	f := newFixture(t)
	p := f.repo.WritePRD("REQ-2025-003-user-login",
		"req_id: REQ-2025-003-user-login\nstatus: approved\ndeletable: maybe\n", "# Overview\n\ntext\n")

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), p)
	assert.False(t, res.Passed)
	assertFinding(t, res.Errors, "missing required metadata field 'title'")
	assertFinding(t, res.Errors, "missing required section 'Acceptance Criteria'")
	assertFinding(t, res.Errors, "'deletable' must be a boolean")
}

func TestPRDChecker_NoFrontmatter(t *testing.T) {
	f := newFixture(t)
	p := f.repo.Write("docs/00_product/requirements/REQ-2025-003-x/REQ-2025-003-x.md", "# Overview\n")

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), p)
	assert.False(t, res.Passed)
	assertFinding(t, res.Errors, "frontmatter")
}

func TestPRDChecker_ReqIDMismatch(t *testing.T) {
	f := newFixture(t)
	p := f.repo.WritePRD("REQ-2025-003-user-login",
		"req_id: REQ-2025-004-other\ntitle: Login\nstatus: approved\n", prdBody)

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), p)
	assert.True(t, res.Passed)
	assertFinding(t, res.Warnings, "does not match the requirement directory")
}

func TestPRDChecker_ContentValidation(t *testing.T) {
	f := newFixture(t)
	p := f.repo.WritePRD("REQ-2025-003-user-login",
		"req_id: REQ-2025-003-user-login\ntitle: Login\nstatus: approved\ntags: [security]\n", prdBody)

	raw := map[string]interface{}{
		"content_validation": map[string]interface{}{
			"min_length": 5000,
			"recommended_sections": []interface{}{
				map[string]interface{}{
					"name":        "Threat Model",
					"description": "security features need one",
					"applicable_when": []interface{}{
						map[string]interface{}{"pattern": "security", "in_field": "tags"},
					},
				},
				map[string]interface{}{
					"name":  "Rollback",
					"level": "error",
					"applicable_when": []interface{}{
						map[string]interface{}{"pattern": "payments", "in_field": "tags"},
					},
				},
			},
			"section_detail_requirements": map[string]interface{}{
				"Acceptance Criteria": map[string]interface{}{"min_items": 3, "require_keywords": []interface{}{"lockout"}},
			},
		},
	}
	res := f.build(t, NewPRDChecker, raw).Check(context.Background(), p)
	assert.True(t, res.Passed, messages(res.Errors))
	assertFinding(t, res.Warnings, "too short")
	assertFinding(t, res.Warnings, "missing recommended section 'Threat Model'")
	assertFinding(t, res.Warnings, "has 2 items, expected at least 3")
	assertFinding(t, res.Warnings, "should mention 'lockout'")
	assert.False(t, hasFinding(res.Errors, "Rollback"))
}

func TestPRDChecker_StagedOnly(t *testing.T) {
	f := newFixture(t)
	rel := "docs/00_product/requirements/REQ-2025-003-x/REQ-2025-003-x.md"
	f.vcs.Stage(f.repo.Root, rel, "---\nreq_id: REQ-2025-003-x\ntitle: X\nstatus: draft\n---\n"+prdBody)

	res := f.build(t, NewPRDChecker, prdRules).Check(context.Background(), f.repo.Path(rel))
	assertFinding(t, res.Errors, "PRD status is 'draft'")
	assert.False(t, hasFinding(res.Errors, "not found"))
}
