package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("open .compliance/config.yaml: no such file")
	fix := FixAction{Type: EditFile, Path: ".compliance/config.yaml", Description: "Create it"}

	err := New(ConfigMissing, "configuration not found", cause, fix)

	if err.Code != ConfigMissing {
		t.Errorf("Code = %v, want %v", err.Code, ConfigMissing)
	}
	if err.Message != "configuration not found" {
		t.Errorf("Message = %q, want %q", err.Message, "configuration not found")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestComplianceError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ConfigInvalid,
			message:   "cannot parse config",
			cause:     errors.New("yaml: line 3"),
			wantParts: []string{"CONFIG_INVALID", "cannot parse config", "yaml: line 3"},
		},
		{
			name:      "without cause",
			code:      CheckerUnavailable,
			message:   "checker 'code' not available",
			wantParts: []string{"CHECKER_UNAVAILABLE", "checker 'code' not available"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestHint(t *testing.T) {
	explicit := New(Timeout, "tests timed out", nil, FixAction{Type: RunCommand, Command: "pytest --durations=10", Description: "Inspect slow tests"})
	if got := explicit.Hint(); got != "Inspect slow tests: pytest --durations=10" {
		t.Errorf("Hint() = %q", got)
	}

	fallback := New(VCSUnavailable, "not a repository", nil)
	if got := fallback.Hint(); !strings.Contains(got, "git status") {
		t.Errorf("Hint() = %q, want default action for code", got)
	}

	if got := New(InternalError, "boom", nil).Hint(); got != "" {
		t.Errorf("Hint() = %q, want empty", got)
	}
}

func TestCodeOf(t *testing.T) {
	inner := New(RuleSetInvalid, "bad rule-set", nil)
	wrapped := fmt.Errorf("load rules: %w", inner)

	code, ok := CodeOf(wrapped)
	if !ok || code != RuleSetInvalid {
		t.Errorf("CodeOf() = %v, %v; want %v, true", code, ok, RuleSetInvalid)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("CodeOf(plain) should report false")
	}
}
