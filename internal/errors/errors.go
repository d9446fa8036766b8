package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents stable error codes for engine-level failures
type ErrorCode string

const (
	// ConfigMissing indicates the engine configuration document was not found
	ConfigMissing ErrorCode = "CONFIG_MISSING"
	// ConfigInvalid indicates the configuration document could not be parsed
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// RuleSetInvalid indicates a rule-set document could not be parsed or decoded
	RuleSetInvalid ErrorCode = "RULESET_INVALID"
	// CheckerUnavailable indicates no checker is registered or loaded for a rule
	CheckerUnavailable ErrorCode = "CHECKER_UNAVAILABLE"
	// CheckerFailed indicates a checker failed unexpectedly
	CheckerFailed ErrorCode = "CHECKER_FAILED"
	// VCSUnavailable indicates git is missing or the directory is not a repository
	VCSUnavailable ErrorCode = "VCS_UNAVAILABLE"
	// Timeout indicates a subprocess exceeded its deadline
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditFile suggests editing a file
	EditFile FixActionType = "edit-file"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Description string        `json:"description,omitempty"`
}

// String renders the action as a one-line hint.
func (a FixAction) String() string {
	switch {
	case a.Command != "" && a.Description != "":
		return a.Description + ": " + a.Command
	case a.Command != "":
		return a.Command
	case a.Path != "" && a.Description != "":
		return a.Description + " (" + a.Path + ")"
	default:
		return a.Description
	}
}

// ComplianceError represents an engine error with code, message, and suggestions
type ComplianceError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new ComplianceError
func New(code ErrorCode, message string, cause error, suggestedFixes ...FixAction) *ComplianceError {
	return &ComplianceError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *ComplianceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ComplianceError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ComplianceError) WithDetails(details interface{}) *ComplianceError {
	e.Details = details
	return e
}

// Hint joins the suggested fixes into a single line.
func (e *ComplianceError) Hint() string {
	fixes := e.SuggestedFixes
	if len(fixes) == 0 {
		fixes = GetSuggestedFixes(e.Code)
	}
	parts := make([]string, 0, len(fixes))
	for _, f := range fixes {
		if s := f.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigMissing: {
		{
			Type:        EditFile,
			Path:        ".compliance/config.yaml",
			Description: "Create the engine configuration",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditFile,
			Path:        ".compliance/config.yaml",
			Description: "Fix the configuration syntax",
		},
	},
	RuleSetInvalid: {
		{
			Type:        EditFile,
			Path:        ".compliance/rules/",
			Description: "Fix the rule-set document",
		},
	},
	VCSUnavailable: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Description: "Verify you're in a git repository",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf returns the code of a ComplianceError anywhere in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	for err != nil {
		if ce, ok := err.(*ComplianceError); ok {
			return ce.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
