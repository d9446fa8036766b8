// Package checkers defines the checker contract and the built-in checkers
// for PRDs, test-case catalogs, test files, code, tasks and the pre-commit
// test run.
package checkers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"compliance/internal/backends/git"
	"compliance/internal/content"
	"compliance/internal/slogutil"
	"compliance/internal/syntax"
	"compliance/internal/trace"
)

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one error or warning produced by a checker.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// String renders the finding on one line, without the hint.
func (f Finding) String() string {
	switch {
	case f.File != "" && f.Line > 0:
		return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message)
	case f.File != "":
		return f.File + ": " + f.Message
	default:
		return f.Message
	}
}

// Result is the outcome of one Check call.
type Result struct {
	Passed   bool      `json:"passed"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// Checker validates a single file. Check must not panic; failures that are
// not policy violations become warnings.
type Checker interface {
	Name() string
	Check(ctx context.Context, path string) Result
}

// Analyzer extracts source facts; *syntax.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, source []byte, lang syntax.Language) (*syntax.Facts, error)
}

// Env carries the read-only collaborators shared by all checkers of a run.
type Env struct {
	Root     string
	Content  content.Reader
	VCS      git.Backend
	Resolver *trace.Resolver
	Syntax   Analyzer
	Runner   CommandRunner
	Strict   bool
	Logger   *slog.Logger
}

func (e Env) log() *slog.Logger {
	if e.Logger == nil {
		return slogutil.NewDiscardLogger()
	}
	return e.Logger
}

// collector accumulates the findings of one Check call.
type collector struct {
	file string
	res  Result
}

func newCollector(file string) *collector {
	return &collector{file: file}
}

func (c *collector) add(sev Severity, msg, hint string) {
	f := Finding{Severity: sev, Message: msg, File: c.file, Hint: hint}
	if sev == SeverityError {
		c.res.Errors = append(c.res.Errors, f)
	} else {
		c.res.Warnings = append(c.res.Warnings, f)
	}
}

func (c *collector) errorf(format string, args ...interface{}) {
	c.add(SeverityError, fmt.Sprintf(format, args...), "")
}

func (c *collector) warnf(format string, args ...interface{}) {
	c.add(SeverityWarning, fmt.Sprintf(format, args...), "")
}

// escalated reports an error in strict mode and a warning otherwise.
func (c *collector) escalated(strict bool, msg, hint string) {
	if strict {
		c.add(SeverityError, msg, hint)
		return
	}
	c.add(SeverityWarning, msg, hint)
}

func (c *collector) result() Result {
	c.res.Passed = len(c.res.Errors) == 0
	return c.res
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
