package engine

import (
	"compliance/internal/audit"
	"compliance/internal/checkers"
)

// Status is the classification of a file.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
)

// FileResult aggregates the findings of every checker run on one file.
type FileResult struct {
	Path     string             `json:"path"`
	Rules    []string           `json:"rules"`
	Status   Status             `json:"status"`
	Errors   []checkers.Finding `json:"errors"`
	Warnings []checkers.Finding `json:"warnings"`
}

func classify(fr *FileResult) Status {
	switch {
	case len(fr.Errors) > 0:
		return StatusFailed
	case len(fr.Warnings) > 0:
		return StatusWarning
	default:
		return StatusPassed
	}
}

// Report is the outcome of a run.
type Report struct {
	Files   []FileResult  `json:"files"`
	Summary audit.Summary `json:"summary"`
	Strict  bool          `json:"strict"`

	Interrupted bool   `json:"interrupted,omitempty"`
	AuditPath   string `json:"audit_path,omitempty"`
	AuditErr    error  `json:"-"`
}

func (r *Report) add(fr FileResult) {
	r.Files = append(r.Files, fr)
	r.Summary.Total++
	switch fr.Status {
	case StatusFailed:
		r.Summary.Failed++
	case StatusWarning:
		r.Summary.Warnings++
	default:
		r.Summary.Passed++
	}
}

// FailedFiles returns the paths of failed files in report order.
func (r *Report) FailedFiles() []string {
	var out []string
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			out = append(out, f.Path)
		}
	}
	return out
}

// ExitCode is 1 for an interrupted run or for failures in strict mode.
func (r *Report) ExitCode() int {
	if r.Interrupted || (r.Strict && r.Summary.Failed > 0) {
		return 1
	}
	return 0
}

func (r *Report) auditRecord() audit.Record {
	rec := audit.Record{
		Summary:     r.Summary,
		FailedFiles: r.FailedFiles(),
	}
	for _, f := range r.Files {
		for _, e := range f.Errors {
			rec.Errors = append(rec.Errors, e.String())
		}
	}
	return rec
}
