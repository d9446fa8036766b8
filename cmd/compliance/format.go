package main

import (
	"fmt"
	"io"
	"strings"

	"compliance/internal/checkers"
	"compliance/internal/engine"
)

var statusLabel = map[engine.Status]string{
	engine.StatusPassed:  "PASS",
	engine.StatusFailed:  "FAIL",
	engine.StatusWarning: "WARN",
}

// formatReport renders per-file findings followed by the summary.
func formatReport(r *engine.Report) string {
	var b strings.Builder
	for _, f := range r.Files {
		b.WriteString(fmt.Sprintf("%s %s [%s]\n", statusLabel[f.Status], f.Path, strings.Join(f.Rules, ", ")))
		writeFindings(&b, "error", f.Errors)
		writeFindings(&b, "warning", f.Warnings)
	}

	if len(r.Files) > 0 {
		b.WriteString("\n")
	}
	s := r.Summary
	b.WriteString(fmt.Sprintf("Summary: %d checked, %d passed, %d failed, %d with warnings\n",
		s.Total, s.Passed, s.Failed, s.Warnings))
	if r.Interrupted {
		b.WriteString("Run interrupted; results are partial.\n")
	}
	if r.Strict && s.Failed > 0 {
		b.WriteString("Strict mode: commit blocked.\n")
	}
	return b.String()
}

func writeFindings(b *strings.Builder, label string, findings []checkers.Finding) {
	for _, f := range findings {
		if f.Line > 0 {
			b.WriteString(fmt.Sprintf("  %s (line %d): %s\n", label, f.Line, f.Message))
		} else {
			b.WriteString(fmt.Sprintf("  %s: %s\n", label, f.Message))
		}
		if f.Hint != "" {
			for i, line := range strings.Split(f.Hint, "\n") {
				if i == 0 {
					b.WriteString("    hint: " + line + "\n")
				} else {
					b.WriteString("          " + line + "\n")
				}
			}
		}
	}
}

func printReport(w io.Writer, r *engine.Report) {
	fmt.Fprint(w, formatReport(r))
}
