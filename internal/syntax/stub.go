//go:build !cgo

package syntax

import (
	"context"
	"fmt"
)

// Analyzer extracts Facts. Without cgo it uses the line scanner.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// IsAvailable returns whether tree-sitter analysis is compiled in.
// Returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}

// Analyze scans source and collects facts.
func (a *Analyzer) Analyze(ctx context.Context, source []byte, lang Language) (*Facts, error) {
	switch lang {
	case LangPython, LangJavaScript, LangTypeScript, LangTSX:
		return Scan(source, lang), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}
