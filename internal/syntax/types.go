// Package syntax extracts documentation and annotation facts from source
// files for the code checker's quality hints. Tree-sitter is used when the
// build has cgo; otherwise a line scanner provides the same facts.
package syntax

import (
	"path/filepath"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// LanguageFromPath maps a file extension to a language.
func LanguageFromPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return LangPython, true
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	default:
		return "", false
	}
}

// IsScript reports whether lang is one of the JavaScript family.
func (l Language) IsScript() bool {
	return l == LangJavaScript || l == LangTypeScript || l == LangTSX
}

// Definition is a top-level or nested function or class.
type Definition struct {
	Name       string
	Kind       string // "function" or "class"
	Line       int    // 1-based
	Documented bool
	Annotated  bool
}

// Facts summarizes a source file.
type Facts struct {
	Language        Language
	Definitions     []Definition
	ModuleDocstring bool
	// DocComment is true when any /** ... */ block is present.
	DocComment bool
}

// Count returns the number of definitions of kind ("" for all).
func (f *Facts) Count(kind string) int {
	n := 0
	for _, d := range f.Definitions {
		if kind == "" || d.Kind == kind {
			n++
		}
	}
	return n
}

// HasDocumentation reports whether the module or any definition is documented.
func (f *Facts) HasDocumentation() bool {
	if f.ModuleDocstring {
		return true
	}
	for _, d := range f.Definitions {
		if d.Documented {
			return true
		}
	}
	return false
}

// HasAnnotations reports whether any function carries a type annotation.
func (f *Facts) HasAnnotations() bool {
	for _, d := range f.Definitions {
		if d.Kind == "function" && d.Annotated {
			return true
		}
	}
	return false
}
