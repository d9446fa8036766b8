//go:build cgo

package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Analyzer extracts Facts using tree-sitter grammars.
// A parser is created per call, so an Analyzer is safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// IsAvailable returns whether tree-sitter analysis is compiled in.
func IsAvailable() bool {
	return true
}

// Analyze parses source and collects facts. Parse failures fall back to Scan.
func (a *Analyzer) Analyze(ctx context.Context, source []byte, lang Language) (*Facts, error) {
	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return Scan(source, lang), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	facts := &Facts{Language: lang}
	if lang == LangPython {
		facts.ModuleDocstring = firstStatementIsString(root)
	}
	walk(root, func(n *sitter.Node) {
		switch lang {
		case LangPython:
			collectPython(n, source, facts)
		default:
			collectScript(n, source, lang, facts)
		}
	})
	return facts, nil
}

func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangPython:
		return python.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func collectPython(n *sitter.Node, source []byte, facts *Facts) {
	switch n.Type() {
	case "function_definition":
		facts.Definitions = append(facts.Definitions, Definition{
			Name:       fieldText(n, "name", source),
			Kind:       "function",
			Line:       int(n.StartPoint().Row) + 1,
			Documented: firstStatementIsString(n.ChildByFieldName("body")),
			Annotated:  pythonAnnotated(n),
		})
	case "class_definition":
		facts.Definitions = append(facts.Definitions, Definition{
			Name:       fieldText(n, "name", source),
			Kind:       "class",
			Line:       int(n.StartPoint().Row) + 1,
			Documented: firstStatementIsString(n.ChildByFieldName("body")),
		})
	}
}

func pythonAnnotated(fn *sitter.Node) bool {
	if fn.ChildByFieldName("return_type") != nil {
		return true
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		switch params.NamedChild(i).Type() {
		case "typed_parameter", "typed_default_parameter":
			return true
		}
	}
	return false
}

// firstStatementIsString reports whether block opens with a string literal.
func firstStatementIsString(block *sitter.Node) bool {
	if block == nil {
		return false
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			return false
		}
		return stmt.NamedChild(0).Type() == "string"
	}
	return false
}

func collectScript(n *sitter.Node, source []byte, lang Language, facts *Facts) {
	switch n.Type() {
	case "comment":
		if strings.HasPrefix(n.Content(source), "/**") {
			facts.DocComment = true
		}
	case "function_declaration", "generator_function_declaration", "method_definition":
		facts.Definitions = append(facts.Definitions, Definition{
			Name:       fieldText(n, "name", source),
			Kind:       "function",
			Line:       int(n.StartPoint().Row) + 1,
			Documented: hasDocComment(n, source),
			Annotated:  lang != LangJavaScript && scriptAnnotated(n),
		})
	case "class_declaration", "abstract_class_declaration":
		facts.Definitions = append(facts.Definitions, Definition{
			Name:       fieldText(n, "name", source),
			Kind:       "class",
			Line:       int(n.StartPoint().Row) + 1,
			Documented: hasDocComment(n, source),
		})
	}
}

func scriptAnnotated(fn *sitter.Node) bool {
	if fn.ChildByFieldName("return_type") != nil {
		return true
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.ChildByFieldName("type") != nil {
			return true
		}
	}
	return false
}

// hasDocComment checks the sibling before n, or before its export wrapper.
func hasDocComment(n *sitter.Node, source []byte) bool {
	target := n
	if parent := n.Parent(); parent != nil && parent.Type() == "export_statement" {
		target = parent
	}
	prev := target.PrevNamedSibling()
	return prev != nil && prev.Type() == "comment" && strings.HasPrefix(prev.Content(source), "/**")
}

func fieldText(n *sitter.Node, field string, source []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(source)
	}
	return ""
}
