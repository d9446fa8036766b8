package syntax

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

var (
	pyDef      = regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(([^)]*)\)?\s*(->)?`)
	pyClass    = regexp.MustCompile(`^\s*class\s+(\w+)`)
	jsFunction = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*(?:<[^>]*>)?\s*\(([^)]*)\)?\s*(:)?`)
	jsClass    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	tsParamAnn = regexp.MustCompile(`\w\??\s*:\s*\S`)
)

// Scan extracts facts line by line. It is the fallback when tree-sitter is
// unavailable or fails to parse.
func Scan(source []byte, lang Language) *Facts {
	facts := &Facts{Language: lang}
	if lang.IsScript() {
		facts.DocComment = bytes.Contains(source, []byte("/**"))
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if lang == LangPython {
		facts.ModuleDocstring = startsWithDocstring(lines, 0)
	}

	for i, line := range lines {
		switch {
		case lang == LangPython:
			if m := pyDef.FindStringSubmatch(line); m != nil {
				facts.Definitions = append(facts.Definitions, Definition{
					Name:       m[1],
					Kind:       "function",
					Line:       i + 1,
					Documented: startsWithDocstring(lines, i+1),
					Annotated:  m[3] != "" || strings.Contains(m[2], ":"),
				})
			} else if m := pyClass.FindStringSubmatch(line); m != nil {
				facts.Definitions = append(facts.Definitions, Definition{
					Name: m[1], Kind: "class", Line: i + 1,
					Documented: startsWithDocstring(lines, i+1),
				})
			}
		case lang.IsScript():
			if m := jsFunction.FindStringSubmatch(line); m != nil {
				facts.Definitions = append(facts.Definitions, Definition{
					Name:       m[1],
					Kind:       "function",
					Line:       i + 1,
					Documented: precededByDocComment(lines, i),
					Annotated:  lang != LangJavaScript && (m[3] != "" || tsParamAnn.MatchString(m[2])),
				})
			} else if m := jsClass.FindStringSubmatch(line); m != nil {
				facts.Definitions = append(facts.Definitions, Definition{
					Name: m[1], Kind: "class", Line: i + 1,
					Documented: precededByDocComment(lines, i),
				})
			}
		}
	}
	return facts
}

// startsWithDocstring reports whether the first significant line at or after
// from opens a triple-quoted string.
func startsWithDocstring(lines []string, from int) bool {
	for i := from; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		t = strings.TrimLeft(t, "rRbBuUfF")
		return strings.HasPrefix(t, `"""`) || strings.HasPrefix(t, `'''`)
	}
	return false
}

// precededByDocComment reports whether the lines above idx end a /** */ block.
func precededByDocComment(lines []string, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" || strings.HasPrefix(t, "@") {
			continue
		}
		if !strings.HasSuffix(t, "*/") {
			return false
		}
		for j := i; j >= 0; j-- {
			if strings.Contains(lines[j], "/**") {
				return true
			}
			if strings.Contains(lines[j], "/*") {
				return false
			}
		}
		return false
	}
	return false
}
