// Package artifacts parses the documents the traceability graph is built
// from: PRD frontmatter, test-case catalogs, tasks documents and API
// contracts. Downstream code only sees the typed values.
package artifacts

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrNoFrontmatter is returned when a document does not open with "---".
var ErrNoFrontmatter = errors.New("document does not begin with a frontmatter block")

// Frontmatter is the parsed metadata block of a markdown document.
type Frontmatter struct {
	// Fields holds the decoded mapping.
	Fields map[string]interface{}
	// Keys lists the mapping keys in document order.
	Keys []string
	// Raw is the undecoded YAML text.
	Raw string
}

// SplitFrontmatter separates the frontmatter text from the body.
func SplitFrontmatter(content string) (front string, body string, err error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(content, delimiter) {
		return "", content, ErrNoFrontmatter
	}
	start := len(delimiter)
	if len(content) > start && content[start] == '\r' {
		start++
	}
	if len(content) <= start || content[start] != '\n' {
		return "", content, ErrNoFrontmatter
	}
	start++

	rest := content[start:]
	var closeIdx int
	if strings.HasPrefix(rest, delimiter) {
		closeIdx = 0
	} else {
		closeIdx = strings.Index(rest, "\n"+delimiter)
		if closeIdx == -1 {
			return "", content, fmt.Errorf("no closing frontmatter delimiter")
		}
		closeIdx++
	}
	front = rest[:closeIdx]

	bodyStart := closeIdx + len(delimiter)
	for bodyStart < len(rest) && (rest[bodyStart] == '\n' || rest[bodyStart] == '\r') {
		bodyStart++
	}
	if bodyStart < len(rest) {
		body = rest[bodyStart:]
	}
	return front, body, nil
}

// ParseFrontmatter splits content and decodes the frontmatter as a mapping.
func ParseFrontmatter(content string) (*Frontmatter, string, error) {
	front, body, err := SplitFrontmatter(content)
	if err != nil {
		return nil, body, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(front), &node); err != nil {
		return nil, body, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	fm := &Frontmatter{Fields: map[string]interface{}{}, Raw: front}
	if len(node.Content) == 0 {
		return fm, body, nil
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, body, fmt.Errorf("frontmatter is not a mapping")
	}
	if err := root.Decode(&fm.Fields); err != nil {
		return nil, body, fmt.Errorf("decode frontmatter: %w", err)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		fm.Keys = append(fm.Keys, root.Content[i].Value)
	}
	return fm, body, nil
}

// Has reports whether the frontmatter declares key.
func (f *Frontmatter) Has(key string) bool {
	_, ok := f.Fields[key]
	return ok
}

// String returns the field rendered as text, or "" when absent.
func (f *Frontmatter) String(key string) string {
	v, ok := f.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Strings returns a list field as strings. A scalar becomes a single item.
func (f *Frontmatter) Strings(key string) []string {
	switch v := f.Fields[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
