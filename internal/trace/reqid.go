// Package trace resolves requirement identifiers to the artifacts that
// reference them: PRDs, test-case catalogs, task groups and API contracts.
package trace

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ReqID is a requirement identifier, REQ-YYYY-NNN with an optional slug.
type ReqID struct {
	Year string
	Seq  string
	Slug string
}

var reqPattern = regexp.MustCompile(`(?i)\bREQ-(\d{4})-(\d{3})((?:-[a-z0-9]+)*)\b`)

// String returns the canonical form: upper-case prefix, lower-case slug.
func (id ReqID) String() string {
	if id.Slug == "" {
		return fmt.Sprintf("REQ-%s-%s", id.Year, id.Seq)
	}
	return fmt.Sprintf("REQ-%s-%s-%s", id.Year, id.Seq, id.Slug)
}

// IsZero reports whether id is unset.
func (id ReqID) IsZero() bool { return id.Year == "" }

// Equal compares canonical forms.
func (id ReqID) Equal(other ReqID) bool { return id.String() == other.String() }

func fromMatch(m []string) ReqID {
	return ReqID{Year: m[1], Seq: m[2], Slug: strings.ToLower(strings.TrimPrefix(m[3], "-"))}
}

// ParseReqID parses s, which must be exactly one identifier.
func ParseReqID(s string) (ReqID, error) {
	s = strings.TrimSpace(s)
	m := reqPattern.FindStringSubmatch(s)
	if m == nil || len(m[0]) != len(s) {
		return ReqID{}, fmt.Errorf("invalid requirement id %q", s)
	}
	return fromMatch(m), nil
}

// FindReqID returns the first identifier in the first maxLines lines of text.
// maxLines <= 0 scans everything.
func FindReqID(text string, maxLines int) (ReqID, bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 0; scanner.Scan(); n++ {
		if maxLines > 0 && n >= maxLines {
			break
		}
		if m := reqPattern.FindStringSubmatch(scanner.Text()); m != nil {
			return fromMatch(m), true
		}
	}
	return ReqID{}, false
}

// FindReqIDInPath looks for an identifier in the path segments, deepest
// directory first, then the file name.
func FindReqIDInPath(path string) (ReqID, bool) {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if m := reqPattern.FindStringSubmatch(segments[i]); m != nil {
			return fromMatch(m), true
		}
	}
	if len(segments) > 0 {
		if m := reqPattern.FindStringSubmatch(segments[len(segments)-1]); m != nil {
			return fromMatch(m), true
		}
	}
	return ReqID{}, false
}

var catalogName = regexp.MustCompile(`(?i)^(REQ-\d{4}-\d{3}(?:-[a-z0-9]+)*)-test-cases\.([a-z0-9]+)$`)

// ParseCatalogName extracts the requirement id and extension from
// "<REQ-ID>-test-cases.<ext>". Matching is case-insensitive.
func ParseCatalogName(name string) (ReqID, string, bool) {
	m := catalogName.FindStringSubmatch(name)
	if m == nil {
		return ReqID{}, "", false
	}
	id, err := ParseReqID(m[1])
	if err != nil {
		return ReqID{}, "", false
	}
	return id, strings.ToLower(m[2]), true
}
