package artifacts

import (
	"fmt"
	"strings"
)

// PRD statuses.
const (
	StatusDraft    = "draft"
	StatusReview   = "review"
	StatusApproved = "approved"
	StatusArchived = "archived"
)

// PRD is a product requirements document.
type PRD struct {
	Path  string
	Front *Frontmatter
	Body  string

	ReqID               string
	Status              string
	Deletable           *bool
	ImplementationFiles []string
	TestFiles           []string
	TestcaseFile        string
	APIContract         string
}

// ParsePRD parses a PRD document. A missing or malformed frontmatter block
// is an error.
func ParsePRD(path string, data []byte) (*PRD, error) {
	fm, body, err := ParseFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p := &PRD{
		Path:                path,
		Front:               fm,
		Body:                body,
		ReqID:               strings.TrimSpace(fm.String("req_id")),
		Status:              strings.ToLower(strings.TrimSpace(fm.String("status"))),
		ImplementationFiles: fm.Strings("implementation_files"),
		TestFiles:           fm.Strings("test_files"),
		TestcaseFile:        strings.TrimSpace(fm.String("testcase_file")),
		APIContract:         strings.TrimSpace(fm.String("api_contract")),
	}
	if d, ok := boolField(fm.Fields["deletable"]); ok {
		p.Deletable = &d
	}
	return p, nil
}

// IsDeletable reports whether the PRD authorizes feature-code deletion.
func (p *PRD) IsDeletable() bool {
	return p != nil && p.Deletable != nil && *p.Deletable
}

// HasImplementationFiles reports whether implementation_files is declared.
func (p *PRD) HasImplementationFiles() bool {
	return p.Front.Has("implementation_files")
}

// ListsImplementationFile reports whether rel (repo-relative, slash
// separated) is declared in implementation_files. Comparison is exact after
// normalizing leading "./".
func (p *PRD) ListsImplementationFile(rel string) bool {
	rel = strings.TrimPrefix(rel, "./")
	for _, f := range p.ImplementationFiles {
		if strings.TrimPrefix(strings.TrimSpace(f), "./") == rel {
			return true
		}
	}
	return false
}

func boolField(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}
