package git

import (
	"bufio"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// DeletedLines returns the removed lines of a unified diff, without the
// leading '-'. File headers ("---") are never included.
func DeletedLines(diffText string) []string {
	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
	if err != nil || len(fileDiffs) == 0 {
		return scanDeletedLines(diffText)
	}

	var deleted []string
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			deleted = append(deleted, scanDeletedLines(string(hunk.Body))...)
		}
	}
	return deleted
}

// scanDeletedLines is the line-oriented reading used for hunk bodies and
// for diffs go-diff refuses to parse.
func scanDeletedLines(text string) []string {
	var deleted []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			deleted = append(deleted, line[1:])
		}
	}
	return deleted
}
