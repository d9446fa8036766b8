package artifacts

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CatalogRow is one data row of a test-case catalog.
type CatalogRow struct {
	// Number is the 1-based data-row number (the header is not counted).
	Number int
	Fields map[string]string
}

// Get returns the trimmed value of column name.
func (r CatalogRow) Get(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Catalog is a parsed delimited test-case catalog.
type Catalog struct {
	Header []string
	Rows   []CatalogRow
}

// MissingColumns returns the required columns absent from the header, in
// required order.
func (c *Catalog) MissingColumns(required []string) []string {
	present := make(map[string]bool, len(c.Header))
	for _, h := range c.Header {
		present[h] = true
	}
	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// ReadCatalog decodes a delimited catalog. A UTF-8 or UTF-16 byte-order mark
// selects the encoding; without one the data is read as UTF-8.
func ReadCatalog(data []byte, delimiter rune) (*Catalog, error) {
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("catalog is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	cat := &Catalog{Header: header}
	for n := 1; ; n++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", n, err)
		}
		if blank(record) {
			n--
			continue
		}
		row := CatalogRow{Number: n, Fields: make(map[string]string, len(header))}
		for i, name := range header {
			if i < len(record) {
				row.Fields[name] = record[i]
			}
		}
		cat.Rows = append(cat.Rows, row)
	}
	return cat, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
