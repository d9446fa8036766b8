// Package rules loads rule-set documents, one per checker kind, and decodes
// them into typed rule structs.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"compliance/internal/errors"
)

// Extensions lists the rule-set document formats, in precedence order for
// documents sharing a stem.
var Extensions = []string{".yaml", ".yml", ".json", ".toml"}

// RuleSet is one named policy document. Raw is read-only after load.
type RuleSet struct {
	Name string
	Path string
	Raw  map[string]interface{}
}

// Registry maps rule-set names (file stems) to their documents.
type Registry struct {
	sets map[string]RuleSet
}

// NewRegistry builds a registry from already parsed rule-sets.
func NewRegistry(sets ...RuleSet) *Registry {
	r := &Registry{sets: make(map[string]RuleSet, len(sets))}
	for _, s := range sets {
		r.sets[s.Name] = s
	}
	return r
}

// Get returns the rule-set called name.
func (r *Registry) Get(name string) (RuleSet, bool) {
	if r == nil {
		return RuleSet{}, false
	}
	s, ok := r.sets[name]
	return s, ok
}

// Names returns the loaded rule-set names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded rule-sets.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sets)
}

// LoadDir parses every rule-set document in dir. Documents that fail to parse
// are logged, returned in the error slice, and skipped.
func LoadDir(dir string, logger *slog.Logger) (*Registry, []error) {
	reg := NewRegistry()

	entries, err := os.ReadDir(dir)
	if err != nil {
		e := errors.New(errors.RuleSetInvalid, "cannot read rules directory "+dir, err)
		logger.Error("Rules directory unavailable", "dir", dir, "error", err.Error())
		return reg, []error{e}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || ruleExtRank(entry.Name()) < 0 {
			continue
		}
		files = append(files, entry.Name())
	}
	// Stable precedence: by stem, then by extension order.
	sort.Slice(files, func(i, j int) bool {
		si, sj := stem(files[i]), stem(files[j])
		if si != sj {
			return si < sj
		}
		return ruleExtRank(files[i]) < ruleExtRank(files[j])
	})

	var errs []error
	for _, name := range files {
		path := filepath.Join(dir, name)
		set, err := LoadFile(path)
		if err != nil {
			logger.Error("Skipping malformed rule-set", "path", path, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		if _, dup := reg.sets[set.Name]; dup {
			e := errors.New(errors.RuleSetInvalid,
				fmt.Sprintf("duplicate rule-set %q ignored: %s", set.Name, path), nil)
			logger.Error("Skipping duplicate rule-set", "path", path)
			errs = append(errs, e)
			continue
		}
		reg.sets[set.Name] = set
		logger.Debug("Loaded rule-set", "name", set.Name, "path", path)
	}
	return reg, errs
}

// LoadFile parses a single rule-set document. An empty document yields an
// empty rule-set.
func LoadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, errors.New(errors.RuleSetInvalid, "cannot read rule-set "+path, err)
	}
	raw, err := parseDocument(filepath.Ext(path), data)
	if err != nil {
		return RuleSet{}, errors.New(errors.RuleSetInvalid, "cannot parse rule-set "+path, err)
	}
	return RuleSet{Name: stem(filepath.Base(path)), Path: path, Raw: raw}, nil
}

func parseDocument(ext string, data []byte) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		err = fmt.Errorf("unsupported rule-set format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

func ruleExtRank(name string) int {
	ext := strings.ToLower(filepath.Ext(name))
	for i, e := range Extensions {
		if e == ext {
			return i
		}
	}
	return -1
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
