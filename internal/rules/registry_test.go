package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/errors"
	"compliance/internal/slogutil"
)

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "prd.yaml", "required_metadata_fields: [req_id, status]\n")
	writeRule(t, dir, "code.json", `{"traceability": {"require_prd_link": true}}`)
	writeRule(t, dir, "task.toml", "valid_states = [\"pending\", \"done\"]\n")
	writeRule(t, dir, "broken.yaml", "key: [unclosed\n")
	writeRule(t, dir, "README.md", "# not a rule-set\n")

	reg, errs := LoadDir(dir, slogutil.NewDiscardLogger())

	require.Len(t, errs, 1)
	code, _ := errors.CodeOf(errs[0])
	assert.Equal(t, errors.RuleSetInvalid, code)
	assert.Equal(t, []string{"code", "prd", "task"}, reg.Names())

	prd, ok := reg.Get("prd")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "prd.yaml"), prd.Path)
	assert.Equal(t, []interface{}{"req_id", "status"}, prd.Raw["required_metadata_fields"])

	_, ok = reg.Get("broken")
	assert.False(t, ok)
}

func TestLoadDir_DuplicateStem(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "prd.json", `{"valid_statuses": ["x"]}`)
	writeRule(t, dir, "prd.yaml", "valid_statuses: [y]\n")

	reg, errs := LoadDir(dir, slogutil.NewDiscardLogger())
	require.Len(t, errs, 1)
	prd, _ := reg.Get("prd")
	assert.Equal(t, filepath.Join(dir, "prd.yaml"), prd.Path, "yaml takes precedence")
}

func TestLoadDir_MissingDir(t *testing.T) {
	reg, errs := LoadDir(filepath.Join(t.TempDir(), "none"), slogutil.NewDiscardLogger())
	assert.Len(t, errs, 1)
	assert.Equal(t, 0, reg.Len())
}

func TestLoadFile_Empty(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "test.yaml", "")
	set, err := LoadFile(filepath.Join(dir, "test.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test", set.Name)
	assert.Empty(t, set.Raw)
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	_, ok := reg.Get("prd")
	assert.False(t, ok)
	assert.Nil(t, reg.Names())
	assert.Equal(t, 0, reg.Len())
}
