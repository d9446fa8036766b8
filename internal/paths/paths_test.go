package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "backend", "apps", "users", "views.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	got, err := CanonicalizePath(file, root)
	require.NoError(t, err)
	assert.Equal(t, "backend/apps/users/views.py", got)
}

func TestCanonicalizePath_MissingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))

	got, err := CanonicalizePath(filepath.Join(root, "backend", "apps", "new.py"), root)
	require.NoError(t, err)
	assert.Equal(t, "backend/apps/new.py", got)
}

func TestCanonicalizePath_Outside(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	_, err := CanonicalizePath(filepath.Join(other, "x.py"), root)
	assert.ErrorIs(t, err, ErrOutsideRepo)
	assert.False(t, IsWithinRepo(filepath.Join(other, "x.py"), root))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "a/b/c.py", NormalizePath("./a/b/c.py"))
	assert.Equal(t, "a/b", NormalizePath("a/b"))
}

func TestJoinRepoPath(t *testing.T) {
	got := JoinRepoPath("/repo", "docs/00_product/x.md")
	assert.Equal(t, filepath.Join("/repo", "docs", "00_product", "x.md"), got)
}

func TestAbsolute(t *testing.T) {
	assert.Equal(t, "/a/b", Absolute("/a/b", "/ignored"))
	assert.Equal(t, filepath.Join("/base", "x/y"), Absolute("x/y", "/base"))
}

func TestFindUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "00_product", "requirements"), 0o755))
	deep := filepath.Join(root, "backend", "apps", "users")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	found, ok := FindUpward(deep, "docs/00_product/requirements")
	require.True(t, ok)
	expected, _ := filepath.EvalSymlinks(root)
	actual, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, expected, actual)

	_, ok = FindUpward(deep, "no-such-marker-anywhere-xyz")
	assert.False(t, ok)
}
