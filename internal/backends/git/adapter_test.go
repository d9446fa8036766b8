package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/slogutil"
)

func TestIsRepository(t *testing.T) {
	g := NewAdapter(0, slogutil.NewDiscardLogger())
	root := t.TempDir()

	assert.False(t, g.IsRepository(context.Background(), root))
	assert.False(t, g.IsRepository(context.Background(), ""))

	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	assert.True(t, g.IsRepository(context.Background(), root))
}

func TestShowStaged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backend", "a.py"), []byte("# REQ-2025-001\n"), 0o644))
	run("add", "backend/a.py")
	require.NoError(t, os.Remove(filepath.Join(root, "backend", "a.py")))

	g := NewAdapter(0, slogutil.NewDiscardLogger())
	data, err := g.ShowStaged(context.Background(), root, "backend/a.py")
	require.NoError(t, err)
	assert.Equal(t, "# REQ-2025-001\n", string(data))

	_, err = g.ShowStaged(context.Background(), root, "backend/missing.py")
	assert.Error(t, err)
}
