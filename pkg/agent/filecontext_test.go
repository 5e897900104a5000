package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileContext(t *testing.T) *FileContext {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("remember the milk"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))
	fc, err := NewFileContext(dir)
	require.NoError(t, err)
	return fc
}

func TestFileContext_ReadFile(t *testing.T) {
	fc := newTestFileContext(t)

	content, err := fc.ReadFile("notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "remember the milk", content)
}

func TestFileContext_RejectsEscapingPaths(t *testing.T) {
	fc := newTestFileContext(t)

	for _, path := range []string{"../secrets", "..", "docs/../../etc/passwd"} {
		_, err := fc.ReadFile(path)
		assert.ErrorContains(t, err, "escapes the workspace root", "path %q", path)
	}
}

func TestFileContext_ListFiles(t *testing.T) {
	fc := newTestFileContext(t)

	listing, err := fc.ListFiles(".")

	require.NoError(t, err)
	assert.Contains(t, listing, "Directory listing for: .")
	assert.Contains(t, listing, "[DIR]  docs")
	assert.Contains(t, listing, "[FILE] notes.txt")
}

func TestFileContext_CacheUpdate(t *testing.T) {
	fc := newTestFileContext(t)

	update, err := fc.CacheUpdate("notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "remember the milk", update.CacheFiles["notes.txt"])
}
