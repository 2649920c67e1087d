package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "scans", "today")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))

	name := filepath.Join(dir, "scan.obj")
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("v 0 0 0\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "v 0 0 0\n", string(data))
	assert.False(t, fsys.Exists(filepath.Join(dir, "missing.obj")))
}

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	require.NoError(t, m.MkdirAll("/out/scans", 0o755))
	assert.True(t, m.Exists("/out"))
	assert.True(t, m.Exists("/out/scans"))

	w, err := m.Create("/out/scans/a.obj")
	require.NoError(t, err)
	assert.False(t, m.Exists("/out/scans/a.obj"), "file appears on Close")
	_, _ = w.Write([]byte("f 1//1 2//2 3//3\n"))
	require.NoError(t, w.Close())

	data, err := m.ReadFile("/out/scans/../scans/a.obj")
	require.NoError(t, err)
	assert.Equal(t, "f 1//1 2//2 3//3\n", string(data))

	_, err = m.ReadFile("/out/none.obj")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
