package archive_test

import (
	"archive/zip"
	"io"
	"path/filepath"
	"testing"

	"github.com/collabcore/collabcore/internal/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesReadableZip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "proj-u1.zip")
	files := []archive.File{
		{Path: "/a.txt", Content: []byte("hello")},
		{Path: "/sub/b.txt", Content: []byte("world")},
	}

	require.NoError(t, archive.Write(out, files))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		got[f.Name] = string(data)
	}

	assert.Equal(t, "hello", got["a.txt"])
	assert.Equal(t, "world", got["sub/b.txt"])
}

func TestWriteEmptyFileList(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.zip")
	require.NoError(t, archive.Write(out, nil))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	assert.Empty(t, zr.File)
}
