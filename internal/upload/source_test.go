package upload

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixel.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	src, closer, err := OpenFile(path)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, "pixel.png", src.Name)
	assert.Equal(t, "image/png", src.ContentType)
	assert.Equal(t, int64(len(pngHeader)), src.Size)
	assert.True(t, strings.HasPrefix(src.Preview, "file://"))

	b, err := io.ReadAll(io.NewSectionReader(src.Data, 0, src.Size))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, b)
}

func TestOpenFileText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("just some text\n"), 0o600))

	src, closer, err := OpenFile(path)
	require.NoError(t, err)
	defer closer.Close()

	assert.False(t, IsImage(src.ContentType), "content is sniffed, not taken from the name")
}

func TestOpenFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := OpenFile(dir)
	assert.Error(t, err)

	_, _, err = OpenFile(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
