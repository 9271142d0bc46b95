package ics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtOf(t *testing.T) {
	assert.Equal(t, ".ics", extOf("a/b/img.ics"))
	assert.Equal(t, ".ids", extOf("img.ids"))
	assert.Equal(t, ".ids.gz", extOf("img.ids.gz"))
	assert.Equal(t, ".ids.Z", extOf("img.ids.Z"))
	assert.Equal(t, "", extOf("noext"))
	assert.Equal(t, "", extOf("dir.d/noext"))
}

func TestResolveHeaderName(t *testing.T) {
	assert.Equal(t, "a.ics", resolveHeaderName("a.ics", false))
	assert.Equal(t, "a.ics", resolveHeaderName("a.ids", false))
	assert.Equal(t, "A.ICS", resolveHeaderName("A.IDS", false))
	assert.Equal(t, "a.ics", resolveHeaderName("a", false))
	assert.Equal(t, "a.xyz", resolveHeaderName("a.xyz", true))
}

func TestPixelFileName(t *testing.T) {
	assert.Equal(t, "a.ids", pixelFileName("a.ics"))
	assert.Equal(t, "A.IDS", pixelFileName("A.ICS"))
	assert.Equal(t, "a.txt.ids", pixelFileName("a.txt"))
}

func touch(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestFindHeaderFile(t *testing.T) {
	dir := t.TempDir()
	ics := filepath.Join(dir, "img.ics")
	touch(t, ics, []byte("x"))

	// the pixel path, the bare name and the header path all resolve
	for _, p := range []string{ics, filepath.Join(dir, "img.ids"), filepath.Join(dir, "img")} {
		got, err := findHeaderFile(p, false)
		require.NoError(t, err)
		assert.Equal(t, ics, got)
	}

	_, err := findHeaderFile(filepath.Join(dir, "other.ics"), false)
	assert.ErrorIs(t, err, ErrFileOpenHeader)

	// force mode takes the path literally
	_, err = findHeaderFile(filepath.Join(dir, "img.ids"), true)
	assert.ErrorIs(t, err, ErrFileOpenHeader)
	got, err := findHeaderFile(ics, true)
	require.NoError(t, err)
	assert.Equal(t, ics, got)
}

func TestFindPixelFile(t *testing.T) {
	dir := t.TempDir()
	ics := filepath.Join(dir, "img.ics")
	touch(t, ics, []byte("x"))

	_, _, err := findPixelFile(ics, CompressionUncompressed)
	assert.ErrorIs(t, err, ErrFileOpenPixels)

	// a .gz sibling implies gzip regardless of the header
	touch(t, filepath.Join(dir, "img.ids.gz"), []byte("x"))
	p, comp, err := findPixelFile(ics, CompressionUncompressed)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img.ids.gz"), p)
	assert.Equal(t, CompressionGzip, comp)

	// a plain .ids sibling wins and keeps the declared compression
	touch(t, filepath.Join(dir, "img.ids"), []byte("x"))
	p, comp, err = findPixelFile(ics, CompressionUncompressed)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img.ids"), p)
	assert.Equal(t, CompressionUncompressed, comp)
}
