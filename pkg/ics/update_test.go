package ics

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upd.ics")
	data := []byte{9, 8, 7, 6, 5, 4}
	writeTestImage(t, path, TypeUInt8, []int{3, 2}, data)

	img, err := Open(path, "rw")
	require.NoError(t, err)
	require.NoError(t, img.AddHistoryString("note", "reprocessed"))
	require.NoError(t, img.Close())

	// no backup left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	img, err = Open(path, "r")
	require.NoError(t, err)
	defer img.Close()
	got := make([]byte, img.DataSize())
	require.NoError(t, img.GetData(got))
	assert.Equal(t, data, got)

	k, v, err := img.NewHistoryIterator("note").KeyValue()
	require.NoError(t, err)
	assert.Equal(t, "note", k)
	assert.Equal(t, "reprocessed", v)
}

func TestUpdateRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roll.ics")
	writeTestImage(t, path, TypeUInt8, []int{4, 2}, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	img, err := Open(path, "rw")
	require.NoError(t, err)
	require.NoError(t, img.AddHistoryString("note", "never lands"))

	// fail the payload transfer after the new header is on disk
	realCopy := copyPixelPayload
	copyPixelPayload = func(io.Writer, io.Reader, []byte) (int64, error) {
		return 0, errors.New("no space left on device")
	}
	defer func() { copyPixelPayload = realCopy }()
	err = img.Close()
	assert.ErrorIs(t, err, ErrFailCopyIds)

	// the original file is back, byte for byte, with no backup around
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// and it still opens cleanly
	img, err = Open(path, "r")
	require.NoError(t, err)
	assert.NoError(t, img.Close())
}

func TestUpdateV1HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v1.ics")
	data := []byte{1, 2, 3, 4}

	img, err := Open(path, "w1")
	require.NoError(t, err)
	require.NoError(t, img.SetLayout(TypeUInt8, []int{2, 2}))
	require.NoError(t, img.SetData(data))
	require.NoError(t, img.Close())

	idsBefore, err := os.ReadFile(filepath.Join(dir, "v1.ids"))
	require.NoError(t, err)

	img, err = Open(path, "rw")
	require.NoError(t, err)
	require.NoError(t, img.AddHistoryString("pass", "2"))
	require.NoError(t, img.Close())

	// a v1 update rewrites only the header; the pixel file is untouched
	idsAfter, err := os.ReadFile(filepath.Join(dir, "v1.ids"))
	require.NoError(t, err)
	assert.Equal(t, idsBefore, idsAfter)

	img, err = Open(path, "r")
	require.NoError(t, err)
	defer img.Close()
	assert.Equal(t, 1, img.GetNumHistoryStrings())
}

func TestOpenModeStrings(t *testing.T) {
	dir := t.TempDir()
	for _, mode := range []string{"", "x", "rr", "w12", "12"} {
		_, err := Open(filepath.Join(dir, "m.ics"), mode)
		assert.ErrorIs(t, err, ErrNotValidAction, "mode %q", mode)
	}

	// token order is free; the locale token is accepted and ignored
	img, err := Open(filepath.Join(dir, "m.ics"), "l2w")
	require.NoError(t, err)
	assert.Equal(t, 2, img.Version())
	require.NoError(t, img.SetLayout(TypeUInt8, []int{2}))
	require.NoError(t, img.SetData([]byte{1, 2}))
	require.NoError(t, img.Close())

	// update mode on the file just written
	img, err = Open(filepath.Join(dir, "m.ics"), "wr")
	require.NoError(t, err)
	require.NoError(t, img.Close())
}
