package gzipframe

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, payload []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterProducesStandardGzip(t *testing.T) {
	payload := bytes.Repeat([]byte("microscopy pixels "), 64)
	frame := deflate(t, payload, 6)

	// the standard library must accept what we write
	r, err := gzip.NewReader(bytes.NewReader(frame))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, r.Close())
}

func TestReaderAcceptsStandardGzip(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 100)
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = "pixels.raw" // exercises the FNAME header field
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEmptyPayload(t *testing.T) {
	frame := deflate(t, nil, 6)
	r, err := NewReader(bytes.NewReader(frame))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSkipAndReset(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := deflate(t, payload, 9)

	r, err := NewReader(bytes.NewReader(frame))
	require.NoError(t, err)
	require.NoError(t, r.Skip(500))

	buf := make([]byte, 10)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, payload[500:510], buf)

	// skipping past the end is an error
	assert.ErrorIs(t, r.Skip(1000), io.ErrUnexpectedEOF)

	// a reset rewinds to the frame start
	require.NoError(t, r.Reset(bytes.NewReader(frame)))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, payload[:10], buf)
}

func TestCorruptTrailer(t *testing.T) {
	payload := []byte("checksummed content")
	frame := deflate(t, payload, 6)

	// flip a CRC byte
	bad := append([]byte(nil), frame...)
	bad[len(bad)-8] ^= 0xff
	r, err := NewReader(bytes.NewReader(bad))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrChecksum)

	// break the length word
	bad = append([]byte(nil), frame...)
	bad[len(bad)-1] ^= 0xff
	r, err = NewReader(bytes.NewReader(bad))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrLength)
}

func TestBadHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("plainly not gzip data")))
	assert.ErrorIs(t, err, ErrHeader)

	_, err = NewReader(bytes.NewReader([]byte{0x1f}))
	assert.ErrorIs(t, err, ErrHeader)
}
