package lzw

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codeWriter packs LSB-first codes the way compress(1) does: groups of
// eight codes per chunk, with the chunk padded out on a clear.
type codeWriter struct {
	out   []byte
	chunk []byte
	bits  int
}

func (w *codeWriter) put(code, width int) {
	for i := 0; i < width; i++ {
		if w.bits>>3 >= len(w.chunk) {
			w.chunk = append(w.chunk, 0)
		}
		if code>>i&1 == 1 {
			w.chunk[w.bits>>3] |= 1 << (w.bits & 7)
		}
		w.bits++
	}
	if w.bits == width*8 { // eight codes fill exactly width bytes
		w.flush()
	}
}

// pad completes the current chunk with zero bytes, as the encoder does
// after emitting a clear code.
func (w *codeWriter) pad(width int) {
	if w.bits == 0 {
		return
	}
	for len(w.chunk) < width {
		w.chunk = append(w.chunk, 0)
	}
	w.flush()
}

func (w *codeWriter) flush() {
	w.out = append(w.out, w.chunk...)
	w.chunk = w.chunk[:0]
	w.bits = 0
}

// stream frames codes as a block-mode compress(1) stream.
func stream(codes []int) []byte {
	w := &codeWriter{out: []byte{magic0, magic1, maxWidth | blockBit}}
	for _, c := range codes {
		w.put(c, initWidth)
		if c == clearCode {
			w.pad(initWidth)
		}
	}
	w.flush()
	return w.out
}

func TestDecodeLiterals(t *testing.T) {
	// a stream of bare literal codes reproduces its input
	want := make([]byte, 100)
	codes := make([]int, 100)
	for i := range want {
		want[i] = byte(i * 7)
		codes[i] = int(want[i])
	}

	dst := make([]byte, 100)
	n, err := Decode(bytes.NewReader(stream(codes)), dst)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, want, dst)
}

func TestDecodeTableCodes(t *testing.T) {
	// "abababab" compresses to a|b|ab|aba|b; code 259 is the KwKwK
	// case, referencing the entry being defined by the code before it
	codes := []int{'a', 'b', 257, 259, 'b'}

	dst := make([]byte, 8)
	n, err := Decode(bytes.NewReader(stream(codes)), dst)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("abababab"), dst)
}

func TestDecodeClearCode(t *testing.T) {
	codes := []int{'a', 'b', clearCode, 'a', 'b'}

	dst := make([]byte, 4)
	n, err := Decode(bytes.NewReader(stream(codes)), dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abab"), dst)
}

func TestDecodeShortDestination(t *testing.T) {
	// mid-string overflow stops cleanly with a full buffer
	codes := []int{'a', 'b', 257, 259, 'b'}

	dst := make([]byte, 5)
	n, err := Decode(bytes.NewReader(stream(codes)), dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("ababa"), dst)
}

func TestDecodeTruncatedStream(t *testing.T) {
	codes := []int{'x', 'y'}

	dst := make([]byte, 10)
	n, err := Decode(bytes.NewReader(stream(codes)), dst)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("xy"), dst[:2])
}

func TestDecodeBadStreams(t *testing.T) {
	dst := make([]byte, 4)

	_, err := Decode(bytes.NewReader([]byte{0x1f, 0x8b, 0x10}), dst)
	assert.ErrorIs(t, err, ErrMagic)

	_, err = Decode(bytes.NewReader([]byte{0x1f}), dst)
	assert.ErrorIs(t, err, ErrMagic)

	// code width outside 9..16
	_, err = Decode(bytes.NewReader([]byte{magic0, magic1, 0x05}), dst)
	assert.ErrorIs(t, err, ErrCorrupt)

	// first code must be a literal
	_, err = Decode(bytes.NewReader(stream([]int{300})), dst)
	assert.ErrorIs(t, err, ErrCorrupt)
}
