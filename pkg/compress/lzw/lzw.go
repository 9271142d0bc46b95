// Package lzw decodes the historical compress(1) LZW format found in
// .ids.Z pixel files.
//
// The format is not the GIF/TIFF variant handled by the standard
// library's compress/lzw: the stream opens with the \x1f\x9d magic and
// a flag byte (maximum code width, block-mode bit), codes are packed
// LSB-first, and the encoder emits codes in chunks of eight, padding
// the chunk when the code width changes or the table is cleared. The
// decoder mirrors that chunking, or it desynchronizes from real
// compress(1) output.
//
// The format is decode-only here and not seekable; callers get exactly
// one pass over the stream.
package lzw

import (
	"errors"
	"fmt"
	"io"
)

const (
	magic0 = 0x1f
	magic1 = 0x9d

	bitMask   = 0x1f // low bits of the flag byte: max code width
	blockBit  = 0x80 // flag bit: code 256 clears the table
	maxWidth  = 16
	initWidth = 9
	clearCode = 256
)

var (
	// ErrMagic means the stream is not compress(1) output.
	ErrMagic = errors.New("lzw: bad magic")
	// ErrCorrupt means the code stream references undefined entries.
	ErrCorrupt = errors.New("lzw: corrupted stream")
)

type decoder struct {
	r io.Reader

	// code chunk state: compress(1) writes groups of 8 codes and pads
	// the group on width change, so input is consumed width bytes at
	// a time
	chunk  [maxWidth]byte
	nbits  int // valid bits in chunk
	bitPos int // consumed bits in chunk

	width    int
	maxbits  int
	block    bool
	nextFree int
}

// reload discards the rest of the current chunk and reads the next.
func (d *decoder) reload() error {
	n, err := io.ReadFull(d.r, d.chunk[:d.width])
	if n == 0 {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}
	// a short final chunk is normal at end of stream
	d.nbits = n * 8
	d.bitPos = 0
	return nil
}

// nextCode extracts the next LSB-first code, growing the width (with a
// chunk reload) when the table has outgrown it.
func (d *decoder) nextCode() (int, error) {
	if d.nextFree > (1<<d.width)-1 && d.width < d.maxbits {
		d.width++
		d.bitPos = d.nbits // force reload at the new width
	}
	if d.bitPos+d.width > d.nbits {
		if err := d.reload(); err != nil {
			return 0, err
		}
		if d.width > d.nbits {
			return 0, io.EOF // trailing padding only
		}
	}
	code := 0
	for i := 0; i < d.width; i++ {
		byteIdx := d.bitPos >> 3
		bit := (int(d.chunk[byteIdx]) >> (d.bitPos & 7)) & 1
		code |= bit << i
		d.bitPos++
	}
	return code, nil
}

// Decode reads one compress(1) stream from r into dst. It returns the
// number of bytes produced; a stream that ends before dst is full
// yields io.ErrUnexpectedEOF alongside the partial count.
func Decode(r io.Reader, dst []byte) (int, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMagic, err)
	}
	if hdr[0] != magic0 || hdr[1] != magic1 {
		return 0, fmt.Errorf("%w: %02x %02x", ErrMagic, hdr[0], hdr[1])
	}
	maxbits := int(hdr[2] & bitMask)
	if maxbits > maxWidth || maxbits < initWidth {
		return 0, fmt.Errorf("%w: %d-bit codes", ErrCorrupt, maxbits)
	}

	d := &decoder{
		r:       r,
		width:   initWidth,
		maxbits: maxbits,
		block:   hdr[2]&blockBit != 0,
	}
	firstFree := clearCode
	if d.block {
		firstFree = clearCode + 1
	}
	d.nextFree = firstFree

	prefix := make([]uint16, 1<<maxbits)
	suffix := make([]byte, 1<<maxbits)
	stack := make([]byte, 0, 1<<maxbits)

	written := 0
	emit := func(b byte) bool {
		if written < len(dst) {
			dst[written] = b
			written++
		}
		return written < len(dst)
	}

	oldCode := -1
	var finChar byte

	for written < len(dst) {
		code, err := d.nextCode()
		if err == io.EOF {
			return written, io.ErrUnexpectedEOF
		}
		if err != nil {
			return written, err
		}

		if d.block && code == clearCode {
			d.nextFree = firstFree
			d.width = initWidth
			d.bitPos = d.nbits // encoder pads the chunk on clear
			oldCode = -1
			continue
		}

		if oldCode == -1 {
			if code >= clearCode {
				return written, fmt.Errorf("%w: first code %d", ErrCorrupt, code)
			}
			finChar = byte(code)
			emit(finChar)
			oldCode = code
			continue
		}

		inCode := code
		stack = stack[:0]

		if code >= d.nextFree {
			// KwKwK: the code being defined right now
			if code > d.nextFree {
				return written, fmt.Errorf("%w: code %d beyond table end %d", ErrCorrupt, code, d.nextFree)
			}
			stack = append(stack, finChar)
			code = oldCode
		}
		for code >= clearCode {
			stack = append(stack, suffix[code])
			code = int(prefix[code])
		}
		finChar = byte(code)
		stack = append(stack, finChar)

		for i := len(stack) - 1; i >= 0; i-- {
			if !emit(stack[i]) && i > 0 {
				// output full mid-string: the remainder is excess
				return written, nil
			}
		}

		if d.nextFree < 1<<maxbits {
			prefix[d.nextFree] = uint16(oldCode)
			suffix[d.nextFree] = finChar
			d.nextFree++
		}
		oldCode = inCode
	}
	return written, nil
}
