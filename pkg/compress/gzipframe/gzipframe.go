// Package gzipframe implements the minimal gzip framing used around
// raw DEFLATE pixel payloads: magic, method, flags, mtime, OS byte,
// DEFLATE body, then a CRC-32 and length-mod-2^32 trailer.
//
// The standard library's gzip package would serve for whole-stream use,
// but the pixel reader needs forward skipping inside the stream and
// frame re-opening without re-reading the header fields, so the frame
// layer is explicit here. The DEFLATE body itself comes from
// github.com/klauspost/compress/flate.
package gzipframe

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

const (
	magic0 = 0x1f
	magic1 = 0x8b

	methodDeflate = 8
	osUnknown     = 255

	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

var (
	// ErrHeader means the stream does not start with a gzip frame.
	ErrHeader = errors.New("gzipframe: invalid gzip header")
	// ErrChecksum means the payload does not match the CRC-32 trailer.
	ErrChecksum = errors.New("gzipframe: CRC-32 mismatch")
	// ErrLength means the payload does not match the length trailer.
	ErrLength = errors.New("gzipframe: uncompressed length mismatch")
)

// Writer compresses a pixel payload into a single gzip frame.
type Writer struct {
	w           io.Writer
	fw          *flate.Writer
	crc         uint32
	size        uint32
	wroteHeader bool
}

// NewWriter returns a frame writer at the given DEFLATE level (0-9).
func NewWriter(w io.Writer, level int) (*Writer, error) {
	fw, err := flate.NewWriter(w, level)
	if err != nil {
		return nil, fmt.Errorf("gzipframe: %w", err)
	}
	return &Writer{w: w, fw: fw}, nil
}

func (z *Writer) writeHeader() error {
	// mtime, XFL zero; OS byte 255 (unknown)
	hdr := [10]byte{magic0, magic1, methodDeflate, 0, 0, 0, 0, 0, 0, osUnknown}
	_, err := z.w.Write(hdr[:])
	return err
}

// Write compresses p into the frame body.
func (z *Writer) Write(p []byte) (int, error) {
	if !z.wroteHeader {
		if err := z.writeHeader(); err != nil {
			return 0, err
		}
		z.wroteHeader = true
	}
	n, err := z.fw.Write(p)
	z.crc = crc32.Update(z.crc, crc32.IEEETable, p[:n])
	z.size += uint32(n)
	return n, err
}

// Close flushes the DEFLATE body and writes the trailer. It does not
// close the underlying writer.
func (z *Writer) Close() error {
	if !z.wroteHeader {
		// empty payload still gets a complete frame
		if err := z.writeHeader(); err != nil {
			return err
		}
		z.wroteHeader = true
	}
	if err := z.fw.Close(); err != nil {
		return err
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], z.crc)
	binary.LittleEndian.PutUint32(trailer[4:8], z.size)
	_, err := z.w.Write(trailer[:])
	return err
}

// Reader streams the payload of a gzip frame, verifying the trailer
// when the DEFLATE body ends.
type Reader struct {
	br   *bufio.Reader
	fr   io.ReadCloser
	crc  uint32
	size uint32
	done bool
}

// NewReader parses the frame header and prepares to stream the body.
func NewReader(r io.Reader) (*Reader, error) {
	z := &Reader{}
	if err := z.Reset(r); err != nil {
		return nil, err
	}
	return z, nil
}

// Reset re-points the reader at a new frame start, reusing buffers.
func (z *Reader) Reset(r io.Reader) error {
	if z.br == nil {
		z.br = bufio.NewReader(r)
	} else {
		z.br.Reset(r)
	}
	z.crc = 0
	z.size = 0
	z.done = false
	if err := z.readHeader(); err != nil {
		return err
	}
	if z.fr == nil {
		z.fr = flate.NewReader(z.br)
	} else {
		if err := z.fr.(flate.Resetter).Reset(z.br, nil); err != nil {
			return err
		}
	}
	return nil
}

func (z *Reader) readHeader() error {
	var hdr [10]byte
	if _, err := io.ReadFull(z.br, hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if hdr[0] != magic0 || hdr[1] != magic1 {
		return fmt.Errorf("%w: bad magic %02x %02x", ErrHeader, hdr[0], hdr[1])
	}
	if hdr[2] != methodDeflate {
		return fmt.Errorf("%w: compression method %d", ErrHeader, hdr[2])
	}
	flags := hdr[3]

	if flags&flagExtra != 0 {
		var n [2]byte
		if _, err := io.ReadFull(z.br, n[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrHeader, err)
		}
		extra := int64(binary.LittleEndian.Uint16(n[:]))
		if _, err := io.CopyN(io.Discard, z.br, extra); err != nil {
			return fmt.Errorf("%w: %v", ErrHeader, err)
		}
	}
	for _, f := range []byte{flagName, flagComment} {
		if flags&f == 0 {
			continue
		}
		if _, err := z.br.ReadString(0); err != nil {
			return fmt.Errorf("%w: %v", ErrHeader, err)
		}
	}
	if flags&flagHCRC != 0 {
		var n [2]byte
		if _, err := io.ReadFull(z.br, n[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrHeader, err)
		}
	}
	return nil
}

// Read streams decompressed payload bytes, maintaining the running
// CRC. When the body ends, the trailer is verified before io.EOF is
// surfaced.
func (z *Reader) Read(p []byte) (int, error) {
	if z.done {
		return 0, io.EOF
	}
	n, err := z.fr.Read(p)
	z.crc = crc32.Update(z.crc, crc32.IEEETable, p[:n])
	z.size += uint32(n)
	if err == io.EOF {
		z.done = true
		if terr := z.checkTrailer(); terr != nil {
			return n, terr
		}
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	return n, err
}

func (z *Reader) checkTrailer() error {
	var trailer [8]byte
	if _, err := io.ReadFull(z.br, trailer[:]); err != nil {
		return fmt.Errorf("gzipframe: truncated trailer: %w", err)
	}
	if crc := binary.LittleEndian.Uint32(trailer[0:4]); crc != z.crc {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, z.crc, crc)
	}
	if size := binary.LittleEndian.Uint32(trailer[4:8]); size != z.size {
		return fmt.Errorf("%w: got %d, want %d", ErrLength, z.size, size)
	}
	return nil
}

// Skip discards n payload bytes, keeping the running CRC valid.
// Backward seeks are not possible within a DEFLATE stream; callers
// re-open the frame (Reset) and skip forward instead.
func (z *Reader) Skip(n int64) error {
	skipped, err := io.CopyN(io.Discard, z, n)
	if err == io.EOF && skipped < n {
		return io.ErrUnexpectedEOF
	}
	return err
}
