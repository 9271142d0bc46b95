package ics

import (
	"fmt"
	"io"
)

// rawChunk bounds single read/write calls. Some platforms' C runtimes
// historically failed on >2 GiB transfers; 1 GiB keeps every call safe.
const rawChunk = 1 << 30

// writeRaw writes buf in bounded chunks.
func writeRaw(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > rawChunk {
			n = rawChunk
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return fmt.Errorf("%w: %v", ErrFileWritePixels, err)
		}
		buf = buf[n:]
	}
	return nil
}

// readRaw fills buf in bounded chunks. A short read on the final chunk
// is reported as io.ErrUnexpectedEOF with the byte count.
func readRaw(r io.Reader, buf []byte) (int, error) {
	total := 0
	for len(buf) > 0 {
		n := len(buf)
		if n > rawChunk {
			n = rawChunk
		}
		got, err := io.ReadFull(r, buf[:n])
		total += got
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, io.ErrUnexpectedEOF
		}
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		buf = buf[n:]
	}
	return total, nil
}

// canonicalStrides returns the contiguous sample strides of a layout:
// axis 0 fastest.
func canonicalStrides(dims []int) []int {
	strides := make([]int, len(dims))
	acc := 1
	for i, n := range dims {
		strides[i] = acc
		acc *= n
	}
	return strides
}

// forEachRun walks the index space of dims in natural order (axis 0
// fastest) and calls fn once per contiguous run with the run's sample
// offset and length. When strides[0] is 1 the whole fastest axis is
// one run; otherwise every sample is its own run.
//
// Negative strides are allowed: the origin shifts so that every
// computed offset stays inside [0, span).
func forEachRun(dims, strides []int, fn func(sampleOff, runLen int) error) error {
	if len(dims) == 0 {
		return nil
	}
	origin := 0
	for k, s := range strides {
		if s < 0 {
			origin -= (dims[k] - 1) * s
		}
	}
	runLen := 1
	start := 0
	if strides[0] == 1 {
		runLen = dims[0]
		start = 1
	}
	idx := make([]int, len(dims))
	for {
		off := origin
		for k := start; k < len(dims); k++ {
			off += idx[k] * strides[k]
		}
		if err := fn(off, runLen); err != nil {
			return err
		}
		k := start
		for ; k < len(dims); k++ {
			idx[k]++
			if idx[k] < dims[k] {
				break
			}
			idx[k] = 0
		}
		if k == len(dims) {
			return nil
		}
	}
}

// writeStrided writes the bound buffer run by run in natural order.
func writeStrided(w io.Writer, buf []byte, dims, strides []int, sampleSize int) error {
	return forEachRun(dims, strides, func(off, runLen int) error {
		lo := off * sampleSize
		hi := lo + runLen*sampleSize
		if lo < 0 || hi > len(buf) {
			return fmt.Errorf("%w: stride run [%d:%d] outside %d-byte buffer", ErrIllegalParameter, lo, hi, len(buf))
		}
		if _, err := w.Write(buf[lo:hi]); err != nil {
			return fmt.Errorf("%w: %v", ErrFileWritePixels, err)
		}
		return nil
	})
}

// readStrided scatters a sequential pixel stream into a strided buffer
// run by run, normalizing each run's byte order as it lands.
func readStrided(r io.Reader, buf []byte, dims, strides []int, dt DataType, declared []int) error {
	sampleSize := dt.Size()
	return forEachRun(dims, strides, func(off, runLen int) error {
		lo := off * sampleSize
		hi := lo + runLen*sampleSize
		if lo < 0 || hi > len(buf) {
			return fmt.Errorf("%w: stride run [%d:%d] outside %d-byte buffer", ErrIllegalParameter, lo, hi, len(buf))
		}
		if _, err := io.ReadFull(r, buf[lo:hi]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return ErrEndOfStream
			}
			return fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		return normalize(buf[lo:hi], declared, dt)
	})
}
