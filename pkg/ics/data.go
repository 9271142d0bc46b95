package ics

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/jpfielding/ics.go/pkg/compress/gzipframe"
	"github.com/jpfielding/ics.go/pkg/compress/lzw"
)

// blockState is one streaming read session over the pixel payload.
type blockState struct {
	f           *os.File
	compression Compression
	dataStart   int64 // byte offset of the payload within f
	gz          *gzipframe.Reader
	lzwRead     bool  // compress(1) streams allow a single pass
	pos         int64 // uncompressed bytes consumed so far
}

// openBlockState locates and opens the pixel payload for reading.
func (img *Image) openBlockState() error {
	if img.blk != nil {
		return nil
	}
	var (
		path   string
		comp   = img.compression
		offset int64
		err    error
	)
	if img.version == 1 {
		path, comp, err = findPixelFile(img.filename, img.compression)
		if err != nil {
			return err
		}
	} else {
		path = img.srcFile
		offset = img.srcOffset
		if path == "" {
			path = img.filename
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(img.filename), path)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileOpenPixels, path, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", ErrFileRead, err)
		}
	}
	bs := &blockState{f: f, compression: comp, dataStart: offset}
	if comp == CompressionGzip {
		gz, err := gzipframe.NewReader(f)
		if err != nil {
			f.Close()
			return mapGzipErr(err)
		}
		bs.gz = gz
	}
	img.blk = bs
	return nil
}

func (img *Image) closeBlockState() error {
	if img.blk == nil {
		return nil
	}
	err := img.blk.f.Close()
	img.blk = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileClosePixels, err)
	}
	return nil
}

// resetBlockState discards any session in progress so whole-image
// operations always start at the head of the payload.
func (img *Image) resetBlockState() error {
	if err := img.closeBlockState(); err != nil {
		return err
	}
	return img.openBlockState()
}

func mapGzipErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gzipframe.ErrChecksum), errors.Is(err, gzipframe.ErrLength),
		errors.Is(err, gzipframe.ErrHeader):
		return fmt.Errorf("%w: %v", ErrCorruptedStream, err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %v", ErrEndOfStream, err)
	default:
		return fmt.Errorf("%w: %v", ErrDecompression, err)
	}
}

// readBlock fills buf with the next payload bytes in file order, with
// no byte-order correction. This is the primitive under every read op.
func (bs *blockState) readBlock(buf []byte) error {
	switch bs.compression {
	case CompressionUncompressed:
		n, err := readRaw(bs.f, buf)
		bs.pos += int64(n)
		if err == io.ErrUnexpectedEOF {
			return ErrEndOfStream
		}
		return err
	case CompressionGzip:
		n, err := io.ReadFull(bs.gz, buf)
		bs.pos += int64(n)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrEndOfStream
		}
		return mapGzipErr(err)
	case CompressionCompress:
		if bs.lzwRead {
			return ErrBlockNotAllowed
		}
		bs.lzwRead = true
		n, err := lzw.Decode(bs.f, buf)
		bs.pos += int64(n)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return ErrEndOfStream
		case errors.Is(err, lzw.ErrMagic), errors.Is(err, lzw.ErrCorrupt):
			return fmt.Errorf("%w: %v", ErrCorruptedStream, err)
		default:
			return fmt.Errorf("%w: %v", ErrDecompression, err)
		}
	}
	return ErrUnknownCompression
}

// skipBlock advances (or, where the codec allows, rewinds) the session
// by n uncompressed bytes.
func (bs *blockState) skipBlock(n int64) error {
	switch bs.compression {
	case CompressionUncompressed:
		if _, err := bs.f.Seek(n, io.SeekCurrent); err != nil {
			return fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		bs.pos += n
		return nil
	case CompressionGzip:
		if n < 0 {
			// DEFLATE cannot rewind: reopen the frame and discard
			// forward to the target
			target := bs.pos + n
			if target < 0 {
				return fmt.Errorf("%w: seek before payload start", ErrIllegalParameter)
			}
			if _, err := bs.f.Seek(bs.dataStart, io.SeekStart); err != nil {
				return fmt.Errorf("%w: %v", ErrFileRead, err)
			}
			if err := bs.gz.Reset(bs.f); err != nil {
				return mapGzipErr(err)
			}
			bs.pos = 0
			n = target
		}
		if n == 0 {
			return nil
		}
		if err := bs.gz.Skip(n); err != nil {
			if err == io.ErrUnexpectedEOF {
				return ErrEndOfStream
			}
			return mapGzipErr(err)
		}
		bs.pos += n
		return nil
	case CompressionCompress:
		return ErrBlockNotAllowed
	}
	return ErrUnknownCompression
}

func (img *Image) checkReadable() error {
	if img.mode == modeWrite {
		return ErrNotValidAction
	}
	return nil
}

// GetDataBlock reads the next len(buf) payload bytes of the streaming
// session, opening the pixel file on first use. Bytes are delivered in
// file order; whole-image reads apply byte-order correction, block
// reads do not.
func (img *Image) GetDataBlock(buf []byte) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	if err := img.openBlockState(); err != nil {
		return err
	}
	return img.blk.readBlock(buf)
}

// SkipDataBlock advances the streaming session by n payload bytes.
func (img *Image) SkipDataBlock(n int64) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	if err := img.openBlockState(); err != nil {
		return err
	}
	return img.blk.skipBlock(n)
}

// GetData reads the pixel payload from its start into buf, corrected
// to host byte order. Reading into a buffer larger than the image
// yields the non-fatal ErrOutputNotFilled alongside the valid data.
func (img *Image) GetData(buf []byte) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	if err := img.resetBlockState(); err != nil {
		return err
	}
	defer img.closeBlockState()

	want := img.DataSize()
	n := len(buf)
	short := false
	if n > want {
		n = want
		short = true
	}
	if err := img.blk.readBlock(buf[:n]); err != nil {
		return err
	}
	if err := normalize(buf[:n], img.byteOrder, img.imel.DataType); err != nil {
		return err
	}
	if short {
		return ErrOutputNotFilled
	}
	return nil
}

// GetDataWithStrides reads the whole image into a caller-chosen stride
// layout. Strides are in samples, one per axis; negative strides place
// the logical origin at the high end of dst, reversing that axis.
func (img *Image) GetDataWithStrides(dst []byte, strides []int) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	if len(strides) != len(img.dims) {
		return fmt.Errorf("%w: %d strides for %d axes", ErrIllegalParameter, len(strides), len(img.dims))
	}
	_, dims := img.GetLayout()
	span := strideSpan(dims, strides) * img.imel.DataType.Size()
	if len(dst) < span {
		return fmt.Errorf("%w: %d bytes, need %d", ErrBufferTooSmall, len(dst), span)
	}
	if err := img.resetBlockState(); err != nil {
		return err
	}
	defer img.closeBlockState()

	var src io.Reader
	switch img.blk.compression {
	case CompressionGzip:
		src = img.blk.gz
	default:
		src = img.blk.f
	}
	if img.blk.compression == CompressionCompress {
		// one-shot codec: decode everything, then scatter
		whole := make([]byte, img.DataSize())
		if err := img.blk.readBlock(whole); err != nil {
			return err
		}
		return readStrided(bytes.NewReader(whole), dst, dims, strides, img.imel.DataType, img.byteOrder)
	}
	return readStrided(src, dst, dims, strides, img.imel.DataType, img.byteOrder)
}

// strideSpan returns the number of samples the strided region covers.
func strideSpan(dims, strides []int) int {
	span := 1
	for k := range dims {
		s := strides[k]
		if s < 0 {
			s = -s
		}
		span += (dims[k] - 1) * s
	}
	return span
}

// GetROIData extracts a rectangular region with optional per-axis
// subsampling into dst, in contiguous canonical layout. Offset and
// size are in image samples; sampling keeps every n-th sample of the
// region, so axis i delivers ceil(size[i]/sampling[i]) samples. A nil
// sampling vector means every sample.
func (img *Image) GetROIData(offset, size, sampling []int, dst []byte) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	nd := len(img.dims)
	if len(offset) != nd || len(size) != nd {
		return fmt.Errorf("%w: ROI rank %d/%d for %d axes", ErrIllegalROI, len(offset), len(size), nd)
	}
	if sampling == nil {
		sampling = make([]int, nd)
		for i := range sampling {
			sampling[i] = 1
		}
	} else if len(sampling) != nd {
		return fmt.Errorf("%w: sampling rank %d for %d axes", ErrIllegalROI, len(sampling), nd)
	}
	count := make([]int, nd) // samples delivered per axis
	for i := 0; i < nd; i++ {
		if offset[i] < 0 || size[i] < 1 || sampling[i] < 1 ||
			offset[i]+size[i] > img.dims[i].Size {
			return fmt.Errorf("%w: axis %d offset %d size %d sampling %d within %d",
				ErrIllegalROI, i, offset[i], size[i], sampling[i], img.dims[i].Size)
		}
		count[i] = (size[i] + sampling[i] - 1) / sampling[i]
	}

	ss := img.imel.DataType.Size()
	out := 1
	for _, n := range count {
		out *= n
	}
	if len(dst) < out*ss {
		return fmt.Errorf("%w: %d bytes, need %d", ErrBufferTooSmall, len(dst), out*ss)
	}

	if err := img.resetBlockState(); err != nil {
		return err
	}
	defer img.closeBlockState()

	_, dims := img.GetLayout()
	fileStride := canonicalStrides(dims)

	// line length in the file needed to cover one subsampled ROI row
	lineSamples := (count[0]-1)*sampling[0] + 1
	var scratch []byte
	if sampling[0] > 1 {
		scratch = make([]byte, lineSamples*ss)
	}

	idx := make([]int, nd) // delivered-sample odometer over axes >= 1
	dstOff := 0
	for {
		fileSample := offset[0]
		for k := 1; k < nd; k++ {
			fileSample += (offset[k] + idx[k]*sampling[k]) * fileStride[k]
		}
		if err := img.blk.skipBlock(int64(fileSample)*int64(ss) - img.blk.pos); err != nil {
			return err
		}
		if sampling[0] == 1 {
			if err := img.blk.readBlock(dst[dstOff : dstOff+count[0]*ss]); err != nil {
				return err
			}
			dstOff += count[0] * ss
		} else {
			if err := img.blk.readBlock(scratch); err != nil {
				return err
			}
			for i := 0; i < count[0]; i++ {
				copy(dst[dstOff:dstOff+ss], scratch[i*sampling[0]*ss:])
				dstOff += ss
			}
		}

		k := 1
		for ; k < nd; k++ {
			idx[k]++
			if idx[k] < count[k] {
				break
			}
			idx[k] = 0
		}
		if k == nd {
			break
		}
	}

	if err := normalize(dst[:out*ss], img.byteOrder, img.imel.DataType); err != nil {
		return err
	}
	if len(dst) > out*ss {
		return ErrOutputNotFilled
	}
	return nil
}

// GetPreviewData extracts the 2-D plane at the given index along the
// axes beyond the first two and maps it linearly to 8-bit grey values.
// Complex samples contribute their magnitude.
func (img *Image) GetPreviewData(dst []byte, plane int) error {
	if err := img.checkReadable(); err != nil {
		return err
	}
	if len(img.dims) == 0 {
		return ErrMissingLayout
	}
	w := img.dims[0].Size
	h := 1
	if len(img.dims) > 1 {
		h = img.dims[1].Size
	}
	planes := 1
	for _, ax := range img.dims[2:] {
		planes *= ax.Size
	}
	if plane < 0 || plane >= planes {
		return fmt.Errorf("%w: plane %d of %d", ErrIllegalParameter, plane, planes)
	}
	if len(dst) < w*h {
		return fmt.Errorf("%w: %d bytes, need %d", ErrBufferTooSmall, len(dst), w*h)
	}

	ss := img.imel.DataType.Size()
	raw := make([]byte, w*h*ss)
	if err := img.resetBlockState(); err != nil {
		return err
	}
	defer img.closeBlockState()
	if err := img.blk.skipBlock(int64(plane) * int64(len(raw))); err != nil {
		return err
	}
	if err := img.blk.readBlock(raw); err != nil {
		return err
	}
	if err := normalize(raw, img.byteOrder, img.imel.DataType); err != nil {
		return err
	}

	values := decodeSamples(raw, img.imel.DataType)
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scale := 0.0
	if max > min {
		scale = 255 / (max - min)
	}
	for i, v := range values {
		dst[i] = byte(math.Round((v - min) * scale))
	}
	return nil
}

// decodeSamples converts a host-order sample buffer to float64 values;
// complex samples yield their magnitude.
func decodeSamples(buf []byte, dt DataType) []float64 {
	n := len(buf) / dt.Size()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := buf[i*dt.Size():]
		switch dt {
		case TypeUInt8:
			out[i] = float64(s[0])
		case TypeSInt8:
			out[i] = float64(int8(s[0]))
		case TypeUInt16:
			out[i] = float64(binary.NativeEndian.Uint16(s))
		case TypeSInt16:
			out[i] = float64(int16(binary.NativeEndian.Uint16(s)))
		case TypeUInt32:
			out[i] = float64(binary.NativeEndian.Uint32(s))
		case TypeSInt32:
			out[i] = float64(int32(binary.NativeEndian.Uint32(s)))
		case TypeReal32:
			out[i] = float64(math.Float32frombits(binary.NativeEndian.Uint32(s)))
		case TypeReal64:
			out[i] = math.Float64frombits(binary.NativeEndian.Uint64(s))
		case TypeComplex32:
			re := float64(math.Float32frombits(binary.NativeEndian.Uint32(s)))
			im := float64(math.Float32frombits(binary.NativeEndian.Uint32(s[4:])))
			out[i] = math.Hypot(re, im)
		case TypeComplex64:
			re := math.Float64frombits(binary.NativeEndian.Uint64(s))
			im := math.Float64frombits(binary.NativeEndian.Uint64(s[8:]))
			out[i] = math.Hypot(re, im)
		}
	}
	return out
}
