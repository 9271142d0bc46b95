package ics

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/ics.go/pkg/compress/gzipframe"
)

// updateCopyChunk is the transfer size of the update-mode pixel copy.
const updateCopyChunk = 16 * 1024

// copyPixelPayload transfers the preserved payload during a same-file
// update. It is a variable so tests can stand in a failing transfer.
var copyPixelPayload = func(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	return io.CopyBuffer(dst, src, buf)
}

// flushWrite emits header and pixel payload for a write-mode image.
func (img *Image) flushWrite() error {
	if len(img.dims) == 0 || img.imel.DataType == TypeUnknown {
		return ErrMissingLayout
	}
	if img.byteOrder == nil {
		// payload is written in host memory order; declare it
		img.byteOrder = hostByteOrder(img.imel.DataType)
	}

	switch {
	case img.version == 1:
		if img.srcFile != "" {
			return fmt.Errorf("%w: v1 files cannot reference external pixel data", ErrNotValidAction)
		}
		if img.data == nil {
			return fmt.Errorf("%w: no pixel data bound", ErrEmptyField)
		}
		if err := writeFileWith(img.filename, img.writeHeaderFile); err != nil {
			return err
		}
		return writeFileWith(pixelFileName(img.filename), img.writePixelsFile)

	case img.srcFile != "":
		// external pixel data pre-exists; header only
		return writeFileWith(img.filename, img.writeHeaderFile)

	default:
		if img.data == nil {
			return fmt.Errorf("%w: no pixel data bound", ErrEmptyField)
		}
		return writeFileWith(img.filename, func(f *os.File) error {
			if err := img.writeHeader(f); err != nil {
				return err
			}
			off, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
			}
			img.srcOffset = off
			return img.writePixels(f)
		})
	}
}

func writeFileWith(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileOpenHeader, path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileCloseIcs, err)
	}
	return nil
}

// writeHeaderFile and writePixelsFile adapt the io.Writer emitters to
// the writeFileWith signature.
func (img *Image) writeHeaderFile(f *os.File) error { return img.writeHeader(f) }
func (img *Image) writePixelsFile(f *os.File) error { return img.writePixels(f) }

// writePixels encodes the bound caller buffer onto w.
func (img *Image) writePixels(w io.Writer) error {
	_, dims := img.GetLayout()
	ss := img.imel.DataType.Size()
	want := img.DataSize()

	var annotation error
	if img.dataStrides == nil {
		if len(img.data) < want {
			return fmt.Errorf("%w: %d bytes bound, layout needs %d", ErrFileSizeConflict, len(img.data), want)
		}
		if len(img.data) > want {
			annotation = ErrFileSizeConflict
		}
	} else if span := strideSpan(dims, img.dataStrides) * ss; len(img.data) < span {
		return fmt.Errorf("%w: %d bytes bound, strides span %d", ErrBufferTooSmall, len(img.data), span)
	}

	emit := func(dst io.Writer) error {
		if img.dataStrides == nil {
			return writeRaw(dst, img.data[:want])
		}
		return writeStrided(dst, img.data, dims, img.dataStrides, ss)
	}

	switch img.compression {
	case CompressionUncompressed:
		if err := emit(w); err != nil {
			return err
		}
	case CompressionGzip, CompressionCompress:
		gz, err := gzipframe.NewWriter(w, img.compLevel)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCompression, err)
		}
		if err := emit(gz); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrCompression, err)
		}
	default:
		return ErrUnknownCompression
	}
	return annotation
}

// flushUpdate rewrites the header of an update-mode image while
// preserving its pixel payload byte for byte.
func (img *Image) flushUpdate() error {
	if img.version == 2 && img.srcFile == "" {
		return img.updateSameFile()
	}
	// pixels live elsewhere: swap in the new header atomically
	tmp := img.filename + ".tmp"
	if err := writeFileWith(tmp, img.writeHeaderFile); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, img.filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrFailTempMoveIcs, err)
	}
	return nil
}

// updateSameFile handles the delicate case of a v2 file whose pixels
// follow the header: the original is renamed aside, the new header is
// written, and the payload is copied across. At every step either the
// original or the renamed backup exists; any failure restores the
// original before the error is returned.
func (img *Image) updateSameFile() error {
	orig := img.filename
	tmp := orig + ".tmp"
	oldOffset := img.srcOffset

	if err := os.Rename(orig, tmp); err != nil {
		return fmt.Errorf("%w: %v", ErrFailTempMoveIcs, err)
	}

	err := writeFileWith(orig, func(out *os.File) error {
		if err := img.writeHeader(out); err != nil {
			return err
		}
		newOffset, err := out.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
		}
		in, err := os.Open(tmp)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailCopyIds, err)
		}
		defer in.Close()
		if _, err := in.Seek(oldOffset, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", ErrFailCopyIds, err)
		}
		buf := make([]byte, updateCopyChunk)
		if _, err := copyPixelPayload(out, in, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrFailCopyIds, err)
		}
		img.srcOffset = newOffset
		return nil
	})
	if err != nil {
		// roll back: drop the partial rewrite, restore the original
		os.Remove(orig)
		if rerr := os.Rename(tmp, orig); rerr != nil {
			slog.Error("could not restore original ICS file after failed update",
				slog.String("file", orig),
				slog.String("backup", tmp),
				slog.Any("error", rerr))
		}
		return err
	}
	if err := os.Remove(tmp); err != nil {
		return fmt.Errorf("%w: %v", ErrFailTempMoveIcs, err)
	}
	return nil
}
