// Package ics reads and writes the Image Cytometry Standard (ICS)
// microscopy container format.
//
// An ICS image is a plain-text header plus a raw pixel payload. Version
// 1 stores the two in sibling files (NAME.ics + NAME.ids); version 2
// stores the pixels after the header in the same file, or in an
// external file referenced by the header. The pixel payload may be
// uncompressed, wrapped in a minimal gzip frame, or (read-only) in the
// historical compress(1) LZW format.
//
// Basic usage:
//
//	// Write an image
//	img, err := ics.Open("/path/to/file.ics", "w2")
//	if err != nil {
//		log.Fatal(err)
//	}
//	img.SetLayout(ics.TypeUInt16, []int{512, 512})
//	img.SetData(pixels)
//	err = img.Close()
//
//	// Read it back
//	img, err = ics.Open("/path/to/file.ics", "r")
//	buf := make([]byte, img.DataSize())
//	err = img.GetData(buf)
//	err = img.Close()
package ics

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type fileMode int

const (
	modeRead fileMode = iota
	modeWrite
	modeUpdate
)

// Image is one open ICS file. It is not safe for concurrent use;
// distinct Images are independent.
type Image struct {
	mode      fileMode
	version   int  // 1 or 2
	forceName bool // do not mangle the extension on open

	filename  string // resolved header file path
	srcFile   string // v2 external pixel file, empty = same file
	srcOffset int64  // pixel byte offset within srcFile or own file

	dims        []Axis
	imel        Imel
	coord       string
	compression Compression
	compLevel   int
	byteOrder   []int // 1-based byte indices, len == imel size
	scilType    string

	history *History
	sensor  *Sensor

	// caller data binding, held until Close (write modes)
	data        []byte
	dataStrides []int

	blk *blockState // streaming read session, opened on first use
}

// Open opens an ICS image.
//
// The mode string is a free-order concatenation of at most one each of:
//
//	r  read             w  write
//	1  force version 1  2  force version 2 (write only)
//	f  take the path as given, do not resolve extensions
//	l  accepted for compatibility; numeric parsing in Go is
//	   locale-independent so the token has no effect
//
// "r" and "w" together open the file for update: the header is read
// now and rewritten on Close while the pixel payload is preserved.
func Open(path, mode string) (*Image, error) {
	img := &Image{
		version:   2,
		coord:     "video",
		compLevel: 6,
	}

	var read, write, v1, v2 bool
	seen := map[rune]bool{}
	for _, c := range mode {
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate mode token %q", ErrNotValidAction, string(c))
		}
		seen[c] = true
		switch c {
		case 'r':
			read = true
		case 'w':
			write = true
		case '1':
			v1 = true
		case '2':
			v2 = true
		case 'f':
			img.forceName = true
		case 'l':
			// locale toggle, no-op
		default:
			return nil, fmt.Errorf("%w: mode token %q", ErrNotValidAction, string(c))
		}
	}
	if v1 && v2 {
		return nil, fmt.Errorf("%w: both versions requested", ErrNotValidAction)
	}
	if v1 {
		img.version = 1
	}

	switch {
	case read && write:
		img.mode = modeUpdate
	case read:
		img.mode = modeRead
	case write:
		img.mode = modeWrite
	default:
		return nil, fmt.Errorf("%w: mode %q selects neither read nor write", ErrNotValidAction, mode)
	}

	if img.mode == modeWrite {
		img.filename = resolveHeaderName(path, img.forceName)
		return img, nil
	}

	// read and update parse the header now
	name, err := findHeaderFile(path, img.forceName)
	if err != nil {
		return nil, err
	}
	img.filename = name
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileOpenHeader, name, err)
	}
	defer f.Close()
	if err := img.parseHeader(f); err != nil {
		return nil, err
	}
	slog.Debug("parsed ICS header",
		slog.String("file", name),
		slog.Int("version", img.version),
		slog.Int("dims", len(img.dims)),
		slog.String("dtype", img.imel.DataType.String()))
	return img, nil
}

// Close releases the image. In write and update modes it flushes the
// header (and pixel payload) to disk first. Resources are released on
// every path; the first error encountered is the one returned.
func (img *Image) Close() error {
	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}

	switch img.mode {
	case modeRead:
		keep(img.closeBlockState())
	case modeWrite:
		keep(img.flushWrite())
		keep(img.closeBlockState())
	case modeUpdate:
		keep(img.closeBlockState())
		keep(img.flushUpdate())
	}

	img.data = nil
	img.dataStrides = nil
	img.history = nil
	img.sensor = nil
	return first
}

// SetData binds the caller's pixel buffer for writing on Close. The
// buffer must stay unmodified until Close returns. A layout must have
// been declared, and only one buffer may be bound.
func (img *Image) SetData(buf []byte) error {
	return img.SetDataWithStrides(buf, nil)
}

// SetDataWithStrides binds a strided pixel buffer for writing on Close.
// Strides are in samples, one per axis; stride 1 on axis 0 means the
// fastest axis is contiguous. A nil stride vector means contiguous
// canonical layout.
func (img *Image) SetDataWithStrides(buf []byte, strides []int) error {
	if img.mode == modeRead {
		return ErrNotValidAction
	}
	if img.data != nil {
		return ErrDuplicateData
	}
	if len(img.dims) == 0 {
		return ErrMissingLayout
	}
	if strides != nil {
		if len(strides) != len(img.dims) {
			return fmt.Errorf("%w: %d strides for %d axes", ErrIllegalParameter, len(strides), len(img.dims))
		}
	}
	if buf == nil {
		return ErrEmptyField
	}
	img.data = buf
	img.dataStrides = strides
	return nil
}

// historyLog returns the history, creating it on first use.
func (img *Image) historyLog() *History {
	if img.history == nil {
		img.history = NewHistory()
	}
	return img.history
}

// Sensor returns the microscope sensor parameter registry, creating it
// on first use.
func (img *Image) Sensor() *Sensor {
	if img.sensor == nil {
		img.sensor = newSensor()
	}
	return img.sensor
}

// resolveHeaderName maps a user path to the header file path for
// writing. If the user wrote an upper-case .IDS extension, the header
// keeps the casing (.ICS); any other path gets .ics.
func resolveHeaderName(path string, force bool) string {
	if force {
		return path
	}
	ext := extOf(path)
	switch strings.ToLower(ext) {
	case ".ics":
		return path
	case ".ids":
		base := path[:len(path)-len(ext)]
		if ext == ".IDS" {
			return base + ".ICS"
		}
		return base + ".ics"
	}
	return path + ".ics"
}
