package ics

import "errors"

// Errors returned by the package. Call sites wrap these with context;
// test with errors.Is.
//
// ErrFileSizeConflict and ErrOutputNotFilled are non-fatal annotations:
// the operation that returns them still delivers a valid buffer, and
// the caller decides whether the condition matters.
var (
	ErrFileSizeConflict = errors.New("ics: data size does not match file size")
	ErrOutputNotFilled  = errors.New("ics: output buffer not completely filled")

	ErrBitsVsSizeConflict = errors.New("ics: buffer length is not a multiple of the sample size")
	ErrBlockNotAllowed    = errors.New("ics: compressed stream does not allow a second block read")
	ErrBufferTooSmall     = errors.New("ics: buffer too small")
	ErrCompression        = errors.New("ics: compression problem")
	ErrCorruptedStream    = errors.New("ics: corrupted compressed stream")
	ErrDecompression      = errors.New("ics: decompression problem")
	ErrDuplicateData      = errors.New("ics: image data already bound")
	ErrEmptyField         = errors.New("ics: empty header field")
	ErrEndOfHistory       = errors.New("ics: end of history")
	ErrEndOfStream        = errors.New("ics: unexpected end of stream")
	ErrFailTempMoveIcs    = errors.New("ics: failed to move header file aside")
	ErrFailCopyIds        = errors.New("ics: failed to copy image data")
	ErrFileCloseIcs       = errors.New("ics: failed to close header file")
	ErrFileClosePixels    = errors.New("ics: failed to close image data file")
	ErrFileOpenHeader     = errors.New("ics: failed to open header file")
	ErrFileOpenPixels     = errors.New("ics: failed to open image data file")
	ErrFileRead           = errors.New("ics: failed to read file")
	ErrFileWriteHeader    = errors.New("ics: failed to write header file")
	ErrFileWritePixels    = errors.New("ics: failed to write image data file")
	ErrIllegalParameter   = errors.New("ics: illegal parameter")
	ErrIllegalROI         = errors.New("ics: region of interest does not fit the image")
	ErrIllegalToken       = errors.New("ics: illegal token")
	ErrLineOverflow       = errors.New("ics: header line longer than the line limit")
	ErrMissingBits        = errors.New("ics: bits pseudo-axis missing from layout order")
	ErrMissingCategory    = errors.New("ics: category token missing")
	ErrMissingSubcategory = errors.New("ics: subcategory token missing")
	ErrMissingSensorSub   = errors.New("ics: sensor subsubcategory token missing")
	ErrMissingLayout      = errors.New("ics: layout not set")
	ErrMissingScilType    = errors.New("ics: SCIL_TYPE value missing")
	ErrNotIcsFile         = errors.New("ics: not an ICS file")
	ErrNotValidAction     = errors.New("ics: action not valid for the open mode")
	ErrTooManyChannels    = errors.New("ics: too many sensor channels")
	ErrTooManyDims        = errors.New("ics: too many dimensions")
	ErrUnknownCompression = errors.New("ics: unknown compression scheme")
	ErrUnknownDataType    = errors.New("ics: unknown data type")
	ErrUnknownSensorState = errors.New("ics: unknown sensor state")
	ErrWrongZlibVersion   = errors.New("ics: deflate library mismatch")
)
