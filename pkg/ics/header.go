package ics

import (
	"fmt"
)

// Format limits. An ICS header stores the sample depth as a pseudo-axis
// in slot 0, so the on-disk axis count is one larger than the spatial
// dimensionality.
const (
	MaxDimensions = 10
	MaxChannels   = 32

	// LineLimit caps any emitted header line, separators included.
	LineLimit = 1024
)

// DataType identifies the sample type of an image element (imel).
type DataType int

const (
	TypeUnknown DataType = iota
	TypeUInt8
	TypeSInt8
	TypeUInt16
	TypeSInt16
	TypeUInt32
	TypeSInt32
	TypeReal32
	TypeReal64
	TypeComplex32 // two 32-bit floats
	TypeComplex64 // two 64-bit floats
)

// Size returns the byte width of one sample.
func (dt DataType) Size() int {
	switch dt {
	case TypeUInt8, TypeSInt8:
		return 1
	case TypeUInt16, TypeSInt16:
		return 2
	case TypeUInt32, TypeSInt32, TypeReal32:
		return 4
	case TypeReal64, TypeComplex32:
		return 8
	case TypeComplex64:
		return 16
	}
	return 0
}

// IsComplex reports whether the sample carries real and imaginary halves.
func (dt DataType) IsComplex() bool {
	return dt == TypeComplex32 || dt == TypeComplex64
}

func (dt DataType) String() string {
	switch dt {
	case TypeUInt8:
		return "uint8"
	case TypeSInt8:
		return "sint8"
	case TypeUInt16:
		return "uint16"
	case TypeSInt16:
		return "sint16"
	case TypeUInt32:
		return "uint32"
	case TypeSInt32:
		return "sint32"
	case TypeReal32:
		return "real32"
	case TypeReal64:
		return "real64"
	case TypeComplex32:
		return "complex32"
	case TypeComplex64:
		return "complex64"
	}
	return "unknown"
}

// sampleFormat is the on-disk decomposition of a DataType into
// (format, sign, bits).
type sampleFormat int

const (
	formatInteger sampleFormat = iota
	formatReal
	formatComplex
)

// decompose splits a DataType into its header representation.
func (dt DataType) decompose() (format sampleFormat, signed bool, bits int) {
	switch dt {
	case TypeUInt8:
		return formatInteger, false, 8
	case TypeSInt8:
		return formatInteger, true, 8
	case TypeUInt16:
		return formatInteger, false, 16
	case TypeSInt16:
		return formatInteger, true, 16
	case TypeUInt32:
		return formatInteger, false, 32
	case TypeSInt32:
		return formatInteger, true, 32
	case TypeReal32:
		return formatReal, true, 32
	case TypeReal64:
		return formatReal, true, 64
	case TypeComplex32:
		return formatComplex, true, 64
	case TypeComplex64:
		return formatComplex, true, 128
	}
	return formatInteger, false, 0
}

// composeDataType rebuilds a DataType from the header representation.
func composeDataType(format sampleFormat, signed bool, bits int) (DataType, error) {
	switch format {
	case formatInteger:
		switch bits {
		case 8:
			if signed {
				return TypeSInt8, nil
			}
			return TypeUInt8, nil
		case 16:
			if signed {
				return TypeSInt16, nil
			}
			return TypeUInt16, nil
		case 32:
			if signed {
				return TypeSInt32, nil
			}
			return TypeUInt32, nil
		}
	case formatReal:
		switch bits {
		case 32:
			return TypeReal32, nil
		case 64:
			return TypeReal64, nil
		}
	case formatComplex:
		switch bits {
		case 64:
			return TypeComplex32, nil
		case 128:
			return TypeComplex64, nil
		}
	}
	return TypeUnknown, fmt.Errorf("%w: format %d, %d bits", ErrUnknownDataType, format, bits)
}

// Compression identifies the pixel payload encoding.
type Compression int

const (
	CompressionUncompressed Compression = iota
	CompressionCompress                 // historical compress(1) LZW, read-only
	CompressionGzip
)

func (c Compression) String() string {
	switch c {
	case CompressionUncompressed:
		return "uncompressed"
	case CompressionCompress:
		return "compress"
	case CompressionGzip:
		return "gzip"
	}
	return "unknown"
}

// Axis describes one spatial dimension of the image.
type Axis struct {
	Size   int
	Origin float64
	Scale  float64
	Order  string // short axis token: "x", "y", "z", "t", ...
	Label  string
	Unit   string
}

// Imel describes one sample of the image.
type Imel struct {
	DataType DataType
	SigBits  int // significant bits, <= 8*DataType.Size()
	Origin   float64
	Scale    float64
	Unit     string
}

// defaultOrderTokens names axes when the caller does not.
var defaultOrderTokens = []string{"x", "y", "z", "t", "probe"}

func defaultOrder(i int) string {
	if i < len(defaultOrderTokens) {
		return defaultOrderTokens[i]
	}
	return fmt.Sprintf("dim_%d", i)
}

// SetLayout declares the sample type and the axis sizes. It resets any
// per-axis metadata to defaults and must be called before SetData.
func (img *Image) SetLayout(dt DataType, dims []int) error {
	if img.mode == modeRead {
		return ErrNotValidAction
	}
	if dt.Size() == 0 {
		return ErrUnknownDataType
	}
	if len(dims) < 1 || len(dims) > MaxDimensions {
		return fmt.Errorf("%w: %d axes", ErrTooManyDims, len(dims))
	}
	img.dims = img.dims[:0]
	for i, n := range dims {
		if n < 1 {
			return fmt.Errorf("%w: axis %d size %d", ErrIllegalParameter, i, n)
		}
		img.dims = append(img.dims, Axis{
			Size:  n,
			Scale: 1,
			Order: defaultOrder(i),
			Unit:  "undefined",
		})
	}
	img.imel.DataType = dt
	img.imel.SigBits = 8 * dt.Size()
	img.imel.Scale = 1
	img.imel.Unit = "relative"
	img.byteOrder = nil // filled from the host at write time
	return nil
}

// GetLayout returns the sample type and the axis sizes.
func (img *Image) GetLayout() (DataType, []int) {
	dims := make([]int, len(img.dims))
	for i, ax := range img.dims {
		dims[i] = ax.Size
	}
	return img.imel.DataType, dims
}

// Dimensions returns the number of spatial axes.
func (img *Image) Dimensions() int { return len(img.dims) }

// DataSize returns the byte size of the full uncompressed pixel payload.
func (img *Image) DataSize() int {
	if img.imel.DataType.Size() == 0 || len(img.dims) == 0 {
		return 0
	}
	n := img.imel.DataType.Size()
	for _, ax := range img.dims {
		n *= ax.Size
	}
	return n
}

// imelCount returns the number of samples in the image.
func (img *Image) imelCount() int {
	if len(img.dims) == 0 {
		return 0
	}
	n := 1
	for _, ax := range img.dims {
		n *= ax.Size
	}
	return n
}

func (img *Image) checkAxis(axis int) error {
	if axis < 0 || axis >= len(img.dims) {
		return fmt.Errorf("%w: axis %d of %d", ErrIllegalParameter, axis, len(img.dims))
	}
	return nil
}

// SetPosition sets the origin and scale of one axis.
func (img *Image) SetPosition(axis int, origin, scale float64) error {
	if err := img.checkAxis(axis); err != nil {
		return err
	}
	img.dims[axis].Origin = origin
	img.dims[axis].Scale = scale
	return nil
}

// GetPosition returns the origin and scale of one axis.
func (img *Image) GetPosition(axis int) (origin, scale float64, err error) {
	if err := img.checkAxis(axis); err != nil {
		return 0, 0, err
	}
	return img.dims[axis].Origin, img.dims[axis].Scale, nil
}

// SetOrder sets the order token and label of one axis.
func (img *Image) SetOrder(axis int, order, label string) error {
	if err := img.checkAxis(axis); err != nil {
		return err
	}
	if order == "" {
		return ErrEmptyField
	}
	img.dims[axis].Order = order
	img.dims[axis].Label = label
	return nil
}

// GetOrder returns the order token and label of one axis.
func (img *Image) GetOrder(axis int) (order, label string, err error) {
	if err := img.checkAxis(axis); err != nil {
		return "", "", err
	}
	return img.dims[axis].Order, img.dims[axis].Label, nil
}

// SetUnit sets the unit of one axis.
func (img *Image) SetUnit(axis int, unit string) error {
	if err := img.checkAxis(axis); err != nil {
		return err
	}
	img.dims[axis].Unit = unit
	return nil
}

// GetUnit returns the unit of one axis.
func (img *Image) GetUnit(axis int) (string, error) {
	if err := img.checkAxis(axis); err != nil {
		return "", err
	}
	return img.dims[axis].Unit, nil
}

// SetCoordinateSystem sets the coordinate system token (default "video").
func (img *Image) SetCoordinateSystem(coord string) error {
	if coord == "" {
		return ErrEmptyField
	}
	img.coord = coord
	return nil
}

// GetCoordinateSystem returns the coordinate system token.
func (img *Image) GetCoordinateSystem() string { return img.coord }

// SetSignificantBits sets the number of significant bits per sample.
func (img *Image) SetSignificantBits(bits int) error {
	if img.imel.DataType == TypeUnknown {
		return ErrMissingLayout
	}
	if bits < 1 || bits > 8*img.imel.DataType.Size() {
		return fmt.Errorf("%w: %d significant bits for %s", ErrIllegalParameter, bits, img.imel.DataType)
	}
	img.imel.SigBits = bits
	return nil
}

// GetSignificantBits returns the number of significant bits per sample.
func (img *Image) GetSignificantBits() int { return img.imel.SigBits }

// SetImelUnits sets the per-sample origin, scale and unit.
func (img *Image) SetImelUnits(origin, scale float64, unit string) {
	img.imel.Origin = origin
	img.imel.Scale = scale
	img.imel.Unit = unit
}

// GetImelUnits returns the per-sample origin, scale and unit.
func (img *Image) GetImelUnits() (origin, scale float64, unit string) {
	return img.imel.Origin, img.imel.Scale, img.imel.Unit
}

// SetScilType sets the optional SCIL_TYPE compatibility string.
func (img *Image) SetScilType(s string) { img.scilType = s }

// GetScilType returns the SCIL_TYPE compatibility string, if any.
func (img *Image) GetScilType() string { return img.scilType }

// SetCompression selects the pixel payload encoding for writing.
// The historical "compress" scheme is write-normalized to gzip; the
// library never produces LZW output.
func (img *Image) SetCompression(c Compression, level int) error {
	switch c {
	case CompressionUncompressed:
		img.compression = c
	case CompressionCompress, CompressionGzip:
		img.compression = CompressionGzip
	default:
		return ErrUnknownCompression
	}
	if level < 0 || level > 9 {
		return fmt.Errorf("%w: compression level %d", ErrIllegalParameter, level)
	}
	img.compLevel = level
	return nil
}

// GetCompression returns the pixel payload encoding and level.
func (img *Image) GetCompression() (Compression, int) {
	return img.compression, img.compLevel
}

// SetSource points a v2 header at pre-existing external pixel data.
// The library then writes only the header.
func (img *Image) SetSource(file string, offset int64) error {
	if img.version != 2 {
		return ErrNotValidAction
	}
	if file == "" {
		return ErrEmptyField
	}
	img.srcFile = file
	img.srcOffset = offset
	return nil
}

// GetSource returns the external pixel data reference of a v2 header.
// The file name is empty when the pixel data follows the header in the
// same file.
func (img *Image) GetSource() (string, int64) {
	return img.srcFile, img.srcOffset
}

// Version returns the on-disk schema version, 1 or 2.
func (img *Image) Version() int { return img.version }

// Filename returns the resolved header file path.
func (img *Image) Filename() string { return img.filename }
