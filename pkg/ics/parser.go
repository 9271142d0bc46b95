package ics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jpfielding/ics.go/pkg/ics/token"
)

// Header lexing and parsing. The first two bytes of the file announce
// the field and line separators used by the rest of the header; every
// following line is FS-delimited fields terminated by LS.

// lineReader consumes header bytes one at a time, tracking the byte
// offset so a v2 header can record where the pixel payload starts.
type lineReader struct {
	br     *bufio.Reader
	offset int64
	fs, ls byte
	crlf   bool // tolerate a CR before each LF
}

func (lr *lineReader) readByte() (byte, error) {
	b, err := lr.br.ReadByte()
	if err == nil {
		lr.offset++
	}
	return b, err
}

// readLine returns the fields of the next header line.
func (lr *lineReader) readLine() ([]string, error) {
	var line []byte
	for {
		b, err := lr.readByte()
		if err == io.EOF && len(line) > 0 {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == lr.ls {
			break
		}
		line = append(line, b)
	}
	if lr.crlf && len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return strings.Split(string(line), string(lr.fs)), nil
}

// layoutAccum collects header vectors that can arrive in any order and
// are only consistent as a whole once the header ends.
type layoutAccum struct {
	nParams int
	order   []string
	sizes   []int
	origins []float64
	scales  []float64
	units   []string
	labels  []string
	coord   string
	format  sampleFormat
	signed  bool
	sigBits int
}

// parseHeader populates the image from its header file.
func (img *Image) parseHeader(r io.Reader) error {
	lr := &lineReader{br: bufio.NewReader(r)}

	// the writer announces its two separators as the first two bytes
	var sep [2]byte
	if _, err := io.ReadFull(lr.br, sep[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrNotIcsFile, err)
	}
	lr.offset = 2
	lr.fs, lr.ls = sep[0], sep[1]
	if lr.fs == lr.ls {
		return fmt.Errorf("%w: identical separators", ErrNotIcsFile)
	}
	if lr.ls == '\r' {
		// text-mode writers emit CRLF; the LF is the real terminator
		if peek, err := lr.br.Peek(1); err == nil && peek[0] == '\n' {
			lr.ls = '\n'
			lr.crlf = true
			lr.readByte() // the LF completing the announcement
		}
	}

	fields, err := lr.readLine()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotIcsFile, err)
	}
	if len(fields) < 2 || fields[0] != "ics_version" {
		return fmt.Errorf("%w: missing ics_version line", ErrNotIcsFile)
	}
	switch fields[1] {
	case "1.0":
		img.version = 1
	case "2.0":
		img.version = 2
	default:
		return fmt.Errorf("%w: version %q", ErrNotIcsFile, fields[1])
	}

	fields, err = lr.readLine()
	if err != nil || len(fields) < 1 || fields[0] != "filename" {
		return fmt.Errorf("%w: missing filename line", ErrNotIcsFile)
	}

	acc := &layoutAccum{format: formatInteger}
	warn := func(err error, fields []string) {
		// the parse carries on so one stray line does not lose the header
		slog.Warn("skipping unparseable ICS header line",
			slog.String("file", img.filename),
			slog.String("line", strings.Join(fields, " ")),
			slog.Any("error", err))
	}

	ended := false
	for !ended {
		fields, err = lr.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		cat, ok := token.ParseCategory(fields[0])
		if !ok {
			warn(fmt.Errorf("%w: %q", ErrMissingCategory, fields[0]), fields)
			continue
		}
		if cat == token.CatEnd {
			if img.version == 2 && img.srcFile == "" {
				img.srcOffset = lr.offset
			}
			ended = true
			break
		}
		if len(fields) < 2 {
			warn(fmt.Errorf("%w: bare %q line", ErrMissingSubcategory, fields[0]), fields)
			continue
		}
		if err := img.parseLine(cat, fields[1], fields[2:], acc); err != nil {
			if isFatalParseErr(err) {
				return err
			}
			warn(err, fields)
		}
	}

	return img.finishLayout(acc)
}

// isFatalParseErr separates hard failures from tolerated grammar slips.
func isFatalParseErr(err error) bool {
	for _, fatal := range []error{ErrUnknownDataType, ErrFileRead, ErrNotIcsFile, ErrTooManyDims, ErrTooManyChannels} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}

func (img *Image) parseLine(cat token.Category, sub string, values []string, acc *layoutAccum) error {
	switch cat {
	case token.CatSource:
		return img.parseSource(sub, values)
	case token.CatLayout:
		return parseLayout(sub, values, acc)
	case token.CatRepresentation:
		return img.parseRepresentation(sub, values, acc)
	case token.CatParameter:
		return parseParameter(sub, values, acc)
	case token.CatHistory:
		// sub is the key; a single-field line is a bare value
		if len(values) == 0 {
			img.historyLog().addRaw(sub)
		} else {
			img.historyLog().addRaw(sub + "\t" + strings.Join(values, "\t"))
		}
		return nil
	case token.CatSensor:
		return img.parseSensor(sub, values)
	}
	return fmt.Errorf("%w: %q", ErrMissingCategory, cat)
}

func (img *Image) parseSource(sub string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: source %s", ErrEmptyField, sub)
	}
	switch t, _ := token.ParseSub(sub); t {
	case token.SubFile:
		img.srcFile = values[0]
	case token.SubOffset:
		off, err := strconv.ParseInt(values[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: source offset %q", ErrIllegalParameter, values[0])
		}
		img.srcOffset = off
	default:
		return fmt.Errorf("%w: source %q", ErrMissingSubcategory, sub)
	}
	return nil
}

func parseLayout(sub string, values []string, acc *layoutAccum) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: layout %s", ErrEmptyField, sub)
	}
	switch t, _ := token.ParseSub(sub); t {
	case token.SubParameters:
		n, err := strconv.Atoi(values[0])
		if err != nil {
			return fmt.Errorf("%w: layout parameters %q", ErrIllegalParameter, values[0])
		}
		if n < 2 || n > MaxDimensions+1 {
			return fmt.Errorf("%w: %d parameters", ErrTooManyDims, n)
		}
		acc.nParams = n
	case token.SubOrder:
		acc.order = values
	case token.SubSizes:
		acc.sizes = acc.sizes[:0]
		for _, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("%w: layout size %q", ErrIllegalParameter, v)
			}
			acc.sizes = append(acc.sizes, n)
		}
	case token.SubCoordinates:
		acc.coord = values[0]
	case token.SubSignificantBits:
		n, err := strconv.Atoi(values[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: significant_bits %q", ErrIllegalParameter, values[0])
		}
		acc.sigBits = n
	default:
		return fmt.Errorf("%w: layout %q", ErrMissingSubcategory, sub)
	}
	return nil
}

func (img *Image) parseRepresentation(sub string, values []string, acc *layoutAccum) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: representation %s", ErrEmptyField, sub)
	}
	switch t, _ := token.ParseSub(sub); t {
	case token.SubFormat:
		switch v, _ := token.ParseValue(values[0]); v {
		case token.ValInteger:
			acc.format = formatInteger
		case token.ValReal:
			acc.format = formatReal
		case token.ValComplex:
			acc.format = formatComplex
		default:
			return fmt.Errorf("%w: format %q", ErrUnknownDataType, values[0])
		}
	case token.SubSign:
		switch v, _ := token.ParseValue(values[0]); v {
		case token.ValSigned:
			acc.signed = true
		case token.ValUnsigned:
			acc.signed = false
		default:
			return fmt.Errorf("%w: sign %q", ErrUnknownDataType, values[0])
		}
	case token.SubCompression:
		switch v, _ := token.ParseValue(values[0]); v {
		case token.ValUncompressed:
			img.compression = CompressionUncompressed
		case token.ValCompress:
			// v2 files never carried real LZW payloads; historic
			// writers used "compress" to mean gzip
			if img.version == 2 {
				img.compression = CompressionGzip
			} else {
				img.compression = CompressionCompress
			}
		case token.ValGzip:
			img.compression = CompressionGzip
		default:
			return fmt.Errorf("%w: %q", ErrUnknownCompression, values[0])
		}
	case token.SubByteOrder:
		img.byteOrder = img.byteOrder[:0]
		for _, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("%w: byte_order %q", ErrIllegalParameter, v)
			}
			img.byteOrder = append(img.byteOrder, n)
		}
	case token.SubScilType:
		img.scilType = values[0]
	default:
		return fmt.Errorf("%w: representation %q", ErrMissingSubcategory, sub)
	}
	return nil
}

func parseParameter(sub string, values []string, acc *layoutAccum) error {
	parseFloats := func() ([]float64, error) {
		out := make([]float64, 0, len(values))
		for _, v := range values {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter value %q", ErrIllegalParameter, v)
			}
			out = append(out, f)
		}
		return out, nil
	}
	var err error
	switch t, _ := token.ParseSub(sub); t {
	case token.SubOrigin:
		acc.origins, err = parseFloats()
	case token.SubScale:
		acc.scales, err = parseFloats()
	case token.SubUnits:
		acc.units = values
	case token.SubLabels:
		acc.labels = values
	default:
		return fmt.Errorf("%w: parameter %q", ErrMissingSubcategory, sub)
	}
	return err
}

// parseSensor handles sensor type/model lines and the s_params /
// s_states blocks, including the indexed TOKEN[i] form used by
// 3-vector parameters.
func (img *Image) parseSensor(sub string, values []string) error {
	s := img.Sensor()
	switch t, _ := token.ParseSub(sub); t {
	case token.SubSensorType:
		for i, v := range values {
			if err := s.SetType(i, v); err != nil {
				return err
			}
		}
		return nil
	case token.SubSensorModel:
		s.SetModel(strings.Join(values, " "))
		return nil
	case token.SubSensorParams:
		if len(values) < 1 {
			return fmt.Errorf("%w: sensor s_params", ErrMissingSensorSub)
		}
		return s.parseParamLine(values[0], values[1:])
	case token.SubSensorStates:
		if len(values) < 2 {
			return fmt.Errorf("%w: sensor s_states", ErrMissingSensorSub)
		}
		name, _ := splitIndexed(values[0])
		p, ok := token.ParseSubSub(name)
		if !ok {
			return fmt.Errorf("%w: sensor state %q", ErrIllegalToken, values[0])
		}
		state, err := parseSensorState(values[1])
		if err != nil {
			return err
		}
		return s.SetParameterState(p, state)
	}
	return fmt.Errorf("%w: sensor %q", ErrMissingSubcategory, sub)
}

// splitIndexed splits "Token[2]" into ("Token", 2); a plain token
// yields index -1.
func splitIndexed(s string) (string, int) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return s, -1
	}
	idx, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil {
		return s, -1
	}
	return s[:open], idx
}

func (s *Sensor) parseParamLine(name string, values []string) error {
	base, idx := splitIndexed(name)
	if base == token.SubSubChannels.String() {
		if len(values) < 1 {
			return fmt.Errorf("%w: Channels", ErrEmptyField)
		}
		n, err := strconv.Atoi(values[0])
		if err != nil {
			return fmt.Errorf("%w: Channels %q", ErrIllegalParameter, values[0])
		}
		return s.SetChannels(n)
	}
	p, ok := token.ParseSubSub(base)
	if !ok {
		return fmt.Errorf("%w: sensor parameter %q", ErrIllegalToken, name)
	}
	def, ok := sensorParamDefs[p]
	if !ok {
		return fmt.Errorf("%w: sensor parameter %q", ErrIllegalToken, name)
	}
	state := s.states[p]
	switch def.kind {
	case kindFloat:
		for ch, v := range values {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%w: %s %q", ErrIllegalParameter, name, v)
			}
			if err := s.SetParameter(p, ch, f, state); err != nil {
				return err
			}
		}
	case kindInt:
		for ch, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s %q", ErrIllegalParameter, name, v)
			}
			if err := s.SetParameterInt(p, ch, n, state); err != nil {
				return err
			}
		}
	case kindString:
		for ch, v := range values {
			if err := s.SetParameterString(p, ch, v, state); err != nil {
				return err
			}
		}
	case kindVec3:
		if idx < 0 || idx > 2 {
			return fmt.Errorf("%w: %s needs an [index]", ErrIllegalParameter, name)
		}
		for ch, v := range values {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%w: %s %q", ErrIllegalParameter, name, v)
			}
			vec, _, _ := s.GetParameterVector(p, ch)
			vec[idx] = f
			if err := s.SetParameterVector(p, ch, vec, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// finishLayout cross-checks the accumulated layout vectors and builds
// the axis array and sample description.
func (img *Image) finishLayout(acc *layoutAccum) error {
	if len(acc.order) == 0 || len(acc.sizes) == 0 {
		return fmt.Errorf("%w: no layout order or sizes", ErrMissingLayout)
	}
	if len(acc.order) != len(acc.sizes) {
		return fmt.Errorf("%w: %d order tokens, %d sizes", ErrMissingLayout, len(acc.order), len(acc.sizes))
	}
	if acc.nParams != 0 && acc.nParams != len(acc.order) {
		return fmt.Errorf("%w: parameters %d vs %d axes", ErrMissingLayout, acc.nParams, len(acc.order))
	}

	bitsIdx := -1
	for i, o := range acc.order {
		if o == "bits" {
			bitsIdx = i
			break
		}
	}
	if bitsIdx < 0 {
		return ErrMissingBits
	}

	dt, err := composeDataType(acc.format, acc.signed, acc.sizes[bitsIdx])
	if err != nil {
		return err
	}
	img.imel.DataType = dt
	img.imel.SigBits = acc.sigBits
	if img.imel.SigBits == 0 || img.imel.SigBits > 8*dt.Size() {
		img.imel.SigBits = 8 * dt.Size()
	}
	// imel origin/scale/unit live at the bits pseudo-axis position
	at := func(v []float64, i int, def float64) float64 {
		if i < len(v) {
			return v[i]
		}
		return def
	}
	atS := func(v []string, i int, def string) string {
		if i < len(v) && v[i] != "" {
			return v[i]
		}
		return def
	}
	img.imel.Origin = at(acc.origins, bitsIdx, 0)
	img.imel.Scale = at(acc.scales, bitsIdx, 1)
	img.imel.Unit = atS(acc.units, bitsIdx, "relative")
	if acc.coord != "" {
		img.coord = acc.coord
	}

	img.dims = img.dims[:0]
	for i, o := range acc.order {
		if i == bitsIdx {
			continue
		}
		img.dims = append(img.dims, Axis{
			Size:   acc.sizes[i],
			Origin: at(acc.origins, i, 0),
			Scale:  at(acc.scales, i, 1),
			Order:  o,
			Label:  atS(acc.labels, i, ""),
			Unit:   atS(acc.units, i, "undefined"),
		})
	}
	if len(img.dims) > MaxDimensions {
		return fmt.Errorf("%w: %d axes", ErrTooManyDims, len(img.dims))
	}
	return nil
}

// addRaw stores an already-formatted history line during parsing,
// bypassing the separator validation applied to caller input.
func (h *History) addRaw(line string) {
	if len(h.lines) == cap(h.lines) {
		grown := make([]*string, len(h.lines), cap(h.lines)+historyBlock)
		copy(grown, h.lines)
		h.lines = grown
	}
	h.lines = append(h.lines, &line)
	h.count++
}
