package ics

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jpfielding/ics.go/pkg/ics/token"
)

// Header serialization. The writer always uses tab and newline as its
// separators and announces them as the first two bytes of the file.

const (
	fieldSep = "\t"
	lineSep  = "\n"
)

type headerWriter struct {
	bw *bufio.Writer
}

// line emits one FS-joined, LS-terminated header line, refusing lines
// over the format's 1024-byte limit before anything hits the file.
func (hw *headerWriter) line(fields ...string) error {
	joined := strings.Join(fields, fieldSep)
	if len(joined)+len(lineSep) > LineLimit {
		return fmt.Errorf("%w: %d bytes: %.40s...", ErrLineOverflow, len(joined)+1, joined)
	}
	if _, err := hw.bw.WriteString(joined); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
	}
	if _, err := hw.bw.WriteString(lineSep); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
	}
	return nil
}

// formatNum renders a float the way ICS headers expect: fixed point
// for magnitudes in [1e-3, 1e7), exponent notation outside it.
func formatNum(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	if v == 0 || (abs >= 1e-3 && abs < 1e7) {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strconv.FormatFloat(v, 'e', 6, 64)
}

// writeHeader emits the complete header, including the terminating
// "end" line for version 2.
func (img *Image) writeHeader(w io.Writer) error {
	if len(img.dims) == 0 || img.imel.DataType == TypeUnknown {
		return ErrMissingLayout
	}

	hw := &headerWriter{bw: bufio.NewWriter(w)}
	if _, err := hw.bw.WriteString(fieldSep + lineSep); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
	}

	version := "2.0"
	if img.version == 1 {
		version = "1.0"
	}
	if err := hw.line("ics_version", version); err != nil {
		return err
	}
	base := filepath.Base(img.filename)
	base = strings.TrimSuffix(base, extOf(base))
	if err := hw.line("filename", base); err != nil {
		return err
	}
	if img.version == 2 && img.srcFile != "" {
		if err := hw.line(token.CatSource.String(), token.SubFile.String(), img.srcFile); err != nil {
			return err
		}
		if err := hw.line(token.CatSource.String(), token.SubOffset.String(), strconv.FormatInt(img.srcOffset, 10)); err != nil {
			return err
		}
	}

	if err := img.writeLayout(hw); err != nil {
		return err
	}
	if err := img.writeRepresentation(hw); err != nil {
		return err
	}
	if err := img.writeParameters(hw); err != nil {
		return err
	}
	if !img.sensor.empty() {
		if err := img.sensor.write(hw); err != nil {
			return err
		}
	}
	if img.history != nil {
		for _, line := range img.history.lines {
			if line == nil {
				continue
			}
			if err := hw.line(token.CatHistory.String(), *line); err != nil {
				return err
			}
		}
	}
	if img.version == 2 {
		if err := hw.line(token.CatEnd.String()); err != nil {
			return err
		}
	}
	if err := hw.bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteHeader, err)
	}
	return nil
}

func (img *Image) writeLayout(hw *headerWriter) error {
	cat := token.CatLayout.String()
	n := len(img.dims) + 1 // the bits pseudo-axis occupies slot 0

	if err := hw.line(cat, token.SubParameters.String(), strconv.Itoa(n)); err != nil {
		return err
	}
	order := []string{cat, token.SubOrder.String(), "bits"}
	sizes := []string{cat, token.SubSizes.String(), strconv.Itoa(8 * img.imel.DataType.Size())}
	for _, ax := range img.dims {
		order = append(order, ax.Order)
		sizes = append(sizes, strconv.Itoa(ax.Size))
	}
	if err := hw.line(order...); err != nil {
		return err
	}
	if err := hw.line(sizes...); err != nil {
		return err
	}
	if err := hw.line(cat, token.SubCoordinates.String(), img.coord); err != nil {
		return err
	}
	return hw.line(cat, token.SubSignificantBits.String(), strconv.Itoa(img.imel.SigBits))
}

func (img *Image) writeRepresentation(hw *headerWriter) error {
	cat := token.CatRepresentation.String()

	format, signed, _ := img.imel.DataType.decompose()
	var formatTok, signTok token.Value
	switch format {
	case formatInteger:
		formatTok = token.ValInteger
	case formatReal:
		formatTok = token.ValReal
	case formatComplex:
		formatTok = token.ValComplex
	}
	if signed {
		signTok = token.ValSigned
	} else {
		signTok = token.ValUnsigned
	}
	if err := hw.line(cat, token.SubFormat.String(), formatTok.String()); err != nil {
		return err
	}
	if err := hw.line(cat, token.SubSign.String(), signTok.String()); err != nil {
		return err
	}

	comp := token.ValUncompressed
	if img.compression == CompressionGzip || img.compression == CompressionCompress {
		// LZW output is never produced; "compress" normalizes to gzip
		comp = token.ValGzip
	}
	if err := hw.line(cat, token.SubCompression.String(), comp.String()); err != nil {
		return err
	}

	order := img.byteOrder
	if order == nil {
		order = hostByteOrder(img.imel.DataType)
	}
	fields := []string{cat, token.SubByteOrder.String()}
	for _, b := range order {
		fields = append(fields, strconv.Itoa(b))
	}
	if err := hw.line(fields...); err != nil {
		return err
	}
	if img.scilType != "" {
		return hw.line(cat, token.SubScilType.String(), img.scilType)
	}
	return nil
}

func (img *Image) writeParameters(hw *headerWriter) error {
	cat := token.CatParameter.String()

	origins := []string{cat, token.SubOrigin.String(), formatNum(img.imel.Origin)}
	scales := []string{cat, token.SubScale.String(), formatNum(img.imel.Scale)}
	units := []string{cat, token.SubUnits.String(), img.imel.Unit}
	labels := []string{cat, token.SubLabels.String(), "intensity"}
	haveLabels := false
	for _, ax := range img.dims {
		origins = append(origins, formatNum(ax.Origin))
		scales = append(scales, formatNum(ax.Scale))
		units = append(units, ax.Unit)
		labels = append(labels, ax.Label)
		if ax.Label != "" {
			haveLabels = true
		}
	}
	if err := hw.line(origins...); err != nil {
		return err
	}
	if err := hw.line(scales...); err != nil {
		return err
	}
	if err := hw.line(units...); err != nil {
		return err
	}
	if haveLabels {
		return hw.line(labels...)
	}
	return nil
}

// write emits the sensor block: type/model lines, the s_params block
// (vector parameters in indexed TOKEN[i] form), then s_states.
func (s *Sensor) write(hw *headerWriter) error {
	cat := token.CatSensor.String()

	if len(s.types) > 0 {
		fields := append([]string{cat, token.SubSensorType.String()}, s.types...)
		if err := hw.line(fields...); err != nil {
			return err
		}
	}
	if s.model != "" {
		if err := hw.line(cat, token.SubSensorModel.String(), s.model); err != nil {
			return err
		}
	}
	params := token.SubSensorParams.String()
	if s.channels > 0 {
		if err := hw.line(cat, params, token.SubSubChannels.String(), strconv.Itoa(s.channels)); err != nil {
			return err
		}
	}

	var emitted []token.SubSub
	for _, p := range token.SensorParameters() {
		def, ok := sensorParamDefs[p]
		if !ok {
			continue
		}
		var fields []string
		switch def.kind {
		case kindFloat:
			v, ok := s.floats[p]
			if !ok {
				continue
			}
			fields = []string{cat, params, p.String()}
			for _, f := range v {
				fields = append(fields, formatNum(f))
			}
		case kindInt:
			v, ok := s.ints[p]
			if !ok {
				continue
			}
			fields = []string{cat, params, p.String()}
			for _, n := range v {
				fields = append(fields, strconv.Itoa(n))
			}
		case kindString:
			v, ok := s.strs[p]
			if !ok {
				continue
			}
			fields = append([]string{cat, params, p.String()}, v...)
		case kindVec3:
			v, ok := s.vecs[p]
			if !ok {
				continue
			}
			for i := 0; i < 3; i++ {
				fields = []string{cat, params, fmt.Sprintf("%s[%d]", p, i)}
				for _, vec := range v {
					fields = append(fields, formatNum(vec[i]))
				}
				if err := hw.line(fields...); err != nil {
					return err
				}
			}
			emitted = append(emitted, p)
			continue
		}
		if err := hw.line(fields...); err != nil {
			return err
		}
		emitted = append(emitted, p)
	}

	states := token.SubSensorStates.String()
	for _, p := range emitted {
		if err := hw.line(cat, states, p.String(), s.states[p].String()); err != nil {
			return err
		}
	}
	return nil
}
