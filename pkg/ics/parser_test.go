package ics

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestParseBigEndianPayload(t *testing.T) {
	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\tbe\n" +
		"layout\tparameters\t3\n" +
		"layout\torder\tbits\tx\ty\n" +
		"layout\tsizes\t16\t2\t2\n" +
		"layout\tsignificant_bits\t16\n" +
		"representation\tformat\tinteger\n" +
		"representation\tsign\tunsigned\n" +
		"representation\tcompression\tuncompressed\n" +
		"representation\tbyte_order\t2\t1\n" +
		"parameter\torigin\t0.000000\t0.000000\t0.000000\n" +
		"parameter\tscale\t1.000000\t1.000000\t1.000000\n" +
		"end\n"
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	path := writeFile(t, t.TempDir(), "be.ics", append([]byte(hdr), payload...))

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	dt, dims := img.GetLayout()
	assert.Equal(t, TypeUInt16, dt)
	assert.Equal(t, []int{2, 2}, dims)
	assert.Equal(t, []int{2, 1}, img.GetByteOrder())

	// block reads deliver file order untouched
	blk := make([]byte, 8)
	require.NoError(t, img.GetDataBlock(blk))
	assert.Equal(t, payload, blk)

	// whole-image reads land in host order
	got := make([]byte, 8)
	require.NoError(t, img.GetData(got))
	for i := 0; i < 4; i++ {
		want := uint16(payload[i*2])<<8 | uint16(payload[i*2+1])
		assert.Equal(t, want, binary.NativeEndian.Uint16(got[i*2:]))
	}
}

func TestParseCRLFHeader(t *testing.T) {
	lines := []string{
		"ics_version\t1.0",
		"filename\tdoslike",
		"layout\tparameters\t2",
		"layout\torder\tbits\tx",
		"layout\tsizes\t8\t4",
		"representation\tformat\tinteger",
		"representation\tsign\tunsigned",
		"representation\tcompression\tuncompressed",
		"representation\tbyte_order\t1",
	}
	content := "\t\r\n" + strings.Join(lines, "\r\n") + "\r\n"
	dir := t.TempDir()
	path := writeFile(t, dir, "doslike.ics", []byte(content))
	writeFile(t, dir, "doslike.ids", []byte{1, 2, 3, 4})

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	dt, dims := img.GetLayout()
	assert.Equal(t, TypeUInt8, dt)
	assert.Equal(t, []int{4}, dims)

	got := make([]byte, 4)
	require.NoError(t, img.GetData(got))
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestParseCompressMeansGzipOnV2(t *testing.T) {
	var body bytes.Buffer
	gz := gzip.NewWriter(&body)
	payload := []byte{5, 6, 7, 8}
	_, err := gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\tlegacy\n" +
		"layout\tparameters\t2\n" +
		"layout\torder\tbits\tx\n" +
		"layout\tsizes\t8\t4\n" +
		"representation\tformat\tinteger\n" +
		"representation\tsign\tunsigned\n" +
		"representation\tcompression\tcompress\n" +
		"representation\tbyte_order\t1\n" +
		"end\n"
	path := writeFile(t, t.TempDir(), "legacy.ics", append([]byte(hdr), body.Bytes()...))

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	// v2 headers saying "compress" always carried gzip payloads
	comp, _ := img.GetCompression()
	assert.Equal(t, CompressionGzip, comp)

	got := make([]byte, 4)
	require.NoError(t, img.GetData(got))
	assert.Equal(t, payload, got)
}

func TestParseToleratesUnknownLines(t *testing.T) {
	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\ttolerant\n" +
		"layout\tparameters\t2\n" +
		"layout\torder\tbits\tx\n" +
		"layout\tsizes\t8\t2\n" +
		"vendorblock\tsomething\tcustom\n" + // unknown category
		"layout\tbogus_sub\t1\n" + // unknown subcategory
		"representation\tformat\tinteger\n" +
		"representation\tsign\tunsigned\n" +
		"representation\tcompression\tuncompressed\n" +
		"representation\tbyte_order\t1\n" +
		"end\n"
	path := writeFile(t, t.TempDir(), "tolerant.ics", append([]byte(hdr), 1, 2))

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()
	_, dims := img.GetLayout()
	assert.Equal(t, []int{2}, dims)
}

func TestParseRejectsNonIcsFile(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "junk.ics", []byte("this is not an ics file\n"))
	_, err := Open(path, "r")
	assert.ErrorIs(t, err, ErrNotIcsFile)

	// a header with no bits pseudo-axis is unusable
	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\tnobits\n" +
		"layout\torder\tx\ty\n" +
		"layout\tsizes\t4\t4\n" +
		"representation\tformat\tinteger\n" +
		"end\n"
	path = writeFile(t, dir, "nobits.ics", []byte(hdr))
	_, err = Open(path, "r")
	assert.ErrorIs(t, err, ErrMissingBits)
}

func TestParseSourceOffset(t *testing.T) {
	dir := t.TempDir()
	pixels := []byte{0xde, 0xad, 0xbe, 0xef}
	writeFile(t, dir, "raw.bin", append([]byte{0, 0}, pixels...))

	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\text\n" +
		"source\tfile\traw.bin\n" +
		"source\toffset\t2\n" +
		"layout\tparameters\t2\n" +
		"layout\torder\tbits\tx\n" +
		"layout\tsizes\t8\t4\n" +
		"representation\tformat\tinteger\n" +
		"representation\tsign\tunsigned\n" +
		"representation\tcompression\tuncompressed\n" +
		"representation\tbyte_order\t1\n" +
		"end\n"
	path := writeFile(t, dir, "ext.ics", []byte(hdr))

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	src, off := img.GetSource()
	assert.Equal(t, "raw.bin", src)
	assert.Equal(t, int64(2), off)

	got := make([]byte, 4)
	require.NoError(t, img.GetData(got))
	assert.Equal(t, pixels, got)
}

func TestParseImelUnitsAtBitsSlot(t *testing.T) {
	hdr := "\t\n" +
		"ics_version\t2.0\n" +
		"filename\timel\n" +
		"layout\tparameters\t2\n" +
		"layout\torder\tbits\tx\n" +
		"layout\tsizes\t8\t2\n" +
		"representation\tformat\tinteger\n" +
		"representation\tsign\tunsigned\n" +
		"representation\tcompression\tuncompressed\n" +
		"representation\tbyte_order\t1\n" +
		"parameter\torigin\t10.000000\t0.500000\n" +
		"parameter\tscale\t2.000000\t0.250000\n" +
		"parameter\tunits\tphotons\tmicrometers\n" +
		"end\n"
	path := writeFile(t, t.TempDir(), "imel.ics", append([]byte(hdr), 1, 2))

	img, err := Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	// slot 0 of the parameter vectors belongs to the sample itself
	origin, scale, unit := img.GetImelUnits()
	assert.Equal(t, 10.0, origin)
	assert.Equal(t, 2.0, scale)
	assert.Equal(t, "photons", unit)

	ao, as, err := img.GetPosition(0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, ao)
	assert.Equal(t, 0.25, as)
	au, err := img.GetUnit(0)
	require.NoError(t, err)
	assert.Equal(t, "micrometers", au)
}

func TestFormatNum(t *testing.T) {
	assert.Equal(t, "0.000000", formatNum(0))
	assert.Equal(t, "123.500000", formatNum(123.5))
	assert.Equal(t, "-0.001000", formatNum(-0.001))
	assert.Equal(t, "5.000000e-04", formatNum(0.0005))
	assert.Equal(t, "1.000000e+07", formatNum(1e7))
	assert.Equal(t, "9999999.000000", formatNum(9999999))
}
