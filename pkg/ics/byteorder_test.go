package ics

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderFor(t *testing.T) {
	assert.Equal(t, []int{1, 2}, orderFor(TypeUInt16, true))
	assert.Equal(t, []int{2, 1}, orderFor(TypeUInt16, false))
	assert.Equal(t, []int{1, 2, 3, 4}, orderFor(TypeReal32, true))

	// complex samples declare each half independently
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4}, orderFor(TypeComplex32, true))
	assert.Equal(t, []int{4, 3, 2, 1, 4, 3, 2, 1}, orderFor(TypeComplex32, false))

	assert.Nil(t, orderFor(TypeUnknown, true))
}

func TestValidByteOrder(t *testing.T) {
	assert.True(t, validByteOrder([]int{1, 2}, TypeUInt16))
	assert.True(t, validByteOrder([]int{2, 1}, TypeUInt16))
	assert.False(t, validByteOrder([]int{2, 2}, TypeUInt16))
	assert.False(t, validByteOrder([]int{0, 1}, TypeUInt16))
	assert.False(t, validByteOrder([]int{1, 3}, TypeUInt16))
	assert.False(t, validByteOrder([]int{1}, TypeUInt16))

	// each complex half is its own 1..4 permutation; indices may not
	// span the whole sample
	assert.True(t, validByteOrder([]int{4, 3, 2, 1, 1, 2, 3, 4}, TypeComplex32))
	assert.False(t, validByteOrder([]int{1, 2, 3, 4, 5, 6, 7, 8}, TypeComplex32))
}

func TestNormalizeUint32(t *testing.T) {
	// value 0x01020304 stored big-endian
	buf := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, normalize(buf, []int{4, 3, 2, 1}, TypeUInt32))
	assert.Equal(t, uint32(0x01020304), binary.NativeEndian.Uint32(buf))
}

func TestNormalizeComplexHalves(t *testing.T) {
	// both halves of a complex32 sample stored big-endian
	buf := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
	}
	declared := []int{4, 3, 2, 1, 4, 3, 2, 1}
	require.NoError(t, normalize(buf, declared, TypeComplex32))
	assert.Equal(t, uint32(0x01020304), binary.NativeEndian.Uint32(buf[0:4]))
	assert.Equal(t, uint32(0x05060708), binary.NativeEndian.Uint32(buf[4:8]))
}

func TestNormalizeNoOp(t *testing.T) {
	buf := []byte{1, 2, 3, 4}

	// nil declared order means the data is already in host order
	require.NoError(t, normalize(buf, nil, TypeUInt16))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	require.NoError(t, normalize(buf, hostByteOrder(TypeUInt16), TypeUInt16))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestNormalizeRejects(t *testing.T) {
	assert.ErrorIs(t, normalize(make([]byte, 3), nil, TypeUInt16), ErrBitsVsSizeConflict)
	assert.ErrorIs(t, normalize(make([]byte, 4), []int{2, 2}, TypeUInt16), ErrIllegalParameter)
	assert.ErrorIs(t, normalize(make([]byte, 4), nil, TypeUnknown), ErrUnknownDataType)
}

func TestSetByteOrder(t *testing.T) {
	img := &Image{mode: modeWrite, version: 2}
	assert.ErrorIs(t, img.SetByteOrder([]int{1}), ErrMissingLayout)

	require.NoError(t, img.SetLayout(TypeUInt16, []int{2}))
	assert.ErrorIs(t, img.SetByteOrder([]int{1, 1}), ErrIllegalParameter)
	require.NoError(t, img.SetByteOrder([]int{2, 1}))
	assert.Equal(t, []int{2, 1}, img.GetByteOrder())
}
