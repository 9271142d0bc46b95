package ics

import (
	"encoding/binary"
	"fmt"
)

// Byte-order handling. The header declares, per sample byte, which
// canonical (little-endian) byte sits at that file position, as 1-based
// indices. Complex samples declare their real and imaginary halves
// independently, each with its own 1..N/2 run.

// hostIsLittleEndian is computed once from the running machine.
var hostIsLittleEndian = func() bool {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	return b[0] == 1
}()

// canonicalByteOrder returns the little-endian descriptor for a type.
func canonicalByteOrder(dt DataType) []int {
	return orderFor(dt, true)
}

// hostByteOrder returns the descriptor matching this machine's layout.
func hostByteOrder(dt DataType) []int {
	return orderFor(dt, hostIsLittleEndian)
}

func orderFor(dt DataType, little bool) []int {
	width := dt.Size()
	if width == 0 {
		return nil
	}
	half := width
	if dt.IsComplex() {
		half = width / 2
	}
	out := make([]int, width)
	for i := range out {
		pos := i % half
		if little {
			out[i] = pos + 1
		} else {
			out[i] = half - pos
		}
	}
	return out
}

// orderEqual reports whether two descriptors are identical.
func orderEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validByteOrder checks that a descriptor is a permutation of 1..half
// in each half of the sample.
func validByteOrder(order []int, dt DataType) bool {
	if len(order) != dt.Size() {
		return false
	}
	half := len(order)
	if dt.IsComplex() {
		half /= 2
	}
	for g := 0; g < len(order); g += half {
		var seen uint32
		for _, v := range order[g : g+half] {
			if v < 1 || v > half || seen&(1<<uint(v-1)) != 0 {
				return false
			}
			seen |= 1 << uint(v-1)
		}
	}
	return true
}

// normalize permutes each sample of buf from the declared file order
// into host order, in place. A nil declared order means host order.
func normalize(buf []byte, declared []int, dt DataType) error {
	width := dt.Size()
	if width == 0 {
		return ErrUnknownDataType
	}
	if len(buf)%width != 0 {
		return fmt.Errorf("%w: %d bytes, %d-byte samples", ErrBitsVsSizeConflict, len(buf), width)
	}
	if declared == nil {
		return nil
	}
	if !validByteOrder(declared, dt) {
		return fmt.Errorf("%w: byte order %v for %s", ErrIllegalParameter, declared, dt)
	}
	host := hostByteOrder(dt)
	if orderEqual(declared, host) {
		return nil
	}

	// perm[i] = host position of the byte found at file position i
	perm := make([]int, width)
	half := width
	if dt.IsComplex() {
		half /= 2
	}
	for i, want := range declared {
		group := (i / half) * half
		for j := group; j < group+half; j++ {
			if host[j] == want {
				perm[i] = j
				break
			}
		}
	}

	tmp := make([]byte, width)
	for off := 0; off < len(buf); off += width {
		sample := buf[off : off+width]
		for i, j := range perm {
			tmp[j] = sample[i]
		}
		copy(sample, tmp)
	}
	return nil
}

// SetByteOrder overrides the declared byte order of the pixel payload.
// Most callers never need this; the writer records the host order.
func (img *Image) SetByteOrder(order []int) error {
	if img.imel.DataType == TypeUnknown {
		return ErrMissingLayout
	}
	if !validByteOrder(order, img.imel.DataType) {
		return fmt.Errorf("%w: byte order %v", ErrIllegalParameter, order)
	}
	img.byteOrder = append([]int(nil), order...)
	return nil
}

// GetByteOrder returns the declared byte order, or the host order when
// none was declared.
func (img *Image) GetByteOrder() []int {
	if img.byteOrder != nil {
		return append([]int(nil), img.byteOrder...)
	}
	return hostByteOrder(img.imel.DataType)
}
