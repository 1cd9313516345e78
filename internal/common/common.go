package common

import (
	"encoding/binary"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/leaf"
)

// IsFixedKind reports whether k is a fixed-width numeric leaf.
func IsFixedKind(k leaf.Kind) bool {
	switch k {
	case leaf.KindBool, leaf.KindChar8,
		leaf.KindInt8, leaf.KindInt16, leaf.KindInt32, leaf.KindInt64,
		leaf.KindUint8, leaf.KindUint16, leaf.KindUint32, leaf.KindUint64,
		leaf.KindFloat32, leaf.KindFloat64:
		return true
	default:
		return false
	}
}

// FixedSize returns the byte width for fixed-width numeric leaves.
func FixedSize(k leaf.Kind) int {
	switch k {
	case leaf.KindBool, leaf.KindInt8, leaf.KindUint8, leaf.KindChar8:
		return 1
	case leaf.KindInt16, leaf.KindUint16:
		return 2
	case leaf.KindInt32, leaf.KindUint32, leaf.KindFloat32:
		return 4
	case leaf.KindInt64, leaf.KindUint64, leaf.KindFloat64:
		return 8
	default:
		return -1
	}
}

// Bytes views n bytes at p.
func Bytes(p unsafe.Pointer, n uint32) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Copy moves n bytes from src to dst.
func Copy(dst, src unsafe.Pointer, n uint32) {
	copy(Bytes(dst, n), Bytes(src, n))
}

// LoadBits reads a fixed-width value of size bytes at p in host order.
func LoadBits(p unsafe.Pointer, size int) uint64 {
	b := unsafe.Slice((*byte)(p), size)
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(b))
	case 4:
		return uint64(binary.NativeEndian.Uint32(b))
	case 8:
		return binary.NativeEndian.Uint64(b)
	}
	return 0
}

// StoreBits writes the low size bytes of v at p in host order.
func StoreBits(p unsafe.Pointer, size int, v uint64) {
	b := unsafe.Slice((*byte)(p), size)
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(b, v)
	}
}

// ReadPointer loads the pointer stored at p.
func ReadPointer(p unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(p)
}

// WritePointer stores v at p.
func WritePointer(p, v unsafe.Pointer) {
	*(*unsafe.Pointer)(p) = v
}

// IsZero reports whether the n bytes at p are all zero.
func IsZero(p unsafe.Pointer, n uint32) bool {
	for _, c := range Bytes(p, n) {
		if c != 0 {
			return false
		}
	}
	return true
}

// ZeroRun counts elements of elemSize bytes from p up to the first
// all-zero element. It gives up after limit elements.
func ZeroRun(p unsafe.Pointer, elemSize, limit uint32) (uint32, bool) {
	if p == nil || elemSize == 0 {
		return 0, false
	}
	for n := uint32(0); n < limit; n++ {
		if IsZero(unsafe.Add(p, uintptr(n)*uintptr(elemSize)), elemSize) {
			return n, true
		}
	}
	return limit, false
}

// StrLen is ZeroRun over single bytes.
func StrLen(p unsafe.Pointer, limit uint32) (uint32, bool) {
	return ZeroRun(p, 1, limit)
}

// CString copies s into a fresh zero-terminated buffer.
func CString(s string) unsafe.Pointer {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return unsafe.Pointer(&b[0])
}

// GoString reads a zero-terminated string at p.
func GoString(p unsafe.Pointer, limit uint32) string {
	n, _ := StrLen(p, limit)
	return string(Bytes(p, n))
}
