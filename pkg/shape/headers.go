package shape

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
)

// VectorHeader is the in-memory form of a V layer. It has the layout of
// a Go slice header, so a []T is a V layer over T.
type VectorHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

// MatrixHeader is the in-memory form of an M layer; rows are contiguous.
type MatrixHeader struct {
	Data unsafe.Pointer
	Rows uint32
	Cols uint32
}

const (
	VectorHeaderSize = uint32(unsafe.Sizeof(VectorHeader{}))
	MatrixHeaderSize = uint32(unsafe.Sizeof(MatrixHeader{}))
)

// CString is a zero-terminated byte string, the Go face of string leaves.
type CString *byte

// NewCString copies s into a fresh zero-terminated buffer.
func NewCString(s string) CString {
	return CString((*byte)(common.CString(s)))
}

func readVector(p unsafe.Pointer) (unsafe.Pointer, uint32, error) {
	h := (*VectorHeader)(p)
	if h.Len < 0 || uint64(h.Len) > uint64(^uint32(0)) {
		return nil, 0, fmt.Errorf("%w: vector length %d", errs.ErrException, h.Len)
	}
	if h.Data == nil && h.Len > 0 {
		return nil, 0, fmt.Errorf("%w: vector of %d elements has no data", errs.ErrException, h.Len)
	}
	return h.Data, uint32(h.Len), nil
}

func readMatrix(p unsafe.Pointer) (unsafe.Pointer, uint32, uint32, error) {
	h := (*MatrixHeader)(p)
	if h.Data == nil && h.Rows > 0 && h.Cols > 0 {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d matrix has no data", errs.ErrException, h.Rows, h.Cols)
	}
	return h.Data, h.Rows, h.Cols, nil
}

// headerSize is the in-place storage of one element of layer l.
func headerSize(l Layer) uint32 {
	switch l.Kind {
	case LayerVector:
		return VectorHeaderSize
	case LayerMatrix:
		return MatrixHeaderSize
	default:
		return leaf.PointerSize
	}
}
