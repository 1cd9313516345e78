package convert

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
)

type class uint8

const (
	classSigned class = iota
	classUnsigned
	classFloat
)

// number is the widest form of a fixed-width leaf value.
type number struct {
	class class
	i     int64
	u     uint64
	f     float64
}

func classOf(k leaf.Kind) class {
	switch k {
	case leaf.KindInt8, leaf.KindInt16, leaf.KindInt32, leaf.KindInt64:
		return classSigned
	case leaf.KindFloat32, leaf.KindFloat64:
		return classFloat
	default:
		return classUnsigned
	}
}

func load(p unsafe.Pointer, k leaf.Kind) number {
	size := common.FixedSize(k)
	bits := common.LoadBits(p, size)
	switch k {
	case leaf.KindInt8:
		return number{class: classSigned, i: int64(int8(bits))}
	case leaf.KindInt16:
		return number{class: classSigned, i: int64(int16(bits))}
	case leaf.KindInt32:
		return number{class: classSigned, i: int64(int32(bits))}
	case leaf.KindInt64:
		return number{class: classSigned, i: int64(bits)}
	case leaf.KindFloat32:
		return number{class: classFloat, f: float64(math.Float32frombits(uint32(bits)))}
	case leaf.KindFloat64:
		return number{class: classFloat, f: math.Float64frombits(bits)}
	case leaf.KindBool:
		if bits != 0 {
			bits = 1
		}
		return number{class: classUnsigned, u: bits}
	default:
		return number{class: classUnsigned, u: bits}
	}
}

func signedBounds(size int) (int64, int64) {
	shift := uint(size*8 - 1)
	return -1 << shift, 1<<shift - 1
}

func unsignedMax(size int) uint64 {
	if size == 8 {
		return math.MaxUint64
	}
	return 1<<(uint(size)*8) - 1
}

// encode produces the raw bits of n as kind k, failing when n does not fit.
func encode(n number, k leaf.Kind) (uint64, error) {
	size := common.FixedSize(k)
	outOfRange := func() error {
		return fmt.Errorf("%w: value does not fit %s", errs.ErrOutOfRange, k)
	}
	switch classOf(k) {
	case classFloat:
		var f float64
		switch n.class {
		case classSigned:
			f = float64(n.i)
		case classUnsigned:
			f = float64(n.u)
		default:
			f = n.f
		}
		if k == leaf.KindFloat32 {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return 0, outOfRange()
			}
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	case classSigned:
		lo, hi := signedBounds(size)
		var v int64
		switch n.class {
		case classSigned:
			v = n.i
		case classUnsigned:
			if n.u > uint64(hi) {
				return 0, outOfRange()
			}
			v = int64(n.u)
		default:
			if math.IsNaN(n.f) || n.f < float64(lo) || n.f >= -float64(lo) {
				return 0, outOfRange()
			}
			v = int64(n.f)
		}
		if v < lo || v > hi {
			return 0, outOfRange()
		}
		return uint64(v), nil
	default:
		hi := unsignedMax(size)
		var v uint64
		switch n.class {
		case classSigned:
			if n.i < 0 {
				return 0, outOfRange()
			}
			v = uint64(n.i)
		case classUnsigned:
			v = n.u
		default:
			if math.IsNaN(n.f) || n.f <= -1 || n.f >= float64(hi)+1 {
				return 0, outOfRange()
			}
			v = uint64(n.f)
		}
		if k == leaf.KindBool {
			if v != 0 {
				v = 1
			}
			return v, nil
		}
		if v > hi {
			return 0, outOfRange()
		}
		return v, nil
	}
}

func numericOperator(dst, src leaf.Kind, compare bool) OperatorFunc {
	dsz := uintptr(common.FixedSize(dst))
	ssz := uintptr(common.FixedSize(src))
	return func(d, s unsafe.Pointer, n uint32) error {
		for i := uintptr(0); i < uintptr(n); i++ {
			sp := unsafe.Add(s, i*ssz)
			dp := unsafe.Add(d, i*dsz)
			bits, err := encode(load(sp, src), dst)
			if err != nil {
				return err
			}
			if compare {
				if common.LoadBits(dp, int(dsz)) != bits {
					return fmt.Errorf("%w: element %d", errs.ErrComparisonFailure, i)
				}
				continue
			}
			common.StoreBits(dp, int(dsz), bits)
		}
		return nil
	}
}
