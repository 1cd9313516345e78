// Package satsize implements a size value that saturates to an
// indeterminate state instead of wrapping.
package satsize

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

// Size is an unsigned size. The zero value is a valid, determinate 0.
type Size struct {
	v       uint64
	invalid bool
}

// Indeterminate is the saturated value.
var Indeterminate = Size{invalid: true}

func Of(v uint64) Size { return Size{v: v} }

func (s Size) IsValid() bool { return !s.invalid }

// Value returns the raw value; meaningless when !IsValid.
func (s Size) Value() uint64 { return s.v }

func (s Size) Add(o Size) Size {
	if s.invalid || o.invalid {
		return Indeterminate
	}
	r, carry := bits.Add64(s.v, o.v, 0)
	if carry != 0 {
		return Indeterminate
	}
	return Size{v: r}
}

func (s Size) Mul(o Size) Size {
	if s.invalid || o.invalid {
		return Indeterminate
	}
	hi, lo := bits.Mul64(s.v, o.v)
	if hi != 0 {
		return Indeterminate
	}
	return Size{v: lo}
}

func (s Size) AddN(n uint64) Size { return s.Add(Of(n)) }
func (s Size) MulN(n uint64) Size { return s.Mul(Of(n)) }

// Uint32 down-converts, failing when the value is indeterminate or too wide.
func (s Size) Uint32() (uint32, error) {
	if s.invalid || s.v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: size %s does not fit 32 bits", errs.ErrOutOfRange, s)
	}
	return uint32(s.v), nil
}

// Uintptr down-converts to a machine word.
func (s Size) Uintptr() (uintptr, error) {
	if s.invalid || s.v > uint64(^uintptr(0)) {
		return 0, fmt.Errorf("%w: size %s does not fit a machine word", errs.ErrOutOfRange, s)
	}
	return uintptr(s.v), nil
}

func (s Size) String() string {
	if s.invalid {
		return "indeterminate"
	}
	return fmt.Sprintf("%d", s.v)
}
