package shape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

type LayerKind uint8

const (
	// LayerArray is A<n>: n elements stored in place.
	LayerArray LayerKind = iota + 1
	// LayerPointer is P/p: one level of indirection.
	LayerPointer
	// LayerFlatArray is F<n>/f<n>: a pointer to n elements.
	LayerFlatArray
	// LayerVector is V/v: a VectorHeader.
	LayerVector
	// LayerMatrix is M/m: a MatrixHeader.
	LayerMatrix
	// LayerZeroTerm is Z/z, D/d, S/s: a pointer to a zero-terminated run.
	LayerZeroTerm
)

// TermKind tells zero-terminated runs apart.
type TermKind uint8

const (
	TermPlain   TermKind = iota // Z
	TermDynamic                 // D
	TermStatic                  // S, Size is an optional capacity
)

// Layer is one level of container nesting.
type Layer struct {
	Kind  LayerKind
	Const bool
	Term  TermKind
	Size  uint32
}

func Array(n uint32) Layer { return Layer{Kind: LayerArray, Size: n} }
func Pointer(konst bool) Layer { return Layer{Kind: LayerPointer, Const: konst} }
func FlatArray(n uint32, konst bool) Layer {
	return Layer{Kind: LayerFlatArray, Const: konst, Size: n}
}
func Vector(konst bool) Layer { return Layer{Kind: LayerVector, Const: konst} }
func Matrix(konst bool) Layer { return Layer{Kind: LayerMatrix, Const: konst} }
func ZeroTerm(term TermKind, konst bool, capacity uint32) Layer {
	return Layer{Kind: LayerZeroTerm, Const: konst, Term: term, Size: capacity}
}

// Code is the single letter of the layer.
func (l Layer) Code() byte {
	var c byte
	switch l.Kind {
	case LayerArray:
		return 'A'
	case LayerPointer:
		c = 'P'
	case LayerFlatArray:
		c = 'F'
	case LayerVector:
		c = 'V'
	case LayerMatrix:
		c = 'M'
	case LayerZeroTerm:
		c = [...]byte{'Z', 'D', 'S'}[l.Term]
	default:
		return '?'
	}
	if l.Const {
		c += 'a' - 'A'
	}
	return c
}

// IsDynamic reports layers whose element count is read from memory.
func (l Layer) IsDynamic() bool {
	return l.Kind == LayerVector || l.Kind == LayerMatrix || l.Kind == LayerZeroTerm
}

func (l Layer) String() string {
	switch {
	case l.Kind == LayerArray, l.Kind == LayerFlatArray:
		return string(l.Code()) + strconv.FormatUint(uint64(l.Size), 10)
	case l.Kind == LayerZeroTerm && l.Term == TermStatic && l.Size > 0:
		return string(l.Code()) + strconv.FormatUint(uint64(l.Size), 10)
	default:
		return string(l.Code())
	}
}

// Layers lists layers outermost first.
type Layers []Layer

// String renders the modifier string; no layers renders as "".
func (ls Layers) String() string {
	var b strings.Builder
	for _, l := range ls {
		b.WriteString(l.String())
	}
	return b.String()
}

// Clone returns a private copy.
func (ls Layers) Clone() Layers {
	if ls == nil {
		return nil
	}
	return append(Layers(nil), ls...)
}

// IsFixed reports whether every layer is an in-place array.
func (ls Layers) IsFixed() bool {
	for _, l := range ls {
		if l.Kind != LayerArray {
			return false
		}
	}
	return true
}

// ParseLayers reads a modifier string. A trailing O is accepted.
func ParseLayers(s string) (Layers, error) {
	var out Layers
	for i := 0; i < len(s); {
		c := s[i]
		i++
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		digits := s[i:j]
		i = j
		var l Layer
		switch c {
		case 'O':
			if i != len(s) || digits != "" {
				return nil, fmt.Errorf("%w: O must end modifier string %q", errs.ErrInternalSetup, s)
			}
			return out, nil
		case 'A':
			l = Layer{Kind: LayerArray}
		case 'P', 'p':
			l = Layer{Kind: LayerPointer, Const: c == 'p'}
		case 'F', 'f':
			l = Layer{Kind: LayerFlatArray, Const: c == 'f'}
		case 'V', 'v':
			l = Layer{Kind: LayerVector, Const: c == 'v'}
		case 'M', 'm':
			l = Layer{Kind: LayerMatrix, Const: c == 'm'}
		case 'Z', 'z':
			l = Layer{Kind: LayerZeroTerm, Const: c == 'z', Term: TermPlain}
		case 'D', 'd':
			l = Layer{Kind: LayerZeroTerm, Const: c == 'd', Term: TermDynamic}
		case 'S', 's':
			l = Layer{Kind: LayerZeroTerm, Const: c == 's', Term: TermStatic}
		default:
			return nil, fmt.Errorf("%w: unknown layer code %q in %q", errs.ErrInternalSetup, c, s)
		}
		sized := l.Kind == LayerArray || l.Kind == LayerFlatArray
		switch {
		case sized && digits == "":
			return nil, fmt.Errorf("%w: layer %c needs a size in %q", errs.ErrInternalSetup, c, s)
		case !sized && digits != "" && !(l.Kind == LayerZeroTerm && l.Term == TermStatic):
			return nil, fmt.Errorf("%w: layer %c takes no size in %q", errs.ErrInternalSetup, c, s)
		case digits != "":
			n, err := strconv.ParseUint(digits, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: layer size %q: %v", errs.ErrOutOfRange, digits, err)
			}
			if digits[0] == '0' && len(digits) > 1 {
				return nil, fmt.Errorf("%w: layer size %q has leading zeros", errs.ErrInternalSetup, digits)
			}
			if l.Kind == LayerZeroTerm && n == 0 {
				return nil, fmt.Errorf("%w: zero capacity in %q", errs.ErrInternalSetup, s)
			}
			l.Size = uint32(n)
		}
		out = append(out, l)
	}
	return out, nil
}
