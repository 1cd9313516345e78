package shape

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
)

// Redirect consumes the outermost layer: it moves p to element index of
// that layer and returns the descriptor of the element. vd is unchanged.
func (vd VariableDescriptor) Redirect(p unsafe.Pointer, index uint32) (unsafe.Pointer, VariableDescriptor, error) {
	if p == nil {
		return nil, vd, fmt.Errorf("%w: nil address", errs.ErrException)
	}
	if len(vd.layers) == 0 {
		return vd.redirectLeaf(p, index)
	}
	l := vd.layers[0]
	rest := vd.layers[1:].Clone()
	elem := LayerSize(rest, vd.leaf)
	out := VariableDescriptor{leaf: vd.leaf, layers: rest, maxScan: vd.maxScan}

	var base unsafe.Pointer
	var bound uint32
	switch l.Kind {
	case LayerArray:
		base, bound = p, l.Size
	case LayerFlatArray, LayerPointer:
		base = common.ReadPointer(p)
		if base == nil {
			return nil, vd, fmt.Errorf("%w: nil pointer in layer %c", errs.ErrException, l.Code())
		}
		bound = l.Size
		if l.Kind == LayerPointer {
			bound = 1
		}
	case LayerZeroTerm:
		base = common.ReadPointer(p)
		if base == nil {
			return nil, vd, fmt.Errorf("%w: nil zero-terminated run", errs.ErrException)
		}
		d := &dimension{kind: dimZero, term: l.Term, count: l.Size, next: buildDimensions(rest, vd.leaf)}
		n, err := d.scan(base, vd.scanLimit())
		if err != nil {
			return nil, vd, err
		}
		bound = n
	case LayerVector:
		data, n, err := readVector(p)
		if err != nil {
			return nil, vd, err
		}
		base, bound = data, n
	case LayerMatrix:
		data, rows, cols, err := readMatrix(p)
		if err != nil {
			return nil, vd, err
		}
		if index >= rows {
			return nil, vd, fmt.Errorf("%w: row %d of %d", errs.ErrOutOfRange, index, rows)
		}
		target, err := offset(data, index, elem.MulN(uint64(cols)))
		if err != nil {
			return nil, vd, err
		}
		out.layers = append(Layers{Array(cols)}, rest...)
		return target, out, nil
	default:
		return nil, vd, fmt.Errorf("%w: unknown layer %c", errs.ErrInternalSetup, l.Code())
	}
	if index >= bound {
		return nil, vd, fmt.Errorf("%w: index %d of %d in layer %c", errs.ErrOutOfRange, index, bound, l.Code())
	}
	target, err := offset(base, index, elem)
	if err != nil {
		return nil, vd, err
	}
	return target, out, nil
}

// redirectLeaf indexes into the characters of a string leaf.
func (vd VariableDescriptor) redirectLeaf(p unsafe.Pointer, index uint32) (unsafe.Pointer, VariableDescriptor, error) {
	if !vd.leaf.IsCharString() {
		return nil, vd, fmt.Errorf("%w: cannot index into %s", errs.ErrIllegalOperation, vd.leaf)
	}
	chars := common.ReadPointer(p)
	if chars == nil {
		return nil, vd, fmt.Errorf("%w: nil string", errs.ErrException)
	}
	n, ok := common.StrLen(chars, vd.scanLimit())
	if !ok {
		return nil, vd, fmt.Errorf("%w: unterminated string", errs.ErrOutOfRange)
	}
	if index >= n {
		return nil, vd, fmt.Errorf("%w: character %d of %d", errs.ErrOutOfRange, index, n)
	}
	out := VariableDescriptor{leaf: leaf.Char8.WithConst(vd.leaf.IsConst()), maxScan: vd.maxScan}
	return unsafe.Add(chars, index), out, nil
}
