package shape

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/satsize"
)

type dimKind uint8

const (
	dimData dimKind = iota
	dimArray
	// dimPointer covers P, F<n> and a P followed by A<n>.
	dimPointer
	dimVector
	dimMatrix
	dimZero
)

// dimension is one traversal step, rebuilt from the layers on every walk.
type dimension struct {
	kind  dimKind
	konst bool
	term  TermKind
	count uint32
	leaf  leaf.Type
	next  *dimension
}

// buildDimensions turns layers into a dimension chain ending in the leaf.
// A pointer followed by an array becomes one pointer-to-array step.
func buildDimensions(ls Layers, lt leaf.Type) *dimension {
	tail := &dimension{kind: dimData, leaf: lt}
	var head *dimension
	var last *dimension
	push := func(d *dimension) {
		if last == nil {
			head = d
		} else {
			last.next = d
		}
		last = d
	}
	for i := 0; i < len(ls); i++ {
		l := ls[i]
		d := &dimension{konst: l.Const, count: l.Size, term: l.Term}
		switch l.Kind {
		case LayerArray:
			d.kind = dimArray
		case LayerPointer:
			d.kind = dimPointer
			d.count = 1
			if i+1 < len(ls) && ls[i+1].Kind == LayerArray {
				d.count = ls[i+1].Size
				i++
			}
		case LayerFlatArray:
			d.kind = dimPointer
		case LayerVector:
			d.kind = dimVector
		case LayerMatrix:
			d.kind = dimMatrix
		case LayerZeroTerm:
			d.kind = dimZero
		}
		push(d)
	}
	push(tail)
	return head
}

// elementSize is the in-place size of one element at this step.
func (d *dimension) elementSize() satsize.Size {
	switch d.kind {
	case dimData:
		return satsize.Of(uint64(d.leaf.StorageSize()))
	case dimArray:
		return d.next.elementSize().MulN(uint64(d.count))
	case dimVector:
		return satsize.Of(uint64(VectorHeaderSize))
	case dimMatrix:
		return satsize.Of(uint64(MatrixHeaderSize))
	default:
		return satsize.Of(uint64(leaf.PointerSize))
	}
}

// isFinal reports whether the elements of this step are leaves.
func (d *dimension) isFinal() bool {
	return d.kind == dimData || d.next.kind == dimData
}

func (d *dimension) resizable() bool {
	return !d.konst && (d.kind == dimVector || d.kind == dimMatrix)
}

// span is the result of opening a step at an address: where its elements
// start and how many there are. 2D steps (matrices) have rows > 1 possible.
type span struct {
	data       unsafe.Pointer
	rows, cols uint32
	twoD       bool
}

func (s span) elements() satsize.Size {
	return satsize.Of(uint64(s.rows)).MulN(uint64(s.cols))
}

// open reads the element count of this step from the memory at p.
func (d *dimension) open(p unsafe.Pointer, maxScan uint32) (span, error) {
	switch d.kind {
	case dimData:
		return span{data: p, rows: 1, cols: 1}, nil
	case dimArray:
		return span{data: p, rows: 1, cols: d.count}, nil
	case dimPointer:
		if p == nil {
			return span{}, fmt.Errorf("%w: nil address", errs.ErrException)
		}
		target := common.ReadPointer(p)
		if target == nil {
			return span{rows: 1, cols: 0}, nil
		}
		return span{data: target, rows: 1, cols: d.count}, nil
	case dimVector:
		if p == nil {
			return span{}, fmt.Errorf("%w: nil vector header", errs.ErrException)
		}
		data, n, err := readVector(p)
		return span{data: data, rows: 1, cols: n}, err
	case dimMatrix:
		if p == nil {
			return span{}, fmt.Errorf("%w: nil matrix header", errs.ErrException)
		}
		data, r, c, err := readMatrix(p)
		return span{data: data, rows: r, cols: c, twoD: true}, err
	case dimZero:
		if p == nil {
			return span{}, fmt.Errorf("%w: nil address", errs.ErrException)
		}
		target := common.ReadPointer(p)
		if target == nil {
			return span{}, fmt.Errorf("%w: nil zero-terminated run", errs.ErrException)
		}
		n, err := d.scan(target, maxScan)
		return span{data: target, rows: 1, cols: n}, err
	}
	return span{}, fmt.Errorf("%w: unknown dimension", errs.ErrFatal)
}

// scan counts the elements of a zero-terminated run starting at p.
func (d *dimension) scan(p unsafe.Pointer, maxScan uint32) (uint32, error) {
	esz, err := d.next.elementSize().Uint32()
	if err != nil {
		return 0, err
	}
	limit := maxScan
	if d.term == TermStatic && d.count > 0 && d.count < limit {
		limit = d.count
	}
	n, ok := common.ZeroRun(p, esz, limit)
	if !ok {
		return 0, fmt.Errorf("%w: no terminator within %d elements", errs.ErrOutOfRange, limit)
	}
	return n, nil
}

func offset(p unsafe.Pointer, index uint32, elem satsize.Size) (unsafe.Pointer, error) {
	off, err := elem.MulN(uint64(index)).Uintptr()
	if err != nil {
		return nil, err
	}
	return unsafe.Add(p, off), nil
}
