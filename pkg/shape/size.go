package shape

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/satsize"
)

// GetDimensions walks at most maxDepth steps from p and reports the
// element count of each. Fixed counts come from the layers; the first
// dynamic step is read from memory and any dynamic step below it is
// indeterminate, since its size differs per element. Matrices report
// rows then columns.
func (vd VariableDescriptor) GetDimensions(p unsafe.Pointer, maxDepth int) (leaf.Type, []satsize.Size, error) {
	var sizes []satsize.Size
	readable := p != nil
	dynamicSeen := false
	d := buildDimensions(vd.layers, vd.leaf)
	for depth := 0; d.kind != dimData && depth < maxDepth; depth++ {
		switch d.kind {
		case dimArray:
			sizes = append(sizes, satsize.Of(uint64(d.count)))
		case dimPointer:
			sizes = append(sizes, satsize.Of(uint64(d.count)))
			if readable {
				p = common.ReadPointer(p)
				readable = p != nil
			}
		case dimVector, dimMatrix, dimZero:
			if !readable || dynamicSeen {
				sizes = append(sizes, satsize.Indeterminate)
				if d.kind == dimMatrix {
					sizes = append(sizes, satsize.Indeterminate)
				}
				readable = false
				break
			}
			dynamicSeen = true
			sp, err := d.open(p, vd.scanLimit())
			if err != nil {
				return vd.leaf, sizes, err
			}
			if sp.twoD {
				sizes = append(sizes, satsize.Of(uint64(sp.rows)))
			}
			sizes = append(sizes, satsize.Of(uint64(sp.cols)))
			p = sp.data
			readable = p != nil
		default:
			return vd.leaf, sizes, fmt.Errorf("%w: unrecognised dimension", errs.ErrFatal)
		}
		d = d.next
	}
	return vd.leaf, sizes, nil
}

// GetSize sums the leaf bytes reachable from p (data) and the bytes of
// pointers, headers and terminators that describe them (overhead).
func (vd VariableDescriptor) GetSize(p unsafe.Pointer) (data, overhead satsize.Size, err error) {
	if p == nil {
		return satsize.Size{}, satsize.Size{}, fmt.Errorf("%w: nil address", errs.ErrParameters)
	}
	w := sizeWalk{maxScan: vd.scanLimit()}
	if err := w.walk(buildDimensions(vd.layers, vd.leaf), p, satsize.Of(1)); err != nil {
		return satsize.Size{}, satsize.Size{}, err
	}
	return w.data, w.overhead, nil
}

type sizeWalk struct {
	maxScan  uint32
	data     satsize.Size
	overhead satsize.Size
}

func (w *sizeWalk) walk(d *dimension, p unsafe.Pointer, count satsize.Size) error {
	switch {
	case d.kind == dimArray:
		return w.walk(d.next, p, count.MulN(uint64(d.count)))
	case d.kind == dimData && !d.leaf.IsCharString():
		w.data = w.data.Add(count.MulN(uint64(d.leaf.StorageSize())))
		return nil
	}
	n, err := count.Uint32()
	if err != nil {
		return err
	}
	if d.kind == dimData {
		w.overhead = w.overhead.Add(count.MulN(uint64(leaf.PointerSize)))
		for i := uint32(0); i < n; i++ {
			s := common.ReadPointer(unsafe.Add(p, uintptr(i)*uintptr(leaf.PointerSize)))
			if s == nil {
				continue
			}
			l, ok := common.StrLen(s, w.maxScan)
			if !ok {
				return fmt.Errorf("%w: unterminated string at element %d", errs.ErrOutOfRange, i)
			}
			w.data = w.data.AddN(uint64(l) + 1)
		}
		return nil
	}
	elem := d.elementSize()
	for i := uint32(0); i < n; i++ {
		at, err := offset(p, i, elem)
		if err != nil {
			return err
		}
		w.overhead = w.overhead.Add(elem)
		sp, err := d.open(at, w.maxScan)
		if err != nil {
			return err
		}
		if d.kind == dimZero {
			w.overhead = w.overhead.Add(d.next.elementSize())
		}
		if sp.data == nil {
			continue
		}
		if err := w.walk(d.next, sp.data, sp.elements()); err != nil {
			return err
		}
	}
	return nil
}
