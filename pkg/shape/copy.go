package shape

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/convert"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
)

// CopyTo converts the variable at src, described by vd, into the
// variable at dst described by dstShape, one leaf element at a time.
// In compare mode nothing is written and the first difference is
// reported as ErrComparisonFailure. A non-const vector or matrix in the
// destination whose size differs from the source is reallocated; its
// header must be in Go memory, never in engine pages. String leaves are
// copied as pointers: the destination shares the source characters,
// DynamicCString included, and is only valid while the source is.
func (vd VariableDescriptor) CopyTo(src, dst unsafe.Pointer, dstShape VariableDescriptor, reg *convert.Registry, compare bool) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil source or destination", errs.ErrParameters)
	}
	if reg == nil {
		return fmt.Errorf("%w: no conversion registry", errs.ErrParameters)
	}
	op, err := reg.Lookup(dstShape.leaf, vd.leaf, compare)
	if err != nil {
		return err
	}
	c := copier{op: op, compare: compare, srcScan: vd.scanLimit(), dstScan: dstShape.scanLimit()}
	return c.copy(buildDimensions(vd.layers, vd.leaf), src, buildDimensions(dstShape.layers, dstShape.leaf), dst)
}

type copier struct {
	op      convert.Operator
	compare bool
	srcScan uint32
	dstScan uint32
}

// join folds the following fixed array into a 1D step so that it can
// face a 2D step on the other side.
func join(d *dimension, sp span) (*dimension, span, error) {
	if d.kind == dimData || d.next.kind != dimArray {
		return nil, span{}, fmt.Errorf("%w: cannot match a matrix with a %d-element vector", errs.ErrUnsupportedFeature, sp.cols)
	}
	return d.next, span{data: sp.data, rows: sp.cols, cols: d.next.count, twoD: true}, nil
}

func (c *copier) copy(s *dimension, sp unsafe.Pointer, d *dimension, dp unsafe.Pointer) error {
	ss, err := s.open(sp, c.srcScan)
	if err != nil {
		return err
	}
	ds, err := d.open(dp, c.dstScan)
	if err != nil {
		return err
	}
	switch {
	case ss.twoD && !ds.twoD:
		if d, ds, err = join(d, ds); err != nil {
			return err
		}
	case ds.twoD && !ss.twoD:
		if s, ss, err = join(s, ss); err != nil {
			return err
		}
	}
	if ss.rows != ds.rows || ss.cols != ds.cols {
		if c.compare {
			return fmt.Errorf("%w: %dx%d against %dx%d", errs.ErrComparisonFailure, ss.rows, ss.cols, ds.rows, ds.cols)
		}
		if !d.resizable() {
			return fmt.Errorf("%w: cannot copy %dx%d into fixed %dx%d", errs.ErrUnsupportedFeature, ss.rows, ss.cols, ds.rows, ds.cols)
		}
		if ds, err = resize(d, dp, ss); err != nil {
			return err
		}
	}
	if s.isFinal() != d.isFinal() {
		return fmt.Errorf("%w: source and destination nest differently", errs.ErrUnsupportedFeature)
	}
	n, err := ss.elements().Uint32()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if s.isFinal() {
		return c.op.Convert(ds.data, ss.data, n)
	}
	selem, delem := s.next.elementSize(), d.next.elementSize()
	for i := uint32(0); i < n; i++ {
		sAt, err := offset(ss.data, i, selem)
		if err != nil {
			return err
		}
		dAt, err := offset(ds.data, i, delem)
		if err != nil {
			return err
		}
		if err := c.copy(s.next, sAt, d.next, dAt); err != nil {
			return err
		}
	}
	return nil
}

// resize gives the destination header at dp fresh storage for the
// source's element count. The storage is ordinary garbage-collected
// memory, typed so that pointers stored in it keep their targets alive;
// the header must itself live in Go memory for the storage to stay
// reachable.
func resize(d *dimension, dp unsafe.Pointer, want span) (span, error) {
	total, err := want.elements().Mul(d.next.elementSize()).Uint32()
	if err != nil {
		return span{}, err
	}
	data := storage(d.next, total)
	switch d.kind {
	case dimVector:
		if want.twoD {
			return span{}, fmt.Errorf("%w: vector cannot hold %dx%d", errs.ErrUnsupportedFeature, want.rows, want.cols)
		}
		*(*VectorHeader)(dp) = VectorHeader{Data: data, Len: int(want.cols), Cap: int(want.cols)}
		return span{data: data, rows: 1, cols: want.cols}, nil
	default:
		*(*MatrixHeader)(dp) = MatrixHeader{Data: data, Rows: want.rows, Cols: want.cols}
		return span{data: data, rows: want.rows, cols: want.cols, twoD: true}, nil
	}
}

// storage allocates total bytes for elements of d.
func storage(d *dimension, total uint32) unsafe.Pointer {
	if total == 0 {
		return nil
	}
	for d.kind == dimArray {
		d = d.next
	}
	switch {
	case d.kind == dimVector:
		return unsafe.Pointer(unsafe.SliceData(make([]VectorHeader, total/VectorHeaderSize)))
	case d.kind == dimMatrix:
		return unsafe.Pointer(unsafe.SliceData(make([]MatrixHeader, total/MatrixHeaderSize)))
	case d.kind != dimData, d.leaf.IsCharString(), d.leaf.Kind() == leaf.KindPointer:
		return unsafe.Pointer(unsafe.SliceData(make([]unsafe.Pointer, (total+leaf.PointerSize-1)/leaf.PointerSize)))
	default:
		return unsafe.Pointer(unsafe.SliceData(make([]uint64, (total+7)/8)))
	}
}
