// Package clone deep-copies a described variable into memory it owns.
package clone

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/mempage"
	"github.com/rawbytedev/shapekit/pkg/shape"
)

// Cloner copies variables. The zero value uses heap.Default, the default
// page size and scan limit, and a no-op logger.
type Cloner struct {
	Heap     heap.Allocator
	PageSize uint32
	Logger   *zap.SugaredLogger
	// MaxScan bounds zero-terminated runs and strings, in elements.
	MaxScan uint32
}

func (c Cloner) logger() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

func (c Cloner) maxScan() uint32 {
	if c.MaxScan == 0 {
		return shape.DefaultMaxScan
	}
	return c.MaxScan
}

// Clone copies the variable at ptr. Fixed shapes are copied as one block
// into a small-object holder. Anything reached through a pointer, header
// or string is copied into pages, and the result is described by its
// physical shape: every indirection becomes a const pointer (p) or a
// const vector header (v, m) into the pages.
func (c Cloner) Clone(vd shape.VariableDescriptor, ptr unsafe.Pointer) (anyobject.Object, error) {
	if ptr == nil {
		return nil, fmt.Errorf("%w: nil address", errs.ErrParameters)
	}
	lt := vd.Leaf()
	if !lt.IsBasicType() && !lt.IsStructuredData() && !lt.IsCharString() {
		return nil, fmt.Errorf("%w: cannot clone %s", errs.ErrUnsupportedFeature, lt)
	}
	if vd.IsFixed() && !lt.IsCharString() {
		size, err := vd.ByteSize().Uint32()
		if err != nil {
			return nil, err
		}
		return anyobject.CloneBytes(c.Heap, size, ptr, vd)
	}

	ls := vd.Layers()
	out := physical(ls)
	outLeaf := lt.WithConst(true)
	total, err := shape.LayerSize(out, outLeaf).Uint32()
	if err != nil {
		return nil, err
	}
	w := &walker{
		file:    mempage.NewPageFile(c.PageSize, c.Heap, c.logger()),
		maxScan: c.maxScan(),
		leaf:    lt,
		outLeaf: outLeaf,
	}
	root, err := w.file.WriteReserveAtomicAligned(total, mempage.MaxAlign)
	if err == nil {
		err = w.value(ls, ptr, root)
	}
	if err == nil {
		err = w.file.CheckAndTrimPage(0)
	}
	if err != nil {
		c.logger().Debugw("clone failed", "shape", vd.ToString(true), "err", err)
		w.file.Clean(0)
		return nil, err
	}
	outShape, err := shape.FromLayers(outLeaf, out)
	if err != nil {
		w.file.Clean(0)
		return nil, err
	}
	return anyobject.NewPageObject(w.file.Steal(), root, outShape)
}

// physical maps layers to the layout a clone produces.
func physical(ls shape.Layers) shape.Layers {
	out := make(shape.Layers, 0, len(ls)+1)
	for i := 0; i < len(ls); i++ {
		l := ls[i]
		switch l.Kind {
		case shape.LayerArray:
			out = append(out, l)
		case shape.LayerPointer:
			out = append(out, shape.Pointer(true))
		case shape.LayerFlatArray:
			out = append(out, shape.Pointer(true), shape.Array(l.Size))
		case shape.LayerMatrix:
			out = append(out, shape.Matrix(true))
		default:
			out = append(out, shape.Vector(true))
		}
	}
	return out
}

type walker struct {
	file    *mempage.PageFile
	maxScan uint32
	leaf    leaf.Type
	outLeaf leaf.Type
}

// block reserves room for n elements of the physical shape out and returns
// its address, or nil when n is 0. Blocks may hold headers and pointers,
// so they start on a MaxAlign boundary even after string characters.
func (w *walker) block(out shape.Layers, n uint64) (unsafe.Pointer, error) {
	size, err := shape.LayerSize(out, w.outLeaf).MulN(n).Uint32()
	if err != nil || size == 0 {
		return nil, err
	}
	return w.file.WriteReserveAtomicAligned(size, mempage.MaxAlign)
}

// elements copies n consecutive values described by ls from src into dst.
func (w *walker) elements(ls shape.Layers, src, dst unsafe.Pointer, n uint32) error {
	if n == 0 {
		return nil
	}
	if ls.IsFixed() && !w.leaf.IsCharString() {
		size, err := shape.LayerSize(ls, w.leaf).MulN(uint64(n)).Uint32()
		if err != nil {
			return err
		}
		common.Copy(dst, src, size)
		return nil
	}
	in, err := shape.LayerSize(ls, w.leaf).Uintptr()
	if err != nil {
		return err
	}
	out, err := shape.LayerSize(physical(ls), w.outLeaf).Uintptr()
	if err != nil {
		return err
	}
	for i := uintptr(0); i < uintptr(n); i++ {
		if err := w.value(ls, unsafe.Add(src, i*in), unsafe.Add(dst, i*out)); err != nil {
			return err
		}
	}
	return nil
}

// value copies the single value described by ls at src into dst, which
// has room for its physical form.
func (w *walker) value(ls shape.Layers, src, dst unsafe.Pointer) error {
	if len(ls) == 0 {
		if !w.leaf.IsCharString() {
			common.Copy(dst, src, w.leaf.StorageSize())
			return nil
		}
		return w.str(src, dst)
	}
	l, rest := ls[0], ls[1:]
	switch l.Kind {
	case shape.LayerArray:
		return w.elements(rest, src, dst, l.Size)
	case shape.LayerPointer, shape.LayerFlatArray:
		count := uint32(1)
		if l.Kind == shape.LayerFlatArray {
			count = l.Size
		} else if len(rest) > 0 && rest[0].Kind == shape.LayerArray {
			count, rest = rest[0].Size, rest[1:]
		}
		target := common.ReadPointer(src)
		if target == nil {
			common.WritePointer(dst, nil)
			return nil
		}
		data, err := w.block(physical(rest), uint64(count))
		if err != nil {
			return err
		}
		common.WritePointer(dst, data)
		return w.elements(rest, target, data, count)
	case shape.LayerVector:
		h := (*shape.VectorHeader)(src)
		if h.Len < 0 || uint64(h.Len) > uint64(^uint32(0)) || (h.Data == nil && h.Len > 0) {
			return fmt.Errorf("%w: bad vector header", errs.ErrException)
		}
		return w.vector(rest, h.Data, uint32(h.Len), dst)
	case shape.LayerZeroTerm:
		target := common.ReadPointer(src)
		if target == nil {
			return fmt.Errorf("%w: nil zero-terminated run", errs.ErrException)
		}
		n, err := w.scan(l, rest, target)
		if err != nil {
			return err
		}
		return w.vector(rest, target, n, dst)
	case shape.LayerMatrix:
		h := (*shape.MatrixHeader)(src)
		n := uint64(h.Rows) * uint64(h.Cols)
		if n > uint64(^uint32(0)) || (h.Data == nil && n > 0) {
			return fmt.Errorf("%w: bad matrix header", errs.ErrException)
		}
		data, err := w.block(physical(rest), n)
		if err != nil {
			return err
		}
		*(*shape.MatrixHeader)(dst) = shape.MatrixHeader{Data: data, Rows: h.Rows, Cols: h.Cols}
		return w.elements(rest, h.Data, data, uint32(n))
	}
	return fmt.Errorf("%w: unknown layer %c", errs.ErrInternalSetup, l.Code())
}

func (w *walker) vector(rest shape.Layers, src unsafe.Pointer, n uint32, dst unsafe.Pointer) error {
	data, err := w.block(physical(rest), uint64(n))
	if err != nil {
		return err
	}
	*(*shape.VectorHeader)(dst) = shape.VectorHeader{Data: data, Len: int(n), Cap: int(n)}
	return w.elements(rest, src, data, n)
}

func (w *walker) scan(l shape.Layer, rest shape.Layers, p unsafe.Pointer) (uint32, error) {
	esz, err := shape.LayerSize(rest, w.leaf).Uint32()
	if err != nil {
		return 0, err
	}
	limit := w.maxScan
	if l.Term == shape.TermStatic && l.Size > 0 && l.Size < limit {
		limit = l.Size
	}
	n, ok := common.ZeroRun(p, esz, limit)
	if !ok {
		return 0, fmt.Errorf("%w: no terminator within %d elements", errs.ErrOutOfRange, limit)
	}
	return n, nil
}

func (w *walker) str(src, dst unsafe.Pointer) error {
	s := common.ReadPointer(src)
	if s == nil {
		common.WritePointer(dst, nil)
		return nil
	}
	n, ok := common.StrLen(s, w.maxScan)
	if !ok {
		return fmt.Errorf("%w: string longer than %d bytes", errs.ErrOutOfRange, w.maxScan)
	}
	chars, err := w.file.WriteReserveAtomic(n + 1)
	if err != nil {
		return err
	}
	common.Copy(chars, s, n+1)
	common.WritePointer(dst, chars)
	return nil
}
