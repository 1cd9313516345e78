package progressive

import (
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/mempage"
	"github.com/rawbytedev/shapekit/pkg/shape"
)

// GetReference hands the finished value over to an object and resets the
// creator. Rows spread over several pages are reached through a table of
// row pointers (A<r>PA<c>); jagged rows through a table of const vector
// headers (A<r>v), which CopyTo must not reallocate; strings through a
// table of string pointers. Tables are written after the data so that the
// data never moves, and start on a mempage.MaxAlign boundary. On failure
// the creator stays in the error state.
func (c *Creator) GetReference() (anyobject.Object, error) {
	if !c.status.Finished() {
		return nil, fmt.Errorf("%w: creator is %s", errs.ErrFatal, c.status)
	}
	var (
		data unsafe.Pointer
		ls   shape.Layers
		err  error
	)
	if c.isString {
		data, ls, err = c.completeStrings()
	} else {
		data, ls, err = c.completeFixed()
	}
	if err != nil {
		return nil, c.fail(err)
	}
	vd, err := shape.FromLayers(c.lt, ls)
	if err != nil {
		return nil, c.fail(err)
	}
	obj, err := c.hold(data, vd)
	if err != nil {
		return nil, c.fail(err)
	}
	c.Reset()
	return obj, nil
}

func (c *Creator) hold(data unsafe.Pointer, vd shape.VariableDescriptor) (anyobject.Object, error) {
	total := c.file.TotalSize()
	if c.file.NumberOfPages() == 1 && data == c.file.FirstAddress() && total <= anyobject.MaxInline {
		return anyobject.CloneBytes(c.opts.Heap, uint32(total), data, vd)
	}
	return anyobject.NewPageObject(c.file.Steal(), data, vd)
}

// arrays renders the dense layers: each dimension only when above 1.
func arrays(dims ...uint32) shape.Layers {
	var ls shape.Layers
	for _, d := range dims {
		if d > 1 {
			ls = append(ls, shape.Array(d))
		}
	}
	return ls
}

func (c *Creator) completeFixed() (unsafe.Pointer, shape.Layers, error) {
	var aux uint32
	switch {
	case c.status == FinishedSM:
		aux = shape.VectorHeaderSize * c.matrixRowSize
	case c.status == FinishedM && c.file.NumberOfPages() > 1:
		aux = leaf.PointerSize * c.matrixRowSize
	}
	var table unsafe.Pointer
	if aux > 0 {
		var err error
		if table, err = c.file.WriteReserveAtomicAligned(aux, mempage.MaxAlign); err != nil {
			return nil, nil, err
		}
	}
	if err := c.file.CheckAndTrimPage(0); err != nil {
		return nil, nil, err
	}
	c.file.SetReadPointer()
	data := c.file.CurrentReadPointer()

	switch c.status {
	case FinishedS:
		return data, nil, nil
	case FinishedV:
		return data, arrays(c.vectorSize), nil
	case FinishedM:
		if table == nil {
			return data, arrays(c.matrixRowSize, c.vectorSize), nil
		}
		rowBytes := c.vectorSize * c.objectSize
		for i := uint32(0); i < c.matrixRowSize; i++ {
			common.WritePointer(unsafe.Add(table, uintptr(i)*uintptr(leaf.PointerSize)), c.file.CurrentReadPointer())
			if err := c.file.ConsumeReadAtomic(rowBytes); err != nil {
				return nil, nil, err
			}
		}
		return table, shape.Layers{shape.Array(c.matrixRowSize), shape.Pointer(false), shape.Array(c.vectorSize)}, nil
	default:
		headers := unsafe.Slice((*shape.VectorHeader)(table), c.matrixRowSize)
		for i, n := range c.rows.lengths {
			if n == 0 {
				headers[i] = shape.VectorHeader{}
				continue
			}
			headers[i] = shape.VectorHeader{Data: c.file.CurrentReadPointer(), Len: int(n), Cap: int(n)}
			if err := c.file.ConsumeReadAtomic(n * c.objectSize); err != nil {
				return nil, nil, err
			}
		}
		return table, shape.Layers{shape.Array(c.matrixRowSize), shape.Vector(true)}, nil
	}
}

func (c *Creator) completeStrings() (unsafe.Pointer, shape.Layers, error) {
	strs, err := c.file.WriteReserveAtomicAligned(c.elements*leaf.PointerSize, mempage.MaxAlign)
	if err != nil {
		return nil, nil, err
	}
	var table unsafe.Pointer
	if c.status == FinishedSM {
		if table, err = c.file.WriteReserveAtomicAligned(shape.VectorHeaderSize*c.matrixRowSize, mempage.MaxAlign); err != nil {
			return nil, nil, err
		}
	}
	if err := c.file.CheckAndTrimPage(0); err != nil {
		return nil, nil, err
	}
	c.file.SetReadPointer()
	ptrs := unsafe.Slice((*unsafe.Pointer)(strs), c.elements)
	for i := range ptrs {
		ptrs[i] = c.file.CurrentReadPointer()
		if err := c.file.ConsumeReadAtomic(0); err != nil {
			return nil, nil, err
		}
	}

	switch c.status {
	case FinishedS:
		return strs, nil, nil
	case FinishedV:
		return strs, arrays(c.vectorSize), nil
	case FinishedM:
		return strs, arrays(c.matrixRowSize, c.vectorSize), nil
	default:
		headers := unsafe.Slice((*shape.VectorHeader)(table), c.matrixRowSize)
		next := 0
		for i, n := range c.rows.lengths {
			headers[i] = shape.VectorHeader{}
			if n > 0 {
				headers[i] = shape.VectorHeader{Data: unsafe.Pointer(&ptrs[next]), Len: int(n), Cap: int(n)}
			}
			next += int(n)
		}
		return table, shape.Layers{shape.Array(c.matrixRowSize), shape.Vector(true)}, nil
	}
}
