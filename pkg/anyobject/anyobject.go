// Package anyobject holds finished values: small ones inline in a fixed
// size class, larger ones in a heap buffer, paged ones with their pages.
package anyobject

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/mempage"
	"github.com/rawbytedev/shapekit/pkg/shape"
)

// Class identifies the holder kind. Inline classes are their byte size.
type Class int

const (
	ClassHeap  Class = 0
	ClassPages Class = -1
)

// Classes lists the inline size classes in increasing order.
var Classes = []Class{4, 8, 16, 24, 32, 40, 48, 56, 64}

// MaxInline is the largest payload held inline.
const MaxInline = 64

// Object owns a value together with the descriptor of its memory.
type Object interface {
	Name() string
	SetName(name string)
	Descriptor() shape.VariableDescriptor
	// Pointer is the address the descriptor applies to.
	Pointer() unsafe.Pointer
	ByteSize() uint64
	IsValid() bool
	Class() Class
	// Release returns the memory to its allocator. The object is invalid
	// afterwards; releasing twice is a no-op.
	Release()
}

type holder struct {
	name string
	vd   shape.VariableDescriptor
}

func newHolder(vd shape.VariableDescriptor) holder {
	return holder{name: uuid.NewString(), vd: vd}
}

func (h *holder) Name() string                         { return h.name }
func (h *holder) SetName(name string)                  { h.name = name }
func (h *holder) Descriptor() shape.VariableDescriptor { return h.vd }

// ---- Inline classes ----

type buffer interface {
	[1]uint32 | [1]uint64 | [2]uint64 | [3]uint64 | [4]uint64 |
		[5]uint64 | [6]uint64 | [7]uint64 | [8]uint64
}

// ObjectT stores up to len(B) bytes inline.
type ObjectT[B buffer] struct {
	holder
	alloc heap.Allocator
	size  uint32
	live  bool
	buf   B
}

func newObjectT[B buffer](h heap.Allocator, size uint32, src unsafe.Pointer, vd shape.VariableDescriptor) (Object, error) {
	o := &ObjectT[B]{holder: newHolder(vd), alloc: h}
	if err := h.Reserve(uint64(unsafe.Sizeof(o.buf))); err != nil {
		return nil, err
	}
	o.size, o.live = size, true
	common.Copy(unsafe.Pointer(&o.buf), src, size)
	return o, nil
}

func (o *ObjectT[B]) Pointer() unsafe.Pointer {
	if !o.live {
		return nil
	}
	return unsafe.Pointer(&o.buf)
}

func (o *ObjectT[B]) ByteSize() uint64 { return uint64(o.size) }
func (o *ObjectT[B]) IsValid() bool    { return o.live && o.vd.IsValid() }
func (o *ObjectT[B]) Class() Class     { return Class(unsafe.Sizeof(o.buf)) }

func (o *ObjectT[B]) Release() {
	if !o.live {
		return
	}
	o.live = false
	o.alloc.Release(uint64(unsafe.Sizeof(o.buf)))
}

// ---- Heap backed ----

// ObjectM owns a separately allocated buffer.
type ObjectM struct {
	holder
	alloc heap.Allocator
	buf   []byte
}

// NewObjectM returns an empty holder; Setup fills it.
func NewObjectM(h heap.Allocator) *ObjectM {
	if h == nil {
		h = heap.Default
	}
	return &ObjectM{holder: newHolder(shape.VariableDescriptor{}), alloc: h}
}

// Setup copies n bytes from src and records vd. On failure the holder is
// left empty and invalid.
func (o *ObjectM) Setup(vd shape.VariableDescriptor, src unsafe.Pointer, n uint32) error {
	o.Release()
	o.vd = shape.VariableDescriptor{}
	if src == nil || n == 0 {
		return fmt.Errorf("%w: nothing to hold", errs.ErrParameters)
	}
	buf, err := heap.Bytes(o.alloc, n)
	if err != nil {
		return err
	}
	common.Copy(unsafe.Pointer(unsafe.SliceData(buf)), src, n)
	o.buf, o.vd = buf, vd
	return nil
}

func (o *ObjectM) Pointer() unsafe.Pointer {
	if o.buf == nil {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(o.buf))
}

func (o *ObjectM) ByteSize() uint64 { return uint64(len(o.buf)) }
func (o *ObjectM) IsValid() bool    { return o.buf != nil && o.vd.IsValid() }
func (o *ObjectM) Class() Class     { return ClassHeap }

func (o *ObjectM) Release() {
	heap.Free(o.alloc, o.buf)
	o.buf = nil
}

// ---- Paged ----

// PageObject owns a page chain; ptr addresses into it.
type PageObject struct {
	holder
	pages *mempage.MemoryPage
	ptr   unsafe.Pointer
}

// NewPageObject takes ownership of pages. ptr must address memory in it.
func NewPageObject(pages *mempage.MemoryPage, ptr unsafe.Pointer, vd shape.VariableDescriptor) (*PageObject, error) {
	if pages == nil || ptr == nil {
		return nil, fmt.Errorf("%w: no pages to hold", errs.ErrParameters)
	}
	if _, err := pages.AddressToIndex(ptr); err != nil {
		return nil, fmt.Errorf("%w: address outside the held pages", errs.ErrParameters)
	}
	return &PageObject{holder: newHolder(vd), pages: pages, ptr: ptr}, nil
}

func (o *PageObject) Pointer() unsafe.Pointer { return o.ptr }

func (o *PageObject) ByteSize() uint64 {
	if o.pages == nil {
		return 0
	}
	return o.pages.TotalSize()
}

func (o *PageObject) IsValid() bool { return o.pages != nil && o.vd.IsValid() }
func (o *PageObject) Class() Class  { return ClassPages }

// NumberOfPages reports how fragmented the value is.
func (o *PageObject) NumberOfPages() uint32 {
	if o.pages == nil {
		return 0
	}
	return o.pages.NumberOfPages()
}

func (o *PageObject) Release() {
	if o.pages == nil {
		return
	}
	o.pages.Clean()
	o.pages, o.ptr = nil, nil
}

// ---- Dispatch ----

// ClassFor is the smallest inline class holding size bytes, or ClassHeap.
func ClassFor(size uint32) Class {
	for _, c := range Classes {
		if uint32(c) >= size {
			return c
		}
	}
	return ClassHeap
}

// CloneBytes copies size bytes from src into the cheapest holder that
// fits and records vd as their shape.
func CloneBytes(h heap.Allocator, size uint32, src unsafe.Pointer, vd shape.VariableDescriptor) (Object, error) {
	if size == 0 || src == nil {
		return nil, fmt.Errorf("%w: nothing to clone", errs.ErrParameters)
	}
	if h == nil {
		h = heap.Default
	}
	switch ClassFor(size) {
	case 4:
		return newObjectT[[1]uint32](h, size, src, vd)
	case 8:
		return newObjectT[[1]uint64](h, size, src, vd)
	case 16:
		return newObjectT[[2]uint64](h, size, src, vd)
	case 24:
		return newObjectT[[3]uint64](h, size, src, vd)
	case 32:
		return newObjectT[[4]uint64](h, size, src, vd)
	case 40:
		return newObjectT[[5]uint64](h, size, src, vd)
	case 48:
		return newObjectT[[6]uint64](h, size, src, vd)
	case 56:
		return newObjectT[[7]uint64](h, size, src, vd)
	case 64:
		return newObjectT[[8]uint64](h, size, src, vd)
	}
	o := NewObjectM(h)
	if err := o.Setup(vd, src, size); err != nil {
		return nil, err
	}
	return o, nil
}
