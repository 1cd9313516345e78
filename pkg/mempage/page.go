// Package mempage is a paged allocator: a chain of heap pages that grows
// at its head and can afterwards be walked in write order.
package mempage

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
)

// Page is one allocation unit. Before FlipOrder link points at the
// previously allocated page; after it, at the next one in write order.
type Page struct {
	link *Page
	data []byte
}

func (p *Page) Size() uint32 { return uint32(len(p.data)) }

// Data is the address of the first payload byte, nil for an empty page.
func (p *Page) Data() unsafe.Pointer {
	if cap(p.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(p.data))
}

func (p *Page) contains(addr uintptr) (uint32, bool) {
	start := uintptr(p.Data())
	if start == 0 || addr < start || addr >= start+uintptr(len(p.data)) {
		return 0, false
	}
	return uint32(addr - start), true
}

// MemoryPage exclusively owns a chain of pages. The head is the most
// recently allocated page until FlipOrder is called.
type MemoryPage struct {
	head    *Page
	pages   uint32
	flipped bool
	heap    heap.Allocator
	log     *zap.SugaredLogger
}

// NewMemoryPage returns an empty chain charged to h (heap.Default when nil).
func NewMemoryPage(h heap.Allocator, log *zap.SugaredLogger) *MemoryPage {
	if h == nil {
		h = heap.Default
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MemoryPage{heap: h, log: log}
}

func (m *MemoryPage) NumberOfPages() uint32 { return m.pages }

// CurrentPageSize is the payload size of the head page, 0 without pages.
func (m *MemoryPage) CurrentPageSize() uint32 {
	if m.head == nil {
		return 0
	}
	return m.head.Size()
}

// Allocate pushes a new head page of size bytes. On failure the chain is
// left as it was.
func (m *MemoryPage) Allocate(size uint32) error {
	if size == 0 {
		return fmt.Errorf("%w: zero sized page", errs.ErrParameters)
	}
	if m.flipped {
		return fmt.Errorf("%w: chain already flipped for reading", errs.ErrInternalState)
	}
	buf, err := heap.Bytes(m.heap, size)
	if err != nil {
		m.log.Debugw("page allocation failed", "size", size, "error", err)
		return err
	}
	m.head = &Page{link: m.head, data: buf}
	m.pages++
	return nil
}

// Grow resizes the head page to newSize > current size and returns the
// new payload. The payload may move; addresses taken before are stale.
func (m *MemoryPage) Grow(newSize uint32) ([]byte, error) {
	if err := m.checkResize(); err != nil {
		return nil, err
	}
	old := m.head.data
	if newSize <= uint32(len(old)) {
		return nil, fmt.Errorf("%w: grow to %d from %d", errs.ErrParameters, newSize, len(old))
	}
	if int(newSize) <= cap(old) {
		m.head.data = old[:newSize]
		clear(m.head.data[len(old):])
		return m.head.data, nil
	}
	buf, err := heap.Bytes(m.heap, newSize)
	if err != nil {
		m.log.Debugw("page grow failed", "from", len(old), "to", newSize, "error", err)
		return nil, err
	}
	copy(buf, old)
	heap.Free(m.heap, old)
	m.head.data = buf
	return buf, nil
}

// Shrink truncates the head page to newSize <= current size.
func (m *MemoryPage) Shrink(newSize uint32) ([]byte, error) {
	if err := m.checkResize(); err != nil {
		return nil, err
	}
	if newSize > uint32(len(m.head.data)) {
		return nil, fmt.Errorf("%w: shrink to %d from %d", errs.ErrParameters, newSize, len(m.head.data))
	}
	m.head.data = m.head.data[:newSize]
	return m.head.data, nil
}

// Resize grows or shrinks the head page as needed.
func (m *MemoryPage) Resize(newSize uint32) ([]byte, error) {
	if newSize > m.CurrentPageSize() {
		return m.Grow(newSize)
	}
	return m.Shrink(newSize)
}

func (m *MemoryPage) checkResize() error {
	if m.head == nil {
		return fmt.Errorf("%w: no page to resize", errs.ErrParameters)
	}
	if m.flipped {
		return fmt.Errorf("%w: chain already flipped for reading", errs.ErrInternalState)
	}
	return nil
}

// Address returns the address of byte index of the head page, or nil.
func (m *MemoryPage) Address(index uint32) unsafe.Pointer {
	if m.head == nil || index >= m.head.Size() {
		return nil
	}
	return unsafe.Add(m.head.Data(), index)
}

// FlipOrder reverses the links so the head becomes the oldest page.
func (m *MemoryPage) FlipOrder() {
	var prev *Page
	for p := m.head; p != nil; {
		next := p.link
		p.link = prev
		prev, p = p, next
	}
	m.head = prev
	m.flipped = !m.flipped
}

// Flipped reports whether the chain is in write order.
func (m *MemoryPage) Flipped() bool { return m.flipped }

// inOrder lists the pages oldest first.
func (m *MemoryPage) inOrder() []*Page {
	out := make([]*Page, 0, m.pages)
	for p := m.head; p != nil; p = p.link {
		out = append(out, p)
	}
	if !m.flipped {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// FirstAddress is the address of the first byte ever written.
func (m *MemoryPage) FirstAddress() unsafe.Pointer {
	pages := m.inOrder()
	if len(pages) == 0 {
		return nil
	}
	return pages[0].Data()
}

// TotalSize sums the payload of every page.
func (m *MemoryPage) TotalSize() uint64 {
	var n uint64
	for p := m.head; p != nil; p = p.link {
		n += uint64(p.Size())
	}
	return n
}

// AddressToIndex maps an address inside any page to its flat offset in
// write order.
func (m *MemoryPage) AddressToIndex(addr unsafe.Pointer) (uint32, error) {
	a := uintptr(addr)
	var base uint64
	for _, p := range m.inOrder() {
		if off, ok := p.contains(a); ok {
			idx := base + uint64(off)
			if idx > uint64(^uint32(0)) {
				break
			}
			return uint32(idx), nil
		}
		base += uint64(p.Size())
	}
	return 0, fmt.Errorf("%w: address %p outside all pages", errs.ErrOutOfRange, addr)
}

// DeepAddress maps a flat offset to an address and reports how many bytes
// are contiguous from there within the same page. It fails when index is
// outside the chain or fewer than wanted bytes are contiguous.
func (m *MemoryPage) DeepAddress(index, wanted uint32) (unsafe.Pointer, uint32, error) {
	rest := uint64(index)
	for _, p := range m.inOrder() {
		size := uint64(p.Size())
		if rest < size {
			avail := uint32(size - rest)
			if wanted > avail {
				return nil, avail, fmt.Errorf("%w: %d bytes wanted at %d, %d contiguous", errs.ErrOutOfRange, wanted, index, avail)
			}
			return unsafe.Add(p.Data(), rest), avail, nil
		}
		rest -= size
	}
	return nil, 0, fmt.Errorf("%w: index %d outside all pages", errs.ErrOutOfRange, index)
}

// Steal moves the chain into a new MemoryPage and leaves m empty.
func (m *MemoryPage) Steal() *MemoryPage {
	out := &MemoryPage{head: m.head, pages: m.pages, flipped: m.flipped, heap: m.heap, log: m.log}
	m.head, m.pages, m.flipped = nil, 0, false
	return out
}

// StealAndJoinAtEnd moves src's pages after m's in write order.
func (m *MemoryPage) StealAndJoinAtEnd(src *MemoryPage) error {
	if src == nil || src.head == nil {
		return fmt.Errorf("%w: nothing to join", errs.ErrParameters)
	}
	if m.flipped || src.flipped {
		return fmt.Errorf("%w: cannot join flipped chains", errs.ErrInternalState)
	}
	oldest := src.head
	for oldest.link != nil {
		oldest = oldest.link
	}
	oldest.link = m.head
	m.head = src.head
	m.pages += src.pages
	src.head, src.pages = nil, 0
	return nil
}

// Clean drops every page.
func (m *MemoryPage) Clean() {
	for p := m.head; p != nil; {
		next := p.link
		heap.Free(m.heap, p.data)
		p.link, p.data = nil, nil
		p = next
	}
	m.head, m.pages, m.flipped = nil, 0, false
}
