package mempage

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
)

// DefaultPageSize is used when a PageFile is created with size 0.
const DefaultPageSize = 1024

// MaxAlign is the alignment of every page payload.
const MaxAlign = 8

// PageFile adds a write cursor on the head page and, once writing is
// over, a read cursor walking the chain in write order.
// A PageFile is not safe for concurrent use.
type PageFile struct {
	MemoryPage
	defaultPageSize uint32
	writePos        uint32
	readPage        *Page
	readPos         uint32
}

func NewPageFile(defaultPageSize uint32, h heap.Allocator, log *zap.SugaredLogger) *PageFile {
	f := &PageFile{MemoryPage: *NewMemoryPage(h, log)}
	f.setDefault(defaultPageSize)
	return f
}

func (f *PageFile) setDefault(size uint32) {
	if size == 0 {
		size = DefaultPageSize
	}
	f.defaultPageSize = size
}

// Clean drops all pages and resets both cursors. A non-zero size
// replaces the default page size.
func (f *PageFile) Clean(defaultPageSize uint32) {
	f.MemoryPage.Clean()
	f.writePos, f.readPos, f.readPage = 0, 0, nil
	if defaultPageSize != 0 {
		f.defaultPageSize = defaultPageSize
	}
}

func (f *PageFile) DefaultPageSize() uint32 { return f.defaultPageSize }

// CurrentWritePosition is the number of bytes used in the head page.
func (f *PageFile) CurrentWritePosition() uint32 { return f.writePos }

// FreeSizeLeft is the unused room in the head page.
func (f *PageFile) FreeSizeLeft() uint32 {
	size := f.CurrentPageSize()
	if f.writePos < size {
		return size - f.writePos
	}
	return 0
}

// Allocate opens a new head page and resets the write cursor.
func (f *PageFile) Allocate(size uint32) error {
	if err := f.MemoryPage.Allocate(size); err != nil {
		return err
	}
	f.writePos = 0
	return nil
}

func (f *PageFile) checkWritable() error {
	if f.flipped {
		return fmt.Errorf("%w: page file is being read", errs.ErrInternalState)
	}
	return nil
}

func (f *PageFile) reserve(n uint32) unsafe.Pointer {
	p := unsafe.Add(f.head.Data(), f.writePos)
	f.writePos += n
	return p
}

// WriteReserveAtomic reserves n bytes that never straddle two pages.
// When the head page lacks room it is trimmed to what is used and a page
// of at least n bytes is opened.
func (f *PageFile) WriteReserveAtomic(n uint32) (unsafe.Pointer, error) {
	return f.reserveAtomic(n, 1)
}

// WriteReserveAtomicAligned is WriteReserveAtomic for data holding
// pointers or headers: the address is a multiple of align, a power of two
// no larger than MaxAlign. Skipped bytes stay in the page unused.
func (f *PageFile) WriteReserveAtomicAligned(n, align uint32) (unsafe.Pointer, error) {
	if align == 0 || align > MaxAlign || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d", errs.ErrParameters, align)
	}
	return f.reserveAtomic(n, align)
}

func (f *PageFile) reserveAtomic(n, align uint32) (unsafe.Pointer, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty reservation", errs.ErrParameters)
	}
	pad := -f.writePos & (align - 1)
	if uint64(f.FreeSizeLeft()) < uint64(pad)+uint64(n) {
		if f.defaultPageSize < n {
			f.defaultPageSize = n
		}
		if f.head != nil && f.writePos == 0 {
			// reuse an untouched page instead of leaving it empty in the chain
			if _, err := f.Resize(f.defaultPageSize); err != nil {
				return nil, err
			}
		} else {
			if f.writePos > 0 {
				if _, err := f.Shrink(f.writePos); err != nil {
					return nil, err
				}
			}
			if err := f.Allocate(f.defaultPageSize); err != nil {
				return nil, err
			}
		}
		pad = 0
	}
	f.writePos += pad
	return f.reserve(n), nil
}

// WriteReserveExtended reserves n bytes continuing the unit of data
// already in the head page, growing it when needed. Growing raises the
// default page size so that later pages start larger.
func (f *PageFile) WriteReserveExtended(n uint32) (unsafe.Pointer, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty reservation", errs.ErrParameters)
	}
	if f.FreeSizeLeft() < n {
		cur := uint64(f.CurrentPageSize())
		want := cur + uint64(f.defaultPageSize/2) + uint64(n)
		if want > uint64(^uint32(0)) {
			return nil, fmt.Errorf("%w: page cannot grow past %d bytes", errs.ErrOutOfRange, cur)
		}
		if uint32(want) > f.defaultPageSize {
			f.defaultPageSize = uint32(want)
		}
		if cur == 0 {
			if err := f.Allocate(f.defaultPageSize); err != nil {
				return nil, err
			}
		} else if _, err := f.Grow(uint32(want)); err != nil {
			return nil, err
		}
	}
	if f.FreeSizeLeft() < n {
		return nil, fmt.Errorf("%w: page has %d bytes left after growth, %d needed", errs.ErrFatal, f.FreeSizeLeft(), n)
	}
	return f.reserve(n), nil
}

// CheckAndNewPage opens a page when the head page is full or missing.
// size 0 uses the default page size.
func (f *PageFile) CheckAndNewPage(size uint32) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	if f.FreeSizeLeft() != 0 {
		return nil
	}
	if size == 0 {
		size = f.defaultPageSize
	}
	return f.Allocate(size)
}

// CheckAndTrimPage trims the head page to its used bytes when fewer than
// needed bytes are left, or unconditionally when needed is 0.
func (f *PageFile) CheckAndTrimPage(needed uint32) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	if f.CurrentPageSize() == 0 {
		return nil
	}
	if (f.FreeSizeLeft() < needed && f.writePos != 0) || needed == 0 {
		_, err := f.Shrink(f.writePos)
		return err
	}
	return nil
}

// SetReadPointer ends writing: the chain is put in write order and the
// read cursor placed on the first byte.
func (f *PageFile) SetReadPointer() {
	if !f.flipped {
		f.FlipOrder()
	}
	f.readPage = f.head
	f.readPos = 0
	f.skipEmpty()
}

func (f *PageFile) skipEmpty() {
	for f.readPage != nil && f.readPos >= f.readPage.Size() {
		f.readPage = f.readPage.link
		f.readPos = 0
	}
}

// CurrentReadPointer is the address under the read cursor, nil at the end.
func (f *PageFile) CurrentReadPointer() unsafe.Pointer {
	if f.readPage == nil {
		return nil
	}
	return unsafe.Add(f.readPage.Data(), f.readPos)
}

// ConsumeReadAtomic advances the read cursor by n bytes, which must not
// cross a page end. n == 0 skips past the next zero byte instead.
// ErrCompleted is returned once the cursor is past the last page.
func (f *PageFile) ConsumeReadAtomic(n uint32) error {
	if f.readPage == nil {
		return fmt.Errorf("%w: end of page file", errs.ErrCompleted)
	}
	size := f.readPage.Size()
	if n > 0 {
		end := uint64(f.readPos) + uint64(n)
		if end > uint64(size) {
			return fmt.Errorf("%w: read of %d bytes crosses page end", errs.ErrOutOfRange, n)
		}
		f.readPos = uint32(end)
		f.skipEmpty()
		return nil
	}
	data := f.readPage.data
	pos := f.readPos
	for pos < size && data[pos] != 0 {
		pos++
	}
	if pos >= size {
		return fmt.Errorf("%w: no terminator before page end", errs.ErrOutOfRange)
	}
	f.readPos = pos + 1
	f.skipEmpty()
	return nil
}

// Shrink truncates the head page, pulling the write cursor back with it.
func (f *PageFile) Shrink(newSize uint32) ([]byte, error) {
	b, err := f.MemoryPage.Shrink(newSize)
	if err == nil && f.writePos > newSize {
		f.writePos = newSize
	}
	return b, err
}

func (f *PageFile) Resize(newSize uint32) ([]byte, error) {
	if newSize > f.CurrentPageSize() {
		return f.Grow(newSize)
	}
	return f.Shrink(newSize)
}

// Steal moves the pages out and resets both cursors.
func (f *PageFile) Steal() *MemoryPage {
	f.writePos, f.readPos, f.readPage = 0, 0, nil
	return f.MemoryPage.Steal()
}
