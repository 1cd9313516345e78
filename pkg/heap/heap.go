// Package heap is the shared allocation facility for pages and holders.
// Go memory is garbage collected; an Allocator only accounts for it so
// that exhaustion surfaces as ErrOutOfMemory instead of a runtime abort.
package heap

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

// Allocator accounts for engine-owned memory. Implementations must be
// safe for concurrent use.
type Allocator interface {
	Reserve(n uint64) error
	Release(n uint64)
}

// Budget is an Allocator with an optional upper bound on bytes in use.
type Budget struct {
	limit uint64
	used  atomic.Uint64
}

// NewBudget returns a budget of limit bytes; 0 means unlimited.
func NewBudget(limit uint64) *Budget {
	return &Budget{limit: limit}
}

// Default is the process-wide unlimited heap.
var Default Allocator = NewBudget(0)

func (b *Budget) Reserve(n uint64) error {
	for {
		cur := b.used.Load()
		next := cur + n
		if next < cur || (b.limit != 0 && next > b.limit) {
			return fmt.Errorf("%w: %d bytes requested, %d of %d in use", errs.ErrOutOfMemory, n, cur, b.limit)
		}
		if b.used.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (b *Budget) Release(n uint64) {
	for {
		cur := b.used.Load()
		next := uint64(0)
		if cur > n {
			next = cur - n
		}
		if b.used.CompareAndSwap(cur, next) {
			return
		}
	}
}

// InUse reports the bytes currently reserved.
func (b *Budget) InUse() uint64 { return b.used.Load() }

// Bytes allocates an 8-byte aligned buffer of n bytes charged to a.
// The capacity is n rounded up to a whole word.
func Bytes(a Allocator, n uint32) ([]byte, error) {
	if a == nil {
		a = Default
	}
	words := (uint64(n) + 7) / 8
	if words == 0 {
		words = 1
	}
	if err := a.Reserve(words * 8); err != nil {
		return nil, err
	}
	backing := make([]uint64, words)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), words*8)
	return buf[:n], nil
}

// Free returns b's capacity to a. b must not be used afterwards.
func Free(a Allocator, b []byte) {
	if b == nil {
		return
	}
	if a == nil {
		a = Default
	}
	a.Release(uint64(cap(b)))
}
