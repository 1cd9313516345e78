package anyobject_test

import (
	"testing"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/mempage"
	"github.com/rawbytedev/shapekit/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassFor(t *testing.T) {
	cases := map[uint32]anyobject.Class{
		1: 4, 4: 4, 5: 8, 8: 8, 9: 16, 17: 24, 33: 40, 63: 64, 64: 64,
		65: anyobject.ClassHeap, 4096: anyobject.ClassHeap,
	}
	for size, want := range cases {
		assert.Equal(t, want, anyobject.ClassFor(size), size)
	}
}

func TestCloneBytesInline(t *testing.T) {
	src := [2]uint32{1, 2}
	vd := shape.MustNew(leaf.Uint32, "A2")
	budget := heap.NewBudget(0)
	o, err := anyobject.CloneBytes(budget, 8, unsafe.Pointer(&src[0]), vd)
	require.NoError(t, err)
	assert.Equal(t, anyobject.Class(8), o.Class())
	assert.IsType(t, &anyobject.ObjectT[[1]uint64]{}, o)
	assert.True(t, o.IsValid())
	assert.Equal(t, uint64(8), o.ByteSize())
	assert.Equal(t, []uint32{1, 2}, unsafe.Slice((*uint32)(o.Pointer()), 2))
	assert.NotEmpty(t, o.Name())
	assert.Equal(t, uint64(8), budget.InUse())

	src[0] = 99
	assert.Equal(t, uint32(1), *(*uint32)(o.Pointer()))

	o.Release()
	o.Release()
	assert.False(t, o.IsValid())
	assert.Zero(t, budget.InUse())
}

func TestCloneBytesEveryClass(t *testing.T) {
	var src [80]byte
	for i := range src {
		src[i] = byte(i + 1)
	}
	vd := shape.MustNew(leaf.Uint8, "A80")
	for size := uint32(1); size <= 80; size++ {
		o, err := anyobject.CloneBytes(nil, size, unsafe.Pointer(&src[0]), vd)
		require.NoError(t, err)
		assert.Equal(t, anyobject.ClassFor(size), o.Class())
		assert.Equal(t, src[:size], unsafe.Slice((*byte)(o.Pointer()), size))
		o.Release()
	}
}

func TestCloneBytesHeap(t *testing.T) {
	src := make([]byte, 100)
	src[99] = 7
	vd := shape.MustNew(leaf.Uint8, "A100")
	o, err := anyobject.CloneBytes(nil, 100, unsafe.Pointer(&src[0]), vd)
	require.NoError(t, err)
	require.IsType(t, &anyobject.ObjectM{}, o)
	assert.Equal(t, anyobject.ClassHeap, o.Class())
	assert.Equal(t, byte(7), *(*byte)(unsafe.Add(o.Pointer(), 99)))
	o.Release()
	assert.Nil(t, o.Pointer())
}

func TestCloneBytesFailures(t *testing.T) {
	x := uint64(1)
	vd := shape.MustNew(leaf.Uint64, "")
	_, err := anyobject.CloneBytes(nil, 0, unsafe.Pointer(&x), vd)
	assert.ErrorIs(t, err, errs.ErrParameters)

	tight := heap.NewBudget(4)
	_, err = anyobject.CloneBytes(tight, 8, unsafe.Pointer(&x), vd)
	assert.ErrorIs(t, err, errs.ErrOutOfMemory)

	big := make([]byte, 128)
	_, err = anyobject.CloneBytes(tight, 128, unsafe.Pointer(&big[0]), vd)
	assert.ErrorIs(t, err, errs.ErrOutOfMemory)
}

func TestObjectMSetupFailureLeavesInvalid(t *testing.T) {
	src := make([]byte, 128)
	vd := shape.MustNew(leaf.Uint8, "A128")
	o := anyobject.NewObjectM(heap.NewBudget(64))
	o.SetName("payload")
	err := o.Setup(vd, unsafe.Pointer(&src[0]), 128)
	assert.ErrorIs(t, err, errs.ErrOutOfMemory)
	assert.False(t, o.IsValid())
	assert.Nil(t, o.Pointer())
	assert.False(t, o.Descriptor().IsValid())
	assert.Equal(t, "payload", o.Name())
}

func TestPageObject(t *testing.T) {
	budget := heap.NewBudget(0)
	m := mempage.NewMemoryPage(budget, nil)
	require.NoError(t, m.Allocate(16))
	p := m.Address(0)
	*(*uint32)(p) = 42

	_, err := anyobject.NewPageObject(m, unsafe.Pointer(&budget), shape.MustNew(leaf.Uint32, ""))
	assert.ErrorIs(t, err, errs.ErrParameters)

	o, err := anyobject.NewPageObject(m, p, shape.MustNew(leaf.Uint32, ""))
	require.NoError(t, err)
	assert.Equal(t, anyobject.ClassPages, o.Class())
	assert.Equal(t, uint64(16), o.ByteSize())
	assert.Equal(t, uint32(1), o.NumberOfPages())
	assert.Equal(t, uint32(42), *(*uint32)(o.Pointer()))
	assert.NotZero(t, budget.InUse())

	o.Release()
	assert.False(t, o.IsValid())
	assert.Zero(t, budget.InUse())
}
