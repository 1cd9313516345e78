package clone_test

import (
	"testing"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/clone"
	"github.com/rawbytedev/shapekit/pkg/convert"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/mempage"
	"github.com/rawbytedev/shapekit/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registry = convert.NewRegistry(convert.Options{})

// cloneAndCompare clones the value p points to and checks the copy
// compares equal to the source.
func cloneAndCompare(t *testing.T, c clone.Cloner, p any) anyobject.Object {
	t.Helper()
	vd, addr, err := shape.Of(p)
	require.NoError(t, err)
	o, err := c.Clone(vd, addr)
	require.NoError(t, err)
	require.True(t, o.IsValid())
	require.NoError(t, vd.CopyTo(addr, o.Pointer(), o.Descriptor(), registry, true))
	return o
}

func TestCloneFixed(t *testing.T) {
	src := [3]uint16{1, 2, 3}
	o := cloneAndCompare(t, clone.Cloner{}, &src)
	defer o.Release()
	assert.Equal(t, anyobject.Class(8), o.Class())
	assert.Equal(t, "A3 uint16", o.Descriptor().ToString(true))
	src[0] = 9
	assert.Equal(t, uint16(1), *(*uint16)(o.Pointer()))
}

func TestCloneVector(t *testing.T) {
	src := []uint32{1, 2, 3, 4, 5}
	o := cloneAndCompare(t, clone.Cloner{}, &src)
	defer o.Release()
	assert.Equal(t, anyobject.ClassPages, o.Class())
	assert.Equal(t, "v const uint32", o.Descriptor().ToString(true))

	h := (*shape.VectorHeader)(o.Pointer())
	require.Equal(t, 5, h.Len)
	src[4] = 50
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, unsafe.Slice((*uint32)(h.Data), h.Len))
}

func TestCloneNestedVectors(t *testing.T) {
	src := [][]uint8{{1}, {}, {2, 3, 4}}
	o := cloneAndCompare(t, clone.Cloner{PageSize: 16}, &src)
	defer o.Release()
	assert.Equal(t, "vv const uint8", o.Descriptor().ToString(true))
	_, sizes, err := o.Descriptor().GetDimensions(o.Pointer(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sizes[0].Value())
}

func TestCloneStrings(t *testing.T) {
	src := [2]shape.CString{shape.NewCString("alpha"), shape.NewCString("")}
	o := cloneAndCompare(t, clone.Cloner{}, &src)
	defer o.Release()
	assert.Equal(t, "A2 const CString", o.Descriptor().ToString(true))
	first := common.ReadPointer(o.Pointer())
	assert.NotEqual(t, unsafe.Pointer(src[0]), first)
	assert.Equal(t, "alpha", common.GoString(first, 64))

	var none shape.CString
	o2 := cloneAndCompare(t, clone.Cloner{}, &none)
	defer o2.Release()
	assert.Nil(t, common.ReadPointer(o2.Pointer()))
}

func TestClonePointers(t *testing.T) {
	arr := [4]int32{-1, 2, -3, 4}
	src := &arr
	o := cloneAndCompare(t, clone.Cloner{}, &src)
	defer o.Release()
	assert.Equal(t, "pA4 const int32", o.Descriptor().ToString(true))
	assert.NotEqual(t, unsafe.Pointer(src), common.ReadPointer(o.Pointer()))

	var nilPtr *[4]int32
	vd, addr, err := shape.Of(&nilPtr)
	require.NoError(t, err)
	o2, err := clone.Cloner{}.Clone(vd, addr)
	require.NoError(t, err)
	defer o2.Release()
	assert.Nil(t, common.ReadPointer(o2.Pointer()))
}

func TestCloneAlignsHeadersAfterOddData(t *testing.T) {
	a, b := []uint8{1, 2, 3}, []uint8{4, 5}
	src := [2]*[]uint8{&a, &b}
	o := cloneAndCompare(t, clone.Cloner{PageSize: 256}, &src)
	defer o.Release()
	assert.Equal(t, "A2pv const uint8", o.Descriptor().ToString(true))
	for i, p := range unsafe.Slice((*unsafe.Pointer)(o.Pointer()), 2) {
		require.Zero(t, uintptr(p)%mempage.MaxAlign, "row %d", i)
	}
	second := *(*[]uint8)(unsafe.Slice((*unsafe.Pointer)(o.Pointer()), 2)[1])
	assert.Equal(t, b, second)

	words := [][]shape.CString{
		{shape.NewCString("a")},
		{shape.NewCString("bcd"), shape.NewCString("e")},
	}
	w := cloneAndCompare(t, clone.Cloner{PageSize: 256}, &words)
	defer w.Release()
	rows := *(*[][]unsafe.Pointer)(w.Pointer())
	require.Len(t, rows, 2)
	require.Zero(t, uintptr(unsafe.Pointer(&rows[1][0]))%mempage.MaxAlign)
	assert.Equal(t, "bcd", common.GoString(rows[1][0], 8))
}

func TestCloneZeroTerminated(t *testing.T) {
	run := []uint16{7, 8, 9, 0}
	head := unsafe.Pointer(&run[0])
	vd := shape.MustNew(leaf.Uint16, "Z")
	o, err := clone.Cloner{}.Clone(vd, unsafe.Pointer(&head))
	require.NoError(t, err)
	defer o.Release()
	assert.Equal(t, "v const uint16", o.Descriptor().ToString(true))
	h := (*shape.VectorHeader)(o.Pointer())
	assert.Equal(t, []uint16{7, 8, 9}, unsafe.Slice((*uint16)(h.Data), h.Len))
	require.NoError(t, vd.CopyTo(unsafe.Pointer(&head), o.Pointer(), o.Descriptor(), registry, true))
}

func TestCloneMatrix(t *testing.T) {
	buf := []float32{1, 2, 3, 4, 5, 6}
	h := shape.MatrixHeader{Data: unsafe.Pointer(&buf[0]), Rows: 3, Cols: 2}
	vd := shape.MustNew(leaf.Float32, "M")
	o, err := clone.Cloner{}.Clone(vd, unsafe.Pointer(&h))
	require.NoError(t, err)
	defer o.Release()
	assert.Equal(t, "m const float32", o.Descriptor().ToString(true))
	got := (*shape.MatrixHeader)(o.Pointer())
	assert.Equal(t, uint32(3), got.Rows)
	assert.Equal(t, buf, unsafe.Slice((*float32)(got.Data), 6))
	require.NoError(t, vd.CopyTo(unsafe.Pointer(&h), o.Pointer(), o.Descriptor(), registry, true))
}

func TestCloneFailures(t *testing.T) {
	src := make([]uint32, 100)
	vd, addr, err := shape.Of(&src)
	require.NoError(t, err)

	budget := heap.NewBudget(16)
	_, err = clone.Cloner{Heap: budget}.Clone(vd, addr)
	assert.ErrorIs(t, err, errs.ErrOutOfMemory)
	assert.Zero(t, budget.InUse())

	_, err = clone.Cloner{}.Clone(vd, nil)
	assert.ErrorIs(t, err, errs.ErrParameters)

	raw := []byte{'a', 'b', 'c', 'd'}
	s := &raw[0]
	_, err = clone.Cloner{MaxScan: 4}.Clone(shape.MustNew(leaf.CString, ""), unsafe.Pointer(&s))
	assert.ErrorIs(t, err, errs.ErrOutOfRange)
}

func TestCloneReleasesPages(t *testing.T) {
	budget := heap.NewBudget(0)
	src := [][]int64{{1, 2}, {3}}
	vd, addr, err := shape.Of(&src)
	require.NoError(t, err)
	o, err := clone.Cloner{Heap: budget}.Clone(vd, addr)
	require.NoError(t, err)
	assert.NotZero(t, budget.InUse())
	o.Release()
	assert.Zero(t, budget.InUse())
}

func BenchmarkCloneNested(b *testing.B) {
	src := make([][]float64, 32)
	for i := range src {
		src[i] = make([]float64, 64)
	}
	vd, addr, err := shape.Of(&src)
	require.NoError(b, err)
	c := clone.Cloner{PageSize: 4096}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o, err := c.Clone(vd, addr)
		if err != nil {
			b.Fatal(err)
		}
		o.Release()
	}
}
