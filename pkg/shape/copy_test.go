package shape_test

import (
	"testing"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/convert"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registry = convert.NewRegistry(convert.Options{})

func describe(t *testing.T, p any) (shape.VariableDescriptor, unsafe.Pointer) {
	t.Helper()
	vd, addr, err := shape.Of(p)
	require.NoError(t, err)
	return vd, addr
}

func TestCopyConvertsFixedArrays(t *testing.T) {
	src := [3]uint8{10, 20, 30}
	var dst [3]int32
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, false))
	assert.Equal(t, [3]int32{10, 20, 30}, dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, true))

	dst[1] = 21
	err := sd.CopyTo(sp, dp, dd, registry, true)
	assert.ErrorIs(t, err, errs.ErrComparisonFailure)
}

func TestCopyRangeFailure(t *testing.T) {
	src := [2]int32{1, 300}
	var dst [2]uint8
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	assert.ErrorIs(t, sd.CopyTo(sp, dp, dd, registry, false), errs.ErrOutOfRange)
}

func TestCopyResizesVector(t *testing.T) {
	src := []int16{1, -2, 3}
	var dst []float64
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, false))
	assert.Equal(t, []float64{1, -2, 3}, dst)

	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, true))
	short := []int16{1}
	sd, sp = describe(t, &short)
	assert.ErrorIs(t, sd.CopyTo(sp, dp, dd, registry, true), errs.ErrComparisonFailure)
}

func TestCopyFixedMismatch(t *testing.T) {
	src := [3]uint8{1, 2, 3}
	var dst [4]uint8
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	assert.ErrorIs(t, sd.CopyTo(sp, dp, dd, registry, false), errs.ErrUnsupportedFeature)

	var cdst []uint8
	cd := shape.MustNew(leaf.Uint8, "v")
	assert.ErrorIs(t, sd.CopyTo(sp, unsafe.Pointer(&cdst), cd, registry, false), errs.ErrUnsupportedFeature)
}

func TestCopyArrayIntoMatrix(t *testing.T) {
	src := [2][3]uint16{{1, 2, 3}, {4, 5, 6}}
	var h shape.MatrixHeader
	sd, sp := describe(t, &src)
	dd := shape.MustNew(leaf.Uint32, "M")
	require.NoError(t, sd.CopyTo(sp, unsafe.Pointer(&h), dd, registry, false))
	require.Equal(t, uint32(2), h.Rows)
	require.Equal(t, uint32(3), h.Cols)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6}, unsafe.Slice((*uint32)(h.Data), 6))

	var back [2][3]uint16
	bd, bp := describe(t, &back)
	require.NoError(t, dd.CopyTo(unsafe.Pointer(&h), bp, bd, registry, false))
	assert.Equal(t, src, back)
}

func TestCopyParsesStrings(t *testing.T) {
	src := [2]shape.CString{shape.NewCString("12"), shape.NewCString("-3")}
	var dst [2]int32
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, false))
	assert.Equal(t, [2]int32{12, -3}, dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, true))
}

func TestCopyNested(t *testing.T) {
	src := [][]uint8{{1}, {2, 3}}
	var dst [][]uint32
	sd, sp := describe(t, &src)
	dd, dp := describe(t, &dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, false))
	assert.Equal(t, [][]uint32{{1}, {2, 3}}, dst)
	require.NoError(t, sd.CopyTo(sp, dp, dd, registry, true))
}

func TestCopyRejects(t *testing.T) {
	src := [2]uint32{1, 2}
	sd, sp := describe(t, &src)
	var dst [2]uint32
	dd, dp := describe(t, &dst)
	assert.ErrorIs(t, sd.CopyTo(nil, dp, dd, registry, false), errs.ErrParameters)
	assert.ErrorIs(t, sd.CopyTo(sp, dp, dd, nil, false), errs.ErrParameters)

	var pts [2]point
	pd, pp := describe(t, &pts)
	assert.ErrorIs(t, sd.CopyTo(sp, pp, pd, registry, false), errs.ErrUnsupportedFeature)

	var nested [2][1]uint32
	nd, np := describe(t, &nested)
	assert.ErrorIs(t, sd.CopyTo(sp, np, nd, registry, false), errs.ErrUnsupportedFeature)
}
