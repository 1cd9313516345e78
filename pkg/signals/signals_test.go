package signals_test

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/progressive"
	"github.com/rawbytedev/shapekit/pkg/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
signals:
  - name: gain
    type: float32
    value: 1.5
  - name: ids
    type: uint16
    value: [1, 2, 3]
  - name: grid
    type: int32
    value:
      - [1, 2]
      - [3, 4]
  - name: ragged
    type: uint8
    value: [[1], [2, 3, 4]]
  - name: labels
    type: CString
    value: [alpha, beta]
`

func TestLoad(t *testing.T) {
	l := signals.NewLoader(nil, nil)
	objs, err := l.Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, objs, 5)
	defer func() {
		for _, o := range objs {
			o.Release()
		}
	}()

	byName := make(map[string]string)
	for _, o := range objs {
		byName[o.Name()] = o.Descriptor().ToString(true)
	}
	assert.Equal(t, map[string]string{
		"gain":   "float32",
		"ids":    "A3 uint16",
		"grid":   "A2A2 int32",
		"ragged": "A2v uint8",
		"labels": "A2 CString",
	}, byName)

	assert.Equal(t, float32(1.5), *(*float32)(objs[0].Pointer()))
	assert.Equal(t, []uint16{1, 2, 3}, unsafe.Slice((*uint16)(objs[1].Pointer()), 3))
	assert.Equal(t, []int32{1, 2, 3, 4}, unsafe.Slice((*int32)(objs[2].Pointer()), 4))
	ragged := unsafe.Slice((*[]uint8)(objs[3].Pointer()), 2)
	assert.Equal(t, []uint8{2, 3, 4}, ragged[1])
	labels := unsafe.Slice((*unsafe.Pointer)(objs[4].Pointer()), 2)
	assert.Equal(t, "beta", common.GoString(labels[1], 16))
}

func TestLoadFailuresReleaseEverything(t *testing.T) {
	cases := map[string]struct {
		yaml string
		err  error
	}{
		"bad type": {`signals: [{name: a, type: uint8, value: 1}, {name: b, type: quaternion, value: 1}]`, errs.ErrParameters},
		"range":    {`signals: [{name: a, type: uint8, value: 1}, {name: b, type: uint8, value: [1, 256]}]`, errs.ErrOutOfRange},
		"dup":      {`signals: [{name: a, type: uint8, value: 1}, {name: a, type: uint8, value: 2}]`, errs.ErrParameters},
		"nameless": {`signals: [{type: uint8, value: 1}]`, errs.ErrParameters},
		"deep":     {`signals: [{name: a, type: uint8, value: [[[1]]]}]`, errs.ErrUnsupportedFeature},
		"mixed":    {`signals: [{name: a, type: uint8, value: [[1], 2]}]`, errs.ErrParameters},
		"map":      {`signals: [{name: a, type: uint8, value: {x: 1}}]`, errs.ErrUnsupportedFeature},
		"missing":  {`signals: [{name: a, type: uint8}]`, errs.ErrParameters},
		"syntax":   {`signals: [`, errs.ErrParameters},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			budget := heap.NewBudget(0)
			l := signals.NewLoader(progressive.NewCreator(progressive.Options{Heap: budget}), nil)
			objs, err := l.Load(strings.NewReader(c.yaml))
			assert.ErrorIs(t, err, c.err)
			assert.Nil(t, objs)
			assert.Zero(t, budget.InUse())
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	objs, err := signals.NewLoader(nil, nil).Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, objs)
}
