package shape_test

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"testing/quick"

	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayers(t *testing.T) {
	cases := []struct {
		in   string
		want shape.Layers
	}{
		{"", nil},
		{"O", nil},
		{"A3", shape.Layers{shape.Array(3)}},
		{"PA3O", shape.Layers{shape.Pointer(false), shape.Array(3)}},
		{"pV", shape.Layers{shape.Pointer(true), shape.Vector(false)}},
		{"f4m", shape.Layers{shape.FlatArray(4, true), shape.Matrix(true)}},
		{"ZdS", shape.Layers{
			shape.ZeroTerm(shape.TermPlain, false, 0),
			shape.ZeroTerm(shape.TermDynamic, true, 0),
			shape.ZeroTerm(shape.TermStatic, false, 0),
		}},
		{"s16", shape.Layers{shape.ZeroTerm(shape.TermStatic, true, 16)}},
	}
	for _, c := range cases {
		got, err := shape.ParseLayers(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseLayersRejects(t *testing.T) {
	for _, in := range []string{"A", "F", "A03", "Q", "OA", "V3", "S0", "A99999999999", "a3"} {
		_, err := shape.ParseLayers(in)
		assert.Error(t, err, in)
	}
	_, err := shape.ParseLayers("X")
	assert.ErrorIs(t, err, errs.ErrInternalSetup)
}

func TestLayersIsFixed(t *testing.T) {
	ls, err := shape.ParseLayers("A2A3")
	require.NoError(t, err)
	assert.True(t, ls.IsFixed())
	ls, err = shape.ParseLayers("A2P")
	require.NoError(t, err)
	assert.False(t, ls.IsFixed())
	assert.True(t, ls[1].Kind == shape.LayerPointer && !ls[1].IsDynamic())
}

// randomLayers is a quick generator for well-formed layer lists.
type randomLayers shape.Layers

func (randomLayers) Generate(r *rand.Rand, size int) reflect.Value {
	n := r.Intn(5)
	ls := make(shape.Layers, 0, n)
	for i := 0; i < n; i++ {
		konst := r.Intn(2) == 0
		switch r.Intn(6) {
		case 0:
			ls = append(ls, shape.Array(uint32(r.Intn(1000)+1)))
		case 1:
			ls = append(ls, shape.Pointer(konst))
		case 2:
			ls = append(ls, shape.FlatArray(uint32(r.Intn(64)+1), konst))
		case 3:
			ls = append(ls, shape.Vector(konst))
		case 4:
			ls = append(ls, shape.Matrix(konst))
		default:
			term := shape.TermKind(r.Intn(3))
			var capacity uint32
			if term == shape.TermStatic {
				capacity = uint32(r.Intn(8))
			}
			ls = append(ls, shape.ZeroTerm(term, konst, capacity))
		}
	}
	return reflect.ValueOf(randomLayers(ls))
}

var quickLeaves = []leaf.Type{
	leaf.Uint8, leaf.Int16.WithConst(true), leaf.Float64, leaf.Char8,
	leaf.CCString, leaf.CString, leaf.DynamicCString.WithConst(true),
	leaf.Struct("point", 8),
}

func TestRawFormRoundTrip(t *testing.T) {
	roundTrip := func(rl randomLayers, pick uint8) bool {
		lt := quickLeaves[int(pick)%len(quickLeaves)]
		vd, err := shape.FromLayers(lt, shape.Layers(rl))
		if err != nil {
			return false
		}
		back, err := shape.ParseDescriptor(vd.ToString(true))
		return err == nil && back.Equal(vd)
	}
	require.NoError(t, quick.Check(roundTrip, &quick.Config{MaxCount: 500}))
}

func FuzzParseLayers(f *testing.F) {
	for _, seed := range []string{"A3", "PA3O", "f4m", "s16", "ZdS", "A0", "OO"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		ls, err := shape.ParseLayers(in)
		if err != nil {
			return
		}
		require.Equal(t, strings.TrimSuffix(in, "O"), ls.String())
		again, err := shape.ParseLayers(ls.String())
		require.NoError(t, err)
		require.Equal(t, ls, again)
	})
}
