package shapekit_test

import (
	"strings"
	"testing"

	"github.com/rawbytedev/shapekit"
	"github.com/rawbytedev/shapekit/pkg/shape"
)

type sample struct {
	Labels   [4]shape.CString
	Mod      []int8
	Integers []int16
	Float3   []float32
	Float6   [][]float64
}

func newSample() *sample {
	return &sample{
		Labels: [4]shape.CString{
			shape.NewCString("azerty"), shape.NewCString("hello"),
			shape.NewCString("world"), shape.NewCString("random"),
		},
		Mod:      []int8{12, 10, 13, 1},
		Integers: []int16{100, 250, 300},
		Float3:   []float32{12.13, 16.23, 75.1},
		Float6:   [][]float64{{100.5, 165.63}, {153.5}},
	}
}

func BenchmarkDescriptorCached(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = e.Descriptor("const float64", "A4V")
	}
}

func BenchmarkCloneStrings(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{PageSize: 256})
	s := newSample()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		obj, err := e.CloneValue(&s.Labels)
		if err != nil {
			b.Fatal(err)
		}
		obj.Release()
	}
}

func BenchmarkCloneNested(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{PageSize: 256})
	s := newSample()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		obj, err := e.CloneValue(&s.Float6)
		if err != nil {
			b.Fatal(err)
		}
		obj.Release()
	}
}

func BenchmarkCopyConvert(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{})
	s := newSample()
	dst := make([]int64, len(s.Integers))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := e.CopyValue(&dst, &s.Integers); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSize(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{})
	s := newSample()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = e.Size(&s.Float6)
	}
}

func BenchmarkLoadSignals(b *testing.B) {
	e, _ := shapekit.New(shapekit.Options{})
	const doc = `
signals:
  - name: gain
    type: float32
    value: 0.5
  - name: taps
    type: int16
    value: [[1, 2, 3], [4, 5, 6]]
`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		objs, err := e.LoadSignals(strings.NewReader(doc))
		if err != nil {
			b.Fatal(err)
		}
		for _, o := range objs {
			o.Release()
		}
	}
}
