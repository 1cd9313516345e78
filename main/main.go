package main

import (
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/rawbytedev/shapekit"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/shape"
)

const signals = `
signals:
  - name: gain
    type: float32
    value: 1.25
  - name: taps
    type: int16
    value: [[1, 2, 3], [4, 5], [6]]
  - name: labels
    type: CString
    value: [azerty, hello, world, random]
`

func main() {
	config := flag.String("config", "", "YAML options file")
	rounds := flag.Int("n", 10000, "iterations")
	wait := flag.Duration("wait", 5*time.Minute, "keep the pprof endpoint up this long")
	flag.Parse()

	opts := shapekit.Options{}
	if *config != "" {
		f, err := os.Open(*config)
		if err != nil {
			log.Fatal(err)
		}
		opts, err = shapekit.LoadOptions(f)
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
	}
	e, err := shapekit.New(opts)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		log.Println(http.ListenAndServe("localhost:6060", nil))
	}()
	prof, err := os.Create("mem.prof")
	if err != nil {
		log.Fatal(err)
	}
	defer prof.Close()
	runtime.MemProfileRate = 1

	type sample struct {
		Labels   [4]shape.CString
		Integers []int16
		Float6   [][]float64
	}
	z := sample{
		Labels: [4]shape.CString{
			shape.NewCString("azerty"), shape.NewCString("hello"),
			shape.NewCString("world"), shape.NewCString("random"),
		},
		Integers: []int16{100, 250, 300},
		Float6:   [][]float64{{100.5, 165.63}, {153.5}},
	}
	c := e.NewCreator()
	for i := 0; i < *rounds; i++ {
		for _, p := range []any{&z.Labels, &z.Integers, &z.Float6} {
			obj, err := e.CloneValue(p)
			if err != nil {
				log.Fatal(err)
			}
			obj.Release()
		}
		if err := c.Start(leaf.Float64); err != nil {
			log.Fatal(err)
		}
		for r := 0; r < 8; r++ {
			for k := 0; k < 8; k++ {
				_ = c.AddElement("1.5")
			}
			_ = c.EndVector()
		}
		_ = c.End()
		obj, err := c.GetReference()
		if err != nil {
			log.Fatal(err)
		}
		obj.Release()

		objs, err := e.LoadSignals(strings.NewReader(signals))
		if err != nil {
			log.Fatal(err)
		}
		for _, o := range objs {
			o.Release()
		}
	}
	pprof.WriteHeapProfile(prof)
	time.Sleep(*wait)
}
