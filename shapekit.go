// Package shapekit ties the shape engine together: one Engine carries the
// conversion registry, the heap budget, scan limits and the logger, and
// hands them to the cloner, the builder and the signal loader.
package shapekit

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/pkg/anyobject"
	"github.com/rawbytedev/shapekit/pkg/clone"
	"github.com/rawbytedev/shapekit/pkg/convert"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/progressive"
	"github.com/rawbytedev/shapekit/pkg/satsize"
	"github.com/rawbytedev/shapekit/pkg/shape"
	"github.com/rawbytedev/shapekit/pkg/signals"
)

type Options struct {
	// PageSize is the default page size of builders and clones.
	PageSize uint32 `yaml:"page_size"`
	// MaxScan bounds zero-terminated runs, in elements.
	MaxScan uint32 `yaml:"max_scan"`
	// MaxStringLength bounds zero-terminated strings during conversion.
	MaxStringLength uint32 `yaml:"max_string_length"`
	// HeapLimit caps engine-owned bytes when Heap is nil; 0 is unlimited.
	HeapLimit uint64 `yaml:"heap_limit"`
	LogLevel  string `yaml:"log_level"`

	Heap   heap.Allocator     `yaml:"-"`
	Logger *zap.SugaredLogger `yaml:"-"`
}

type Engine struct {
	opts     Options
	log      *zap.SugaredLogger
	heap     heap.Allocator
	registry *convert.Registry
	cloner   clone.Cloner

	mu    sync.RWMutex
	plans map[planKey]shape.VariableDescriptor
}

type planKey struct {
	leaf, modifiers string
}

// New builds an engine. A nil Logger is replaced by one at LogLevel, or a
// no-op logger when LogLevel is empty.
func New(opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		if opts.LogLevel == "" {
			log = zap.NewNop().Sugar()
		} else {
			var err error
			if log, err = NewLogger(opts.LogLevel); err != nil {
				return nil, err
			}
		}
	}
	h := opts.Heap
	if h == nil {
		h = heap.Default
		if opts.HeapLimit > 0 {
			h = heap.NewBudget(opts.HeapLimit)
		}
	}
	if opts.MaxScan == 0 {
		opts.MaxScan = shape.DefaultMaxScan
	}
	e := &Engine{
		opts:     opts,
		log:      log,
		heap:     h,
		registry: convert.NewRegistry(convert.Options{MaxStringLength: opts.MaxStringLength}),
		plans:    make(map[planKey]shape.VariableDescriptor),
	}
	e.cloner = clone.Cloner{Heap: h, PageSize: opts.PageSize, Logger: log, MaxScan: opts.MaxScan}
	log.Debugw("engine ready", "page_size", opts.PageSize, "max_scan", opts.MaxScan, "heap_limit", opts.HeapLimit)
	return e, nil
}

func (e *Engine) Logger() *zap.SugaredLogger { return e.log }

func (e *Engine) Registry() *convert.Registry { return e.registry }

func (e *Engine) Heap() heap.Allocator { return e.heap }

// Descriptor parses a leaf name and a modifier string. Results are cached
// per pair.
func (e *Engine) Descriptor(leafName, modifiers string) (shape.VariableDescriptor, error) {
	key := planKey{leafName, modifiers}
	e.mu.RLock()
	if vd, ok := e.plans[key]; ok {
		e.mu.RUnlock()
		return vd, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if vd, ok := e.plans[key]; ok {
		return vd, nil
	}
	lt, err := leaf.Parse(leafName)
	if err != nil {
		return shape.VariableDescriptor{}, err
	}
	vd, err := shape.New(lt, modifiers)
	if err != nil {
		return shape.VariableDescriptor{}, err
	}
	vd = vd.WithScanLimit(e.opts.MaxScan)
	e.plans[key] = vd
	return vd, nil
}

// Describe returns the descriptor and address of the value p points to.
func (e *Engine) Describe(p any) (shape.VariableDescriptor, unsafe.Pointer, error) {
	vd, ptr, err := shape.Of(p)
	if err != nil {
		return vd, nil, err
	}
	return vd.WithScanLimit(e.opts.MaxScan), ptr, nil
}

// Size reports the data and overhead bytes reachable from p.
func (e *Engine) Size(p any) (data, overhead satsize.Size, err error) {
	vd, ptr, err := e.Describe(p)
	if err != nil {
		return data, overhead, err
	}
	return vd.GetSize(ptr)
}

// Clone deep-copies the variable at ptr into engine-owned memory.
func (e *Engine) Clone(vd shape.VariableDescriptor, ptr unsafe.Pointer) (anyobject.Object, error) {
	obj, err := e.cloner.Clone(vd.WithScanLimit(e.opts.MaxScan), ptr)
	if err != nil {
		e.log.Debugw("clone failed", "shape", vd.ToString(true), "err", err)
		return nil, err
	}
	return obj, nil
}

// CloneValue describes p and clones the value it points to.
func (e *Engine) CloneValue(p any) (anyobject.Object, error) {
	vd, ptr, err := e.Describe(p)
	if err != nil {
		return nil, err
	}
	return e.Clone(vd, ptr)
}

// Copy converts the value described by srcShape at src into dst, which has
// dstShape. Dynamic non-const destination vectors and matrices are resized.
func (e *Engine) Copy(srcShape shape.VariableDescriptor, src unsafe.Pointer, dstShape shape.VariableDescriptor, dst unsafe.Pointer) error {
	return srcShape.WithScanLimit(e.opts.MaxScan).CopyTo(src, dst, dstShape, e.registry, false)
}

// Compare walks both values like Copy and reports ErrComparisonFailure
// on the first element that differs after conversion.
func (e *Engine) Compare(aShape shape.VariableDescriptor, a unsafe.Pointer, bShape shape.VariableDescriptor, b unsafe.Pointer) error {
	return aShape.WithScanLimit(e.opts.MaxScan).CopyTo(a, b, bShape, e.registry, true)
}

// CopyValue copies *src into *dst, both described by reflection.
func (e *Engine) CopyValue(dst, src any) error {
	sv, sp, err := e.Describe(src)
	if err != nil {
		return err
	}
	dv, dp, err := e.Describe(dst)
	if err != nil {
		return err
	}
	return e.Copy(sv, sp, dv, dp)
}

// NewCreator returns a builder sharing the engine's heap, registry and
// logger. Builders are single-owner; create one per goroutine.
func (e *Engine) NewCreator() *progressive.Creator {
	return progressive.NewCreator(progressive.Options{
		PageSize: e.opts.PageSize,
		Heap:     e.heap,
		Registry: e.registry,
		Logger:   e.log,
	})
}

// LoadSignals builds every signal of a YAML document.
func (e *Engine) LoadSignals(r io.Reader) ([]anyobject.Object, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", errs.ErrParameters)
	}
	return signals.NewLoader(e.NewCreator(), e.log).Load(r)
}
