// Package convert resolves element-wise conversion and comparison
// operators between leaf types, and parsers from text to a leaf.
package convert

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/satsize"
)

// Operator converts (or compares) n consecutive elements from src into dst.
type Operator interface {
	Convert(dst, src unsafe.Pointer, n uint32) error
}

// OperatorFunc adapts a function to Operator.
type OperatorFunc func(dst, src unsafe.Pointer, n uint32) error

func (f OperatorFunc) Convert(dst, src unsafe.Pointer, n uint32) error { return f(dst, src, n) }

type opKey struct {
	dst, src leaf.Kind
	compare  bool
}

// Options tunes a Registry.
type Options struct {
	// MaxStringLength bounds scans of zero-terminated strings.
	MaxStringLength uint32
}

const defaultMaxStringLength = 1 << 20

// Registry is built once by NewRegistry and never mutated afterwards,
// so one instance can be shared by any number of goroutines.
type Registry struct {
	opts    Options
	ops     map[opKey]Operator
	parsers map[leaf.Kind]Parser
}

var fixedKinds = []leaf.Kind{
	leaf.KindBool, leaf.KindChar8,
	leaf.KindInt8, leaf.KindUint8, leaf.KindInt16, leaf.KindUint16,
	leaf.KindInt32, leaf.KindUint32, leaf.KindInt64, leaf.KindUint64,
	leaf.KindFloat32, leaf.KindFloat64,
}

var stringKinds = []leaf.Kind{leaf.KindCCString, leaf.KindCString, leaf.KindDynamicCString}

func NewRegistry(opts Options) *Registry {
	if opts.MaxStringLength == 0 {
		opts.MaxStringLength = defaultMaxStringLength
	}
	r := &Registry{
		opts:    opts,
		ops:     make(map[opKey]Operator),
		parsers: make(map[leaf.Kind]Parser),
	}
	for _, k := range fixedKinds {
		p, _ := textParser(k)
		r.parsers[k] = p
	}
	for _, compare := range []bool{false, true} {
		for _, d := range fixedKinds {
			for _, s := range fixedKinds {
				r.ops[opKey{d, s, compare}] = numericOperator(d, s, compare)
			}
			for _, s := range stringKinds {
				r.ops[opKey{d, s, compare}] = stringToNumber(d, r.parsers[d], compare, opts.MaxStringLength)
			}
		}
		for _, d := range stringKinds {
			for _, s := range stringKinds {
				r.ops[opKey{d, s, compare}] = stringToString(compare, opts.MaxStringLength)
			}
		}
	}
	return r
}

// Lookup returns the operator converting src elements into dst elements.
// Identical fixed-size leaves (pointers, records) are copied bytewise.
// String to string copies store the source pointer: the destination
// shares the source characters and must not outlive them.
func (r *Registry) Lookup(dst, src leaf.Type, compare bool) (Operator, error) {
	if op, ok := r.ops[opKey{dst.Kind(), src.Kind(), compare}]; ok {
		return op, nil
	}
	if dst.Equal(src) && dst.StorageSize() > 0 {
		return rawOperator(dst.StorageSize(), compare), nil
	}
	return nil, fmt.Errorf("%w: no conversion from %s to %s", errs.ErrUnsupportedFeature, src, dst)
}

// Parser returns the text parser for t.
func (r *Registry) Parser(t leaf.Type) (Parser, error) {
	if p, ok := r.parsers[t.Kind()]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: cannot parse text into %s", errs.ErrUnsupportedFeature, t)
}

// MaxStringLength is the scan bound used for zero-terminated strings.
func (r *Registry) MaxStringLength() uint32 { return r.opts.MaxStringLength }

func rawOperator(size uint32, compare bool) OperatorFunc {
	return func(d, s unsafe.Pointer, n uint32) error {
		total, err := satsize.Of(uint64(size)).MulN(uint64(n)).Uint32()
		if err != nil {
			return err
		}
		if compare {
			if !bytes.Equal(common.Bytes(d, total), common.Bytes(s, total)) {
				return fmt.Errorf("%w: raw bytes differ", errs.ErrComparisonFailure)
			}
			return nil
		}
		common.Copy(d, s, total)
		return nil
	}
}
