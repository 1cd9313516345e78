// Package shape pairs a leaf type with the layers wrapping it and walks
// raw memory according to that description.
package shape

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/satsize"
)

// DefaultMaxScan bounds zero-terminated scans, in elements.
const DefaultMaxScan = 1 << 20

// VariableDescriptor is a value: every operation that narrows it returns
// a new descriptor holding its own copy of the layers.
type VariableDescriptor struct {
	leaf    leaf.Type
	layers  Layers
	maxScan uint32
}

// New parses modifiers and pairs them with lt.
func New(lt leaf.Type, modifiers string) (VariableDescriptor, error) {
	ls, err := ParseLayers(modifiers)
	if err != nil {
		return VariableDescriptor{}, err
	}
	return FromLayers(lt, ls)
}

// FromLayers builds a descriptor over a copy of ls.
func FromLayers(lt leaf.Type, ls Layers) (VariableDescriptor, error) {
	if !lt.IsValid() {
		return VariableDescriptor{}, fmt.Errorf("%w: invalid leaf type", errs.ErrParameters)
	}
	return VariableDescriptor{leaf: lt, layers: ls.Clone(), maxScan: DefaultMaxScan}, nil
}

// MustNew is New for literals known to be valid.
func MustNew(lt leaf.Type, modifiers string) VariableDescriptor {
	vd, err := New(lt, modifiers)
	if err != nil {
		panic(err)
	}
	return vd
}

// ParseDescriptor reads the raw form produced by ToString(true).
func ParseDescriptor(raw string) (VariableDescriptor, error) {
	raw = strings.TrimSpace(raw)
	if mods, rest, ok := strings.Cut(raw, " "); ok {
		if ls, err := ParseLayers(mods); err == nil {
			if lt, err := leaf.Parse(rest); err == nil {
				return FromLayers(lt, ls)
			}
		}
	}
	lt, err := leaf.Parse(raw)
	if err != nil {
		return VariableDescriptor{}, err
	}
	return FromLayers(lt, nil)
}

func (vd VariableDescriptor) Leaf() leaf.Type { return vd.leaf }

// Layers returns a copy of the layers.
func (vd VariableDescriptor) Layers() Layers { return vd.layers.Clone() }

// Modifiers is the modifier string of the layers.
func (vd VariableDescriptor) Modifiers() string { return vd.layers.String() }

func (vd VariableDescriptor) IsValid() bool { return vd.leaf.IsValid() }

// IsFixed reports shapes made only of in-place arrays.
func (vd VariableDescriptor) IsFixed() bool { return vd.layers.IsFixed() }

// WithScanLimit bounds zero-terminated scans to n elements.
func (vd VariableDescriptor) WithScanLimit(n uint32) VariableDescriptor {
	if n == 0 {
		n = DefaultMaxScan
	}
	vd.maxScan = n
	vd.layers = vd.layers.Clone()
	return vd
}

func (vd VariableDescriptor) scanLimit() uint32 {
	if vd.maxScan == 0 {
		return DefaultMaxScan
	}
	return vd.maxScan
}

// Equal compares leaf and layers.
func (vd VariableDescriptor) Equal(o VariableDescriptor) bool {
	if !vd.leaf.SameAs(o.leaf) || len(vd.layers) != len(o.layers) {
		return false
	}
	for i := range vd.layers {
		if vd.layers[i] != o.layers[i] {
			return false
		}
	}
	return true
}

// ByteSize is the in-place size of the whole shape. Dynamic layers
// count their header or pointer only.
func (vd VariableDescriptor) ByteSize() satsize.Size {
	return LayerSize(vd.layers, vd.leaf)
}

// ElementSize is the in-place size of one element of the outermost layer.
func (vd VariableDescriptor) ElementSize() satsize.Size {
	if len(vd.layers) == 0 {
		return LayerSize(nil, vd.leaf)
	}
	return LayerSize(vd.layers[1:], vd.leaf)
}

// LayerSize is the in-place size of one value described by ls over lt.
func LayerSize(ls Layers, lt leaf.Type) satsize.Size {
	size := satsize.Of(1)
	for _, l := range ls {
		if l.Kind != LayerArray {
			return size.MulN(uint64(headerSize(l)))
		}
		size = size.MulN(uint64(l.Size))
	}
	return size.MulN(uint64(lt.StorageSize()))
}

// String is the human readable declarator form.
func (vd VariableDescriptor) String() string { return vd.ToString(false) }

// ToString renders the descriptor. The raw form is the modifier string
// and the leaf name separated by a space, or the leaf name alone.
func (vd VariableDescriptor) ToString(raw bool) string {
	if !raw {
		return declarator(vd.layers, vd.leaf)
	}
	if len(vd.layers) == 0 {
		return vd.leaf.String()
	}
	return vd.layers.String() + " " + vd.leaf.String()
}

// ---- Typed pointers ----

var (
	ofMu    sync.RWMutex
	ofCache = make(map[reflect.Type]VariableDescriptor)
	cstring = reflect.TypeOf(CString(nil))
)

// Of describes the value p points to and returns its address. Arrays
// become A layers, slices V layers, pointers P layers, CString a string
// leaf and structs opaque records.
func Of(p any) (VariableDescriptor, unsafe.Pointer, error) {
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return VariableDescriptor{}, nil, fmt.Errorf("%w: expected non-nil pointer, got %T", errs.ErrParameters, p)
	}
	vd, err := describe(v.Type().Elem())
	if err != nil {
		return VariableDescriptor{}, nil, err
	}
	return vd, v.UnsafePointer(), nil
}

func describe(t reflect.Type) (VariableDescriptor, error) {
	ofMu.RLock()
	if vd, ok := ofCache[t]; ok {
		ofMu.RUnlock()
		return vd, nil
	}
	ofMu.RUnlock()

	ofMu.Lock()
	defer ofMu.Unlock()
	if vd, ok := ofCache[t]; ok {
		return vd, nil
	}

	var ls Layers
	cur := t
	for done := false; !done && cur != cstring; {
		switch cur.Kind() {
		case reflect.Array:
			ls = append(ls, Array(uint32(cur.Len())))
		case reflect.Slice:
			ls = append(ls, Vector(false))
		case reflect.Pointer:
			ls = append(ls, Pointer(false))
		default:
			done = true
			continue
		}
		cur = cur.Elem()
	}
	var lt leaf.Type
	switch {
	case cur == cstring:
		lt = leaf.CString
	case cur.Kind() == reflect.Struct:
		lt = leaf.Struct(cur.String(), uint32(cur.Size()))
	default:
		var ok bool
		if lt, ok = leaf.FromKind(cur.Kind()); !ok {
			return VariableDescriptor{}, fmt.Errorf("%w: no leaf type for %s", errs.ErrUnsupportedFeature, cur)
		}
	}
	vd := VariableDescriptor{leaf: lt, layers: ls, maxScan: DefaultMaxScan}
	ofCache[t] = vd
	return vd, nil
}
