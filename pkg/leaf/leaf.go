// Package leaf describes the scalar types a shape bottoms out at.
package leaf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unsafe"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindChar8
	KindPointer
	// KindCCString is a pointer to read-only zero-terminated bytes.
	KindCCString
	// KindCString is a pointer to writable zero-terminated bytes.
	KindCString
	// KindDynamicCString is a pointer to engine-allocated zero-terminated bytes.
	KindDynamicCString
	// KindStruct is an opaque structured record of a fixed size.
	KindStruct
)

// PointerSize is the storage size of pointers and string leaves.
const PointerSize = uint32(unsafe.Sizeof(uintptr(0)))

var kindNames = map[Kind]string{
	KindBool:           "bool",
	KindInt8:           "int8",
	KindUint8:          "uint8",
	KindInt16:          "int16",
	KindUint16:         "uint16",
	KindInt32:          "int32",
	KindUint32:         "uint32",
	KindInt64:          "int64",
	KindUint64:         "uint64",
	KindFloat32:        "float32",
	KindFloat64:        "float64",
	KindChar8:          "char8",
	KindPointer:        "pointer",
	KindCCString:       "CCString",
	KindCString:        "CString",
	KindDynamicCString: "DynamicCString",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	if k == KindStruct {
		return "struct"
	}
	return "invalid"
}

// Type is an immutable leaf descriptor. The zero value is invalid.
type Type struct {
	kind  Kind
	konst bool
	size  uint32
	name  string
}

var (
	Bool           = Type{kind: KindBool}
	Int8           = Type{kind: KindInt8}
	Uint8          = Type{kind: KindUint8}
	Int16          = Type{kind: KindInt16}
	Uint16         = Type{kind: KindUint16}
	Int32          = Type{kind: KindInt32}
	Uint32         = Type{kind: KindUint32}
	Int64          = Type{kind: KindInt64}
	Uint64         = Type{kind: KindUint64}
	Float32        = Type{kind: KindFloat32}
	Float64        = Type{kind: KindFloat64}
	Char8          = Type{kind: KindChar8}
	Pointer        = Type{kind: KindPointer}
	CCString       = Type{kind: KindCCString, konst: true}
	CString        = Type{kind: KindCString}
	DynamicCString = Type{kind: KindDynamicCString}
)

// Struct returns an opaque record type of the given name and size.
func Struct(name string, size uint32) Type {
	return Type{kind: KindStruct, size: size, name: name}
}

func (t Type) Kind() Kind { return t.kind }
func (t Type) IsValid() bool { return t.kind != KindInvalid }
func (t Type) IsConst() bool { return t.konst }
func (t Type) Name() string { return t.name }
func (t Type) IsStructuredData() bool { return t.kind == KindStruct }

// WithConst returns t with the const flag set to c.
// CCString is always const.
func (t Type) WithConst(c bool) Type {
	t.konst = c || t.kind == KindCCString
	return t
}

// StorageSize is the number of bytes one element occupies in place.
func (t Type) StorageSize() uint32 {
	switch t.kind {
	case KindBool, KindInt8, KindUint8, KindChar8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	case KindPointer, KindCCString, KindCString, KindDynamicCString:
		return PointerSize
	case KindStruct:
		return t.size
	default:
		return 0
	}
}

// IsBasicType reports numeric, bool, char and raw pointer leaves.
func (t Type) IsBasicType() bool {
	return t.kind >= KindBool && t.kind <= KindPointer
}

func (t Type) IsCharString() bool {
	return t.kind == KindCCString || t.kind == KindCString || t.kind == KindDynamicCString
}

func (t Type) IsNumeric() bool {
	return t.kind >= KindBool && t.kind <= KindChar8
}

func (t Type) IsFloat() bool { return t.kind == KindFloat32 || t.kind == KindFloat64 }

func (t Type) IsSigned() bool {
	switch t.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindFloat32, KindFloat64:
		return true
	}
	return false
}

// Equal compares kind and size, ignoring the const flag.
func (t Type) Equal(o Type) bool {
	return t.kind == o.kind && t.size == o.size && t.name == o.name
}

// SameAs is Equal including the const flag.
func (t Type) SameAs(o Type) bool { return t == o }

func (t Type) String() string {
	var b strings.Builder
	if t.konst && t.kind != KindCCString {
		b.WriteString("const ")
	}
	if t.kind == KindStruct {
		fmt.Fprintf(&b, "struct:%s:%d", t.name, t.size)
		return b.String()
	}
	b.WriteString(t.kind.String())
	return b.String()
}

// Parse reads the textual form produced by String.
func Parse(text string) (Type, error) {
	s := strings.TrimSpace(text)
	konst := false
	if rest, ok := strings.CutPrefix(s, "const "); ok {
		konst = true
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(s, "struct:"); ok {
		i := strings.LastIndexByte(rest, ':')
		if i <= 0 {
			return Type{}, fmt.Errorf("%w: malformed struct leaf %q", errs.ErrParameters, text)
		}
		n, err := strconv.ParseUint(rest[i+1:], 10, 32)
		if err != nil || n == 0 {
			return Type{}, fmt.Errorf("%w: malformed struct size in %q", errs.ErrParameters, text)
		}
		return Struct(rest[:i], uint32(n)).WithConst(konst), nil
	}
	k, ok := namesToKind[s]
	if !ok {
		return Type{}, fmt.Errorf("%w: unknown leaf type %q", errs.ErrParameters, text)
	}
	return Type{kind: k}.WithConst(konst), nil
}

// FromKind maps a fixed-size Go kind to its leaf type.
func FromKind(k reflect.Kind) (Type, bool) {
	switch k {
	case reflect.Bool:
		return Bool, true
	case reflect.Int8:
		return Int8, true
	case reflect.Uint8:
		return Uint8, true
	case reflect.Int16:
		return Int16, true
	case reflect.Uint16:
		return Uint16, true
	case reflect.Int32:
		return Int32, true
	case reflect.Uint32:
		return Uint32, true
	case reflect.Int64, reflect.Int:
		if k == reflect.Int && PointerSize != 8 {
			return Int32, true
		}
		return Int64, true
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		if k != reflect.Uint64 && PointerSize != 8 {
			return Uint32, true
		}
		return Uint64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.UnsafePointer:
		return Pointer, true
	default:
		return Type{}, false
	}
}
