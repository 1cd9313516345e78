package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/leaf"
)

// Parser writes the value of text as one leaf element at dst.
type Parser func(text string, dst unsafe.Pointer) error

func parseError(text string, k leaf.Kind, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %q overflows %s", errs.ErrOutOfRange, text, k)
	}
	return fmt.Errorf("%w: %q is not a valid %s", errs.ErrParameters, text, k)
}

func textParser(k leaf.Kind) (Parser, bool) {
	if !common.IsFixedKind(k) {
		return nil, false
	}
	size := common.FixedSize(k)
	bitSize := size * 8
	switch k {
	case leaf.KindInt8, leaf.KindInt16, leaf.KindInt32, leaf.KindInt64:
		limit := uint64(1) << (bitSize - 1)
		return func(text string, dst unsafe.Pointer) error {
			neg, mag, err := parseInteger(text)
			if err != nil {
				return parseError(text, k, err)
			}
			if (neg && mag > limit) || (!neg && mag >= limit) {
				return parseError(text, k, strconv.ErrRange)
			}
			v := mag
			if neg {
				v = -mag
			}
			common.StoreBits(dst, size, v)
			return nil
		}, true
	case leaf.KindUint8, leaf.KindUint16, leaf.KindUint32, leaf.KindUint64:
		return func(text string, dst unsafe.Pointer) error {
			neg, v, err := parseInteger(text)
			if err != nil {
				return parseError(text, k, err)
			}
			if (neg && v != 0) || (bitSize < 64 && v>>bitSize != 0) {
				return parseError(text, k, strconv.ErrRange)
			}
			common.StoreBits(dst, size, v)
			return nil
		}, true
	case leaf.KindFloat32, leaf.KindFloat64:
		return func(text string, dst unsafe.Pointer) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(text), bitSize)
			if err != nil {
				return parseError(text, k, err)
			}
			bits, err := encode(number{class: classFloat, f: v}, k)
			if err != nil {
				return err
			}
			common.StoreBits(dst, size, bits)
			return nil
		}, true
	case leaf.KindBool:
		return func(text string, dst unsafe.Pointer) error {
			v, err := strconv.ParseBool(strings.TrimSpace(text))
			if err != nil {
				return parseError(text, k, err)
			}
			var b uint64
			if v {
				b = 1
			}
			common.StoreBits(dst, 1, b)
			return nil
		}, true
	case leaf.KindChar8:
		return func(text string, dst unsafe.Pointer) error {
			if len(text) != 1 {
				return fmt.Errorf("%w: %q is not a single character", errs.ErrParameters, text)
			}
			common.StoreBits(dst, 1, uint64(text[0]))
			return nil
		}, true
	}
	return nil, false
}

// parseInteger reads an optional sign, then digits in base 16, 8 or 2
// behind a 0x, 0o or 0b prefix, and in base 10 otherwise: a leading zero
// does not select octal.
func parseInteger(text string) (neg bool, mag uint64, err error) {
	s := strings.TrimSpace(text)
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			s = s[2:]
		}
	}
	mag, err = strconv.ParseUint(s, base, 64)
	return neg, mag, err
}

// stringToNumber converts zero-terminated strings into numeric leaves.
func stringToNumber(dst leaf.Kind, parse Parser, compare bool, maxLen uint32) OperatorFunc {
	size := uintptr(common.FixedSize(dst))
	return func(d, s unsafe.Pointer, n uint32) error {
		var scratch uint64
		for i := uintptr(0); i < uintptr(n); i++ {
			str := common.ReadPointer(unsafe.Add(s, i*uintptr(leaf.PointerSize)))
			if str == nil {
				return fmt.Errorf("%w: nil string at element %d", errs.ErrException, i)
			}
			dp := unsafe.Add(d, i*size)
			target := dp
			if compare {
				scratch = 0
				target = unsafe.Pointer(&scratch)
			}
			if err := parse(common.GoString(str, maxLen), target); err != nil {
				return err
			}
			if compare && common.LoadBits(dp, int(size)) != common.LoadBits(target, int(size)) {
				return fmt.Errorf("%w: element %d", errs.ErrComparisonFailure, i)
			}
		}
		return nil
	}
}

// stringToString copies string pointers, so the destination aliases the
// source characters; in compare mode it compares contents.
func stringToString(compare bool, maxLen uint32) OperatorFunc {
	step := uintptr(leaf.PointerSize)
	return func(d, s unsafe.Pointer, n uint32) error {
		for i := uintptr(0); i < uintptr(n); i++ {
			sp := common.ReadPointer(unsafe.Add(s, i*step))
			dslot := unsafe.Add(d, i*step)
			if !compare {
				common.WritePointer(dslot, sp)
				continue
			}
			dp := common.ReadPointer(dslot)
			if (sp == nil) != (dp == nil) {
				return fmt.Errorf("%w: element %d", errs.ErrComparisonFailure, i)
			}
			if sp != nil && common.GoString(sp, maxLen) != common.GoString(dp, maxLen) {
				return fmt.Errorf("%w: element %d", errs.ErrComparisonFailure, i)
			}
		}
		return nil
	}
}
