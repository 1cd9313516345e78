package shape

import (
	"strconv"
	"strings"

	"github.com/rawbytedev/shapekit/pkg/leaf"
)

var templateNames = map[TermKind]string{
	TermPlain:   "ZeroTerminatedArray<",
	TermDynamic: "DynamicZeroTerminatedArray<",
	TermStatic:  "StaticZeroTerminatedArray<",
}

// declarator renders ls around lt the way a C declaration reads:
// pointers prefix, arrays suffix, and dynamic layers become templates
// wrapping whatever they hold.
func declarator(ls Layers, lt leaf.Type) string {
	var decl string
	for i, l := range ls {
		switch l.Kind {
		case LayerArray:
			decl = arraySuffix(decl, l.Size)
		case LayerPointer:
			decl = pointerPrefix(l.Const) + decl
		case LayerFlatArray:
			decl = arraySuffix(pointerPrefix(l.Const)+decl, l.Size)
		default:
			return join2(template(l, declarator(ls[i+1:], lt)), decl)
		}
	}
	return join2(lt.String(), decl)
}

func pointerPrefix(konst bool) string {
	if konst {
		return "* const "
	}
	return "*"
}

func arraySuffix(decl string, n uint32) string {
	if strings.HasPrefix(decl, "*") {
		decl = "(" + strings.TrimSpace(decl) + ")"
	}
	return decl + "[" + strconv.FormatUint(uint64(n), 10) + "]"
}

func template(l Layer, inner string) string {
	var sb strings.Builder
	if l.Const {
		sb.WriteString("const ")
	}
	switch l.Kind {
	case LayerVector:
		sb.WriteString("Vector<")
	case LayerMatrix:
		sb.WriteString("Matrix<")
	default:
		sb.WriteString(templateNames[l.Term])
	}
	sb.WriteString(inner)
	if l.Kind == LayerZeroTerm && l.Term == TermStatic && l.Size > 0 {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(uint64(l.Size), 10))
	}
	sb.WriteByte('>')
	return sb.String()
}

func join2(base, decl string) string {
	switch {
	case decl == "":
		return base
	case strings.HasPrefix(decl, "["):
		return base + decl
	default:
		return base + " " + strings.TrimSpace(decl)
	}
}
