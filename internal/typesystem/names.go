package typesystem

import (
	"strconv"
	"strings"
)

// writeTypeName renders a type as "[Module]Namespace.Name<args>", arrays as
// "elem[]" and generic parameters as "!n" or "!!n". The rendering is unique
// per identity and doubles as an interning key.
func writeTypeName(sb *strings.Builder, t *Type) {
	switch t.Kind {
	case KindGenericParameter:
		sb.WriteString(t.Name)
		return
	case KindArray:
		writeTypeName(sb, t.Elem)
		sb.WriteString("[]")
		return
	}
	if t.Module != nil {
		sb.WriteByte('[')
		sb.WriteString(t.Module.Name)
		sb.WriteByte(']')
	}
	sb.WriteString(qualifiedName(t.Namespace, t.Name))
	if t.GenericParameterCount > 0 && t.Definition == nil {
		sb.WriteByte('`')
		sb.WriteString(strconv.Itoa(t.GenericParameterCount))
	}
	writeTypeList(sb, t.Instantiation)
}

func writeTypeList(sb *strings.Builder, args []*Type) {
	if len(args) == 0 {
		return
	}
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeTypeName(sb, a)
	}
	sb.WriteByte('>')
}

func writeMethodName(sb *strings.Builder, m *Method) {
	writeTypeName(sb, m.Owner)
	sb.WriteString("::")
	sb.WriteString(m.Name)
	writeTypeList(sb, m.Instantiation)
}
