package typesystem

import (
	"cmp"
	"strings"
)

func compareModules(a, b *Module) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// CompareTypes orders types by metadata identity. Nil sorts first.
func CompareTypes(a, b *Type) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if r := cmp.Compare(a.Kind, b.Kind); r != 0 {
		return r
	}
	switch a.Kind {
	case KindGenericParameter:
		if r := cmp.Compare(a.ParameterKind, b.ParameterKind); r != 0 {
			return r
		}
		return cmp.Compare(a.ParameterIndex, b.ParameterIndex)
	case KindArray:
		return CompareTypes(a.Elem, b.Elem)
	}
	if r := compareModules(a.Module, b.Module); r != 0 {
		return r
	}
	if r := cmp.Compare(a.Token, b.Token); r != 0 {
		return r
	}
	if r := strings.Compare(qualifiedName(a.Namespace, a.Name), qualifiedName(b.Namespace, b.Name)); r != 0 {
		return r
	}
	return compareTypeLists(a.Instantiation, b.Instantiation)
}

func compareTypeLists(a, b []*Type) int {
	if r := cmp.Compare(len(a), len(b)); r != 0 {
		return r
	}
	for i := range a {
		if r := CompareTypes(a[i], b[i]); r != 0 {
			return r
		}
	}
	return 0
}

// CompareMethods orders methods by owner, token, name and method
// instantiation. Nil sorts first.
func CompareMethods(a, b *Method) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if r := CompareTypes(a.Owner, b.Owner); r != 0 {
		return r
	}
	if r := cmp.Compare(a.Token, b.Token); r != 0 {
		return r
	}
	if r := strings.Compare(a.Name, b.Name); r != 0 {
		return r
	}
	return compareTypeLists(a.Instantiation, b.Instantiation)
}

// CompareFields orders fields by owner, token and name. Nil sorts first.
func CompareFields(a, b *Field) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if r := CompareTypes(a.Owner, b.Owner); r != 0 {
		return r
	}
	if r := cmp.Compare(a.Token, b.Token); r != 0 {
		return r
	}
	return strings.Compare(a.Name, b.Name)
}

// CompareModules orders modules by name. Nil sorts first.
func CompareModules(a, b *Module) int {
	return compareModules(a, b)
}
