package typesystem

import "strings"

// Module is a unit of metadata, the equivalent of one input assembly.
type Module struct {
	Name string
	// IsSystem marks the core library that defines primitives, Object and String.
	IsSystem bool
	// GeneratesPInvoke reports whether P/Invoke marshalling stubs for this
	// module's native methods are compiled ahead of time.
	GeneratesPInvoke bool

	index int
	types []*Type
}

// Index is the module's position in its Context, assigned at registration.
func (m *Module) Index() int {
	return m.index
}

// Types returns the type definitions of the module in definition order.
func (m *Module) Types() []*Type {
	return m.types
}

// Kind partitions types by their shape.
type Kind int

const (
	KindClass Kind = iota
	KindValueType
	KindInterface
	KindPrimitive
	KindArray
	KindGenericParameter
	KindCanon
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindValueType:
		return "valuetype"
	case KindInterface:
		return "interface"
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindGenericParameter:
		return "generic-parameter"
	case KindCanon:
		return "canon"
	default:
		return "unknown"
	}
}

// ElementType is the ECMA-335 CorElementType code used in signatures.
type ElementType byte

const (
	ElementTypeVoid        ElementType = 0x01
	ElementTypeBoolean     ElementType = 0x02
	ElementTypeChar        ElementType = 0x03
	ElementTypeI1          ElementType = 0x04
	ElementTypeU1          ElementType = 0x05
	ElementTypeI2          ElementType = 0x06
	ElementTypeU2          ElementType = 0x07
	ElementTypeI4          ElementType = 0x08
	ElementTypeU4          ElementType = 0x09
	ElementTypeI8          ElementType = 0x0A
	ElementTypeU8          ElementType = 0x0B
	ElementTypeR4          ElementType = 0x0C
	ElementTypeR8          ElementType = 0x0D
	ElementTypeString      ElementType = 0x0E
	ElementTypeValueType   ElementType = 0x11
	ElementTypeClass       ElementType = 0x12
	ElementTypeVar         ElementType = 0x13
	ElementTypeGenericInst ElementType = 0x15
	ElementTypeI           ElementType = 0x18
	ElementTypeU           ElementType = 0x19
	ElementTypeObject      ElementType = 0x1C
	ElementTypeSzArray     ElementType = 0x1D
	ElementTypeMVar        ElementType = 0x1E
	ElementTypeCanonZapSig ElementType = 0x3E
	ElementTypeModuleZap   ElementType = 0x3F
)

// GenericParameterKind tells type parameters (!0) from method parameters (!!0).
type GenericParameterKind int

const (
	TypeParameter GenericParameterKind = iota
	MethodParameter
)

// Type is a type definition, an instantiation, an array, a generic parameter
// or the canonical placeholder. Instances are unique per identity.
type Type struct {
	Module    *Module
	Namespace string
	Name      string
	Token     Token
	Kind      Kind
	// Element is set for primitives, Object and String.
	Element    ElementType
	IsDelegate bool

	// GenericParameterCount is the arity of a generic type definition.
	GenericParameterCount int
	// Definition and Instantiation are set on generic instantiations.
	Definition    *Type
	Instantiation []*Type

	// Elem is the element type of an array.
	Elem *Type

	ParameterKind  GenericParameterKind
	ParameterIndex int

	// LoadError is non-empty when the type cannot be loaded.
	LoadError string

	methods []*Method
	fields  []*Field
}

// HasInstantiation reports whether the type is a generic instantiation.
func (t *Type) HasInstantiation() bool {
	return len(t.Instantiation) > 0
}

// IsGenericDefinition reports whether the type is an open generic definition.
func (t *Type) IsGenericDefinition() bool {
	return t.GenericParameterCount > 0 && t.Definition == nil
}

// IsValueType reports whether instances of the type are stored inline.
func (t *Type) IsValueType() bool {
	switch t.Kind {
	case KindValueType:
		return true
	case KindPrimitive:
		return t.Element != ElementTypeObject && t.Element != ElementTypeString
	default:
		return false
	}
}

// TypicalDefinition returns the generic definition of an instantiation, or the
// type itself.
func (t *Type) TypicalDefinition() *Type {
	if t.Definition != nil {
		return t.Definition
	}
	return t
}

// IsRuntimeDetermined reports whether the type mentions a generic parameter,
// which makes it exist only relative to a runtime generic context.
func (t *Type) IsRuntimeDetermined() bool {
	switch t.Kind {
	case KindGenericParameter:
		return true
	case KindArray:
		return t.Elem.IsRuntimeDetermined()
	}
	for _, arg := range t.Instantiation {
		if arg.IsRuntimeDetermined() {
			return true
		}
	}
	return false
}

// IsCanonicalSubtype reports whether the type mentions the canonical placeholder.
func (t *Type) IsCanonicalSubtype() bool {
	switch t.Kind {
	case KindCanon:
		return true
	case KindArray:
		return t.Elem.IsCanonicalSubtype()
	}
	for _, arg := range t.Instantiation {
		if arg.IsCanonicalSubtype() {
			return true
		}
	}
	return false
}

// Methods returns the methods declared on a type definition.
func (t *Type) Methods() []*Method {
	return t.TypicalDefinition().methods
}

// Fields returns the fields declared on a type definition.
func (t *Type) Fields() []*Field {
	return t.TypicalDefinition().fields
}

// FindMethod returns the declared method with the given name.
func (t *Type) FindMethod(name string) *Method {
	for _, m := range t.TypicalDefinition().methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindField returns the declared field with the given name.
func (t *Type) FindField(name string) *Field {
	for _, f := range t.TypicalDefinition().fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Type) String() string {
	var sb strings.Builder
	writeTypeName(&sb, t)
	return sb.String()
}

// Method is a method definition, a method on an instantiated type or a
// generic method instantiation. Instances are unique per identity.
type Method struct {
	Owner *Type
	Name  string
	Token Token

	GenericParameterCount int
	// Definition is the typical definition: declared on the owner's generic
	// definition and not instantiated over method parameters.
	Definition    *Method
	Instantiation []*Type

	IsPInvoke        bool
	IsVirtual        bool
	RequireSecObject bool

	LoadError string
}

// HasInstantiation reports whether the method has generic arguments.
func (m *Method) HasInstantiation() bool {
	return len(m.Instantiation) > 0
}

// TypicalDefinition returns the uninstantiated method definition.
func (m *Method) TypicalDefinition() *Method {
	if m.Definition != nil {
		return m.Definition
	}
	return m
}

// IsSharedByGenericInstantiations reports whether the method body is shared
// code, i.e. it runs over the canonical placeholder.
func (m *Method) IsSharedByGenericInstantiations() bool {
	if m.Owner.IsCanonicalSubtype() {
		return true
	}
	for _, arg := range m.Instantiation {
		if arg.IsCanonicalSubtype() {
			return true
		}
	}
	return false
}

// IsRuntimeDetermined reports whether the owner or any method argument mentions
// a generic parameter.
func (m *Method) IsRuntimeDetermined() bool {
	if m.Owner.IsRuntimeDetermined() {
		return true
	}
	for _, arg := range m.Instantiation {
		if arg.IsRuntimeDetermined() {
			return true
		}
	}
	return false
}

func (m *Method) String() string {
	var sb strings.Builder
	writeMethodName(&sb, m)
	return sb.String()
}

// Field is a field definition or a field on an instantiated type.
type Field struct {
	Owner      *Type
	Name       string
	Token      Token
	Type       *Type
	IsStatic   bool
	Definition *Field

	LoadError string
}

// TypicalDefinition returns the field declared on the generic definition.
func (f *Field) TypicalDefinition() *Field {
	if f.Definition != nil {
		return f.Definition
	}
	return f
}

func (f *Field) String() string {
	var sb strings.Builder
	writeTypeName(&sb, f.Owner)
	sb.WriteString("::")
	sb.WriteString(f.Name)
	return sb.String()
}
