package nodes

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

type (
	// Node is a dependency graph node expanded with a *Factory.
	Node = depgraph.Node[*Factory]
	// DependencyList is the dependency list type of Node.
	DependencyList = depgraph.DependencyList[*Factory]
)

// ObjectNode is a node that contributes bytes to the image.
type ObjectNode interface {
	Node
	comparer.Node

	Section() objdata.Section
	GetData(f *Factory, relocsOnly bool) objdata.ObjectData
	// ShouldSkipEmitting reports a marked node that produces nothing, such
	// as a code node whose dependencies were never computed.
	ShouldSkipEmitting(f *Factory) bool
}

// Signature is a fixup blob referenced from an import cell.
type Signature interface {
	ObjectNode
	SignatureContext() SignatureContext
}

// SignatureContext is the module that signature tokens are relative to.
type SignatureContext struct {
	Module *typesystem.Module
}

// Compare orders contexts by module name.
func (c SignatureContext) Compare(other SignatureContext) int {
	return typesystem.CompareModules(c.Module, other.Module)
}

func (c SignatureContext) String() string {
	if c.Module == nil {
		return "<none>"
	}
	return c.Module.Name
}

// MethodWithToken is a method together with the token it was referenced by
// and, for constrained calls, the constraining type. Two values are the same
// reference only when all three parts match.
type MethodWithToken struct {
	Method          *typesystem.Method
	Token           typesystem.ModuleToken
	ConstrainedType *typesystem.Type
}

// NewMethodWithToken pairs m with token. A null token falls back to the
// method's own definition token.
func NewMethodWithToken(m *typesystem.Method, token typesystem.ModuleToken, constrained *typesystem.Type) MethodWithToken {
	if token.IsNull() {
		token = DefinitionToken(m)
	}
	return MethodWithToken{Method: m, Token: token, ConstrainedType: constrained}
}

// DefinitionToken returns the MethodDef token of m's typical definition.
func DefinitionToken(m *typesystem.Method) typesystem.ModuleToken {
	def := m.TypicalDefinition()
	return typesystem.ModuleToken{Module: def.Owner.TypicalDefinition().Module, Token: def.Token}
}

// Compare orders by method, token, then constrained type.
func (m MethodWithToken) Compare(other MethodWithToken) int {
	if r := typesystem.CompareMethods(m.Method, other.Method); r != 0 {
		return r
	}
	if r := m.Token.Compare(other.Token); r != 0 {
		return r
	}
	return typesystem.CompareTypes(m.ConstrainedType, other.ConstrainedType)
}

// Key is a string unique per (method, token, constrained type).
func (m MethodWithToken) Key() string {
	return m.String()
}

func (m MethodWithToken) String() string {
	var sb strings.Builder
	sb.WriteString(m.Method.String())
	sb.WriteString(" @")
	sb.WriteString(m.Token.String())
	if m.ConstrainedType != nil {
		sb.WriteString(" constrained ")
		sb.WriteString(m.ConstrainedType.String())
	}
	return sb.String()
}

// GenericContext is the method or type whose generic dictionary a lookup
// reads from. Exactly one of Method and Type is set.
type GenericContext struct {
	Method *typesystem.Method
	Type   *typesystem.Type
}

// ContextType is the type owning the dictionary.
func (g GenericContext) ContextType() *typesystem.Type {
	if g.Method != nil {
		return g.Method.Owner
	}
	return g.Type
}

// Compare orders contexts with method contexts after type contexts.
func (g GenericContext) Compare(other GenericContext) int {
	if r := cmp.Compare(boolRank(g.Method != nil), boolRank(other.Method != nil)); r != 0 {
		return r
	}
	if g.Method != nil {
		return typesystem.CompareMethods(g.Method, other.Method)
	}
	return typesystem.CompareTypes(g.Type, other.Type)
}

func (g GenericContext) String() string {
	if g.Method != nil {
		return g.Method.String()
	}
	if g.Type != nil {
		return g.Type.String()
	}
	return "<none>"
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// typeModule is the module whose metadata defines t, or nil for generic
// parameters.
func typeModule(t *typesystem.Type) *typesystem.Module {
	switch t.Kind {
	case typesystem.KindGenericParameter:
		return nil
	case typesystem.KindArray:
		return typeModule(t.Elem)
	}
	return t.TypicalDefinition().Module
}

// must unwraps factory results inside dependency computation, where every
// entity was validated when the requesting node was built.
func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("nodes: dependency of a validated node failed to construct: %v", err))
	}
	return v
}
