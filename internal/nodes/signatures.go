package nodes

import (
	"cmp"
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

type signatureBase struct {
	depgraph.NodeCore
	ctx SignatureContext
}

func (s *signatureBase) SignatureContext() SignatureContext { return s.ctx }

func (s *signatureBase) StaticDependenciesAreComputed() bool { return true }

func (s *signatureBase) Section() objdata.Section { return objdata.SectionRodata }

func (s *signatureBase) ShouldSkipEmitting(*Factory) bool { return false }

// MethodEntrySignature asks the loader for a method's entry point.
type MethodEntrySignature struct {
	signatureBase
	fixupKind           FixupKind
	method              MethodWithToken
	isUnboxingStub      bool
	isInstantiatingStub bool
}

func newMethodEntrySignature(kind FixupKind, method MethodWithToken, isUnboxingStub, isInstantiatingStub bool, ctx SignatureContext) (*MethodEntrySignature, error) {
	if err := typesystem.EnsureLoadableMethod(method.Method); err != nil {
		return nil, err
	}
	if method.ConstrainedType != nil {
		if err := typesystem.EnsureLoadableType(method.ConstrainedType); err != nil {
			return nil, err
		}
	}
	return &MethodEntrySignature{
		signatureBase:       signatureBase{ctx: ctx},
		fixupKind:           kind,
		method:              method,
		isUnboxingStub:      isUnboxingStub,
		isInstantiatingStub: isInstantiatingStub,
	}, nil
}

func (s *MethodEntrySignature) Name() string {
	return fmt.Sprintf("MethodEntrySignature(%s: %s, unboxing=%t, instantiating=%t)", s.fixupKind, s.method, s.isUnboxingStub, s.isInstantiatingStub)
}

func (s *MethodEntrySignature) GetStaticDependencies(f *Factory) DependencyList {
	if !s.isUnboxingStub {
		return nil
	}
	canonical := f.TypeSystem().CanonicalMethod(s.method.Method, typesystem.Specific)
	if !f.ModuleGroup().ContainsMethodBody(canonical) {
		return nil
	}
	var deps DependencyList
	deps.Add(f.CompiledMethodNode(canonical), "Unboxed method target")
	return deps
}

func (s *MethodEntrySignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(s.fixupKind, s.method.Token.Module, s.ctx)
	b.EmitMethodSignature(s.method, false, false, inner, s.isUnboxingStub, s.isInstantiatingStub)
	return b.Finish()
}

func (s *MethodEntrySignature) ClassCode() int { return classMethodEntrySignature }

func (s *MethodEntrySignature) CompareToImpl(other comparer.Node, _ *comparer.Comparer) int {
	o := other.(*MethodEntrySignature)
	if r := cmp.Compare(s.fixupKind, o.fixupKind); r != 0 {
		return r
	}
	if r := s.method.Compare(o.method); r != 0 {
		return r
	}
	if r := cmp.Compare(boolRank(s.isUnboxingStub), boolRank(o.isUnboxingStub)); r != 0 {
		return r
	}
	if r := cmp.Compare(boolRank(s.isInstantiatingStub), boolRank(o.isInstantiatingStub)); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}

// TypeFixupSignature asks the loader for a type handle, or for a type ready
// to be allocated when the kind is NewObject.
type TypeFixupSignature struct {
	signatureBase
	fixupKind FixupKind
	typ       *typesystem.Type
}

func newTypeFixupSignature(kind FixupKind, t *typesystem.Type, ctx SignatureContext) (*TypeFixupSignature, error) {
	if err := typesystem.EnsureLoadableType(t); err != nil {
		return nil, err
	}
	if t.IsRuntimeDetermined() {
		panic(fmt.Sprintf("nodes: type fixup for runtime-determined type %s", t))
	}
	return &TypeFixupSignature{signatureBase: signatureBase{ctx: ctx}, fixupKind: kind, typ: t}, nil
}

func (s *TypeFixupSignature) Name() string {
	return fmt.Sprintf("TypeFixupSignature(%s: %s)", s.fixupKind, s.typ)
}

func (s *TypeFixupSignature) GetStaticDependencies(f *Factory) DependencyList {
	if s.fixupKind != FixupNewObject {
		return nil
	}
	var deps DependencyList
	deps.Add(must(f.NecessaryTypeSymbol(s.typ)), "Type handle of constructed type")
	return deps
}

func (s *TypeFixupSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(s.fixupKind, typeModule(s.typ), s.ctx)
	b.EmitTypeSignature(s.typ, inner)
	return b.Finish()
}

func (s *TypeFixupSignature) ClassCode() int { return classTypeFixupSignature }

func (s *TypeFixupSignature) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*TypeFixupSignature)
	if r := cmp.Compare(s.fixupKind, o.fixupKind); r != 0 {
		return r
	}
	if r := c.CompareTypes(s.typ, o.typ); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}

// FieldFixupSignature asks the loader for a field handle or address.
type FieldFixupSignature struct {
	signatureBase
	fixupKind FixupKind
	field     *typesystem.Field
}

func newFieldFixupSignature(kind FixupKind, field *typesystem.Field, ctx SignatureContext) (*FieldFixupSignature, error) {
	if err := typesystem.EnsureLoadableField(field); err != nil {
		return nil, err
	}
	return &FieldFixupSignature{signatureBase: signatureBase{ctx: ctx}, fixupKind: kind, field: field}, nil
}

func (s *FieldFixupSignature) Name() string {
	return fmt.Sprintf("FieldFixupSignature(%s: %s)", s.fixupKind, s.field)
}

func (s *FieldFixupSignature) GetStaticDependencies(f *Factory) DependencyList {
	if s.field.Owner.IsRuntimeDetermined() {
		return nil
	}
	var deps DependencyList
	deps.Add(must(f.NecessaryTypeSymbol(s.field.Owner)), "Field owner type")
	return deps
}

func (s *FieldFixupSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(s.fixupKind, typeModule(s.field.Owner), s.ctx)
	b.EmitFieldSignature(s.field, inner)
	return b.Finish()
}

func (s *FieldFixupSignature) ClassCode() int { return classFieldFixupSignature }

func (s *FieldFixupSignature) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*FieldFixupSignature)
	if r := cmp.Compare(s.fixupKind, o.fixupKind); r != 0 {
		return r
	}
	if r := c.CompareFields(s.field, o.field); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}

// HelperSignature binds a cell to a runtime helper.
type HelperSignature struct {
	signatureBase
	helper ReadyToRunHelper
}

func newHelperSignature(helper ReadyToRunHelper, ctx SignatureContext) *HelperSignature {
	return &HelperSignature{signatureBase: signatureBase{ctx: ctx}, helper: helper}
}

func (s *HelperSignature) Name() string { return "HelperSignature(" + s.helper.String() + ")" }

func (s *HelperSignature) GetStaticDependencies(*Factory) DependencyList { return nil }

func (s *HelperSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	b.EmitByte(byte(FixupHelper))
	b.EmitUInt(uint32(s.helper))
	return b.Finish()
}

func (s *HelperSignature) ClassCode() int { return classHelperSignature }

func (s *HelperSignature) CompareToImpl(other comparer.Node, _ *comparer.Comparer) int {
	o := other.(*HelperSignature)
	if r := cmp.Compare(s.helper, o.helper); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}
