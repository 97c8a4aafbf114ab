package nodes

import (
	"cmp"
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// LookupArgument is the value a generic dictionary slot produces. Exactly one
// field must be set.
type LookupArgument struct {
	Type   *typesystem.Type
	Method *MethodWithToken
	Field  *typesystem.Field
}

func (a LookupArgument) count() int {
	n := 0
	if a.Type != nil {
		n++
	}
	if a.Method != nil {
		n++
	}
	if a.Field != nil {
		n++
	}
	return n
}

func (a LookupArgument) String() string {
	switch {
	case a.Method != nil:
		return a.Method.String()
	case a.Type != nil:
		return a.Type.String()
	case a.Field != nil:
		return a.Field.String()
	default:
		return "<none>"
	}
}

// GenericLookupSignature describes a runtime generic dictionary fetch made by
// shared code.
type GenericLookupSignature struct {
	signatureBase
	lookupKind RuntimeLookupKind
	fixupKind  FixupKind
	argument   LookupArgument
	context    GenericContext
}

// checkLookup panics unless exactly one lookup argument is set and the lookup
// kind is known.
func checkLookup(kind RuntimeLookupKind, arg LookupArgument) {
	if n := arg.count(); n != 1 {
		panic(fmt.Sprintf("nodes: generic lookup needs exactly one of type, method or field argument, got %d", n))
	}
	switch kind {
	case LookupThisObj, LookupClassParam, LookupMethodParam:
	default:
		panic(fmt.Sprintf("nodes: unsupported runtime lookup kind %s", kind))
	}
}

func newGenericLookupSignature(kind RuntimeLookupKind, fixup FixupKind, arg LookupArgument, gctx GenericContext, ctx SignatureContext) (*GenericLookupSignature, error) {
	checkLookup(kind, arg)

	var err error
	switch {
	case arg.Type != nil:
		err = typesystem.EnsureLoadableType(arg.Type)
	case arg.Method != nil:
		err = typesystem.EnsureLoadableMethod(arg.Method.Method)
		if err == nil && arg.Method.ConstrainedType != nil {
			err = typesystem.EnsureLoadableType(arg.Method.ConstrainedType)
		}
	default:
		err = typesystem.EnsureLoadableField(arg.Field)
	}
	if err != nil {
		return nil, err
	}
	if gctx.Method != nil {
		err = typesystem.EnsureLoadableMethod(gctx.Method)
	} else {
		err = typesystem.EnsureLoadableType(gctx.Type)
	}
	if err != nil {
		return nil, err
	}

	return &GenericLookupSignature{
		signatureBase: signatureBase{ctx: ctx},
		lookupKind:    kind,
		fixupKind:     fixup,
		argument:      arg,
		context:       gctx,
	}, nil
}

func (s *GenericLookupSignature) Name() string {
	return fmt.Sprintf("GenericLookupSignature(%s/%s: %s, context %s)", s.lookupKind, s.fixupKind, s.argument, s.context)
}

// GetStaticDependencies adds the looked-up type when it is a closed type;
// runtime-determined types have no standalone representation.
func (s *GenericLookupSignature) GetStaticDependencies(f *Factory) DependencyList {
	if s.argument.Type == nil || s.argument.Type.IsRuntimeDetermined() {
		return nil
	}
	var deps DependencyList
	deps.Add(must(f.NecessaryTypeSymbol(s.argument.Type)), "Type referenced in a generic lookup signature")
	return deps
}

func (s *GenericLookupSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	var fixup FixupKind
	var contextType *typesystem.Type
	switch s.lookupKind {
	case LookupClassParam:
		fixup = FixupTypeDictionaryLookup
	case LookupMethodParam:
		fixup = FixupMethodDictionaryLookup
	case LookupThisObj:
		fixup = FixupThisObjDictionaryLookup
		contextType = s.context.ContextType()
	default:
		panic(fmt.Sprintf("nodes: unsupported runtime lookup kind %s", s.lookupKind))
	}

	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(fixup, s.targetModule(), s.ctx)
	if contextType != nil {
		b.EmitTypeSignature(contextType, inner)
	}
	b.EmitByte(byte(s.fixupKind))
	switch {
	case s.argument.Method != nil:
		b.EmitMethodSignature(*s.argument.Method, false, false, inner, false, true)
	case s.argument.Type != nil:
		b.EmitTypeSignature(s.argument.Type, inner)
	default:
		b.EmitFieldSignature(s.argument.Field, inner)
	}
	return b.Finish()
}

// targetModule is the module the argument's tokens resolve in. Nil keeps the
// outer context.
func (s *GenericLookupSignature) targetModule() *typesystem.Module {
	switch {
	case s.argument.Method != nil:
		return s.argument.Method.Token.Module
	case s.argument.Type != nil:
		return typeModule(s.argument.Type)
	default:
		return typeModule(s.argument.Field.Owner)
	}
}

func (s *GenericLookupSignature) ClassCode() int { return classGenericLookup }

func (s *GenericLookupSignature) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*GenericLookupSignature)
	if r := cmp.Compare(s.lookupKind, o.lookupKind); r != 0 {
		return r
	}
	if r := cmp.Compare(s.fixupKind, o.fixupKind); r != 0 {
		return r
	}
	if r := c.CompareTypes(s.argument.Type, o.argument.Type); r != 0 {
		return r
	}
	if r := c.CompareFields(s.argument.Field, o.argument.Field); r != 0 {
		return r
	}
	if r := compareMethodArgs(s.argument.Method, o.argument.Method); r != 0 {
		return r
	}
	if r := s.context.Compare(o.context); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}

func compareMethodArgs(a, b *MethodWithToken) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
