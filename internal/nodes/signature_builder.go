package nodes

import (
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// SignatureBuilder encodes fixup blobs on top of an objdata.Builder.
type SignatureBuilder struct {
	*objdata.Builder
}

// NewSignatureBuilder returns a builder in full or relocs-only mode.
func NewSignatureBuilder(relocsOnly bool) *SignatureBuilder {
	return &SignatureBuilder{Builder: objdata.NewBuilder(relocsOnly)}
}

// EmitUInt writes a compressed unsigned integer.
func (b *SignatureBuilder) EmitUInt(v uint32) {
	b.EmitCompressedUInt(v)
}

// EmitFixup writes the fixup kind. When targetModule differs from the outer
// context the ModuleOverride flag and the module index follow, and the
// returned context is relative to targetModule.
func (b *SignatureBuilder) EmitFixup(kind FixupKind, targetModule *typesystem.Module, outer SignatureContext) SignatureContext {
	if targetModule == nil || targetModule == outer.Module {
		b.EmitByte(byte(kind))
		return outer
	}
	b.EmitByte(byte(kind | FixupModuleOverride))
	b.EmitUInt(uint32(targetModule.Index()))
	return SignatureContext{Module: targetModule}
}

// EmitTypeSignature writes t in ECMA-335 type signature form.
func (b *SignatureBuilder) EmitTypeSignature(t *typesystem.Type, ctx SignatureContext) {
	switch t.Kind {
	case typesystem.KindGenericParameter:
		if t.ParameterKind == typesystem.MethodParameter {
			b.EmitByte(byte(typesystem.ElementTypeMVar))
		} else {
			b.EmitByte(byte(typesystem.ElementTypeVar))
		}
		b.EmitUInt(uint32(t.ParameterIndex))
		return
	case typesystem.KindArray:
		b.EmitByte(byte(typesystem.ElementTypeSzArray))
		b.EmitTypeSignature(t.Elem, ctx)
		return
	}

	if t.HasInstantiation() {
		b.EmitByte(byte(typesystem.ElementTypeGenericInst))
		b.emitTypeToken(t.Definition, ctx)
		b.EmitUInt(uint32(len(t.Instantiation)))
		for _, arg := range t.Instantiation {
			b.EmitTypeSignature(arg, ctx)
		}
		return
	}
	if t.Element != 0 {
		b.EmitByte(byte(t.Element))
		return
	}
	b.emitTypeToken(t, ctx)
}

func (b *SignatureBuilder) emitTypeToken(def *typesystem.Type, ctx SignatureContext) {
	if def.Module != ctx.Module {
		b.EmitByte(byte(typesystem.ElementTypeModuleZap))
		b.EmitUInt(uint32(def.Module.Index()))
	}
	if def.IsValueType() {
		b.EmitByte(byte(typesystem.ElementTypeValueType))
	} else {
		b.EmitByte(byte(typesystem.ElementTypeClass))
	}
	b.EmitUInt(typeDefOrRefEncoded(def.Token))
}

// typeDefOrRefEncoded packs a token as a TypeDefOrRefOrSpec coded index.
func typeDefOrRefEncoded(tok typesystem.Token) uint32 {
	var tag uint32
	switch tok.Table() {
	case typesystem.TokenTypeDef:
		tag = 0
	case typesystem.TokenTypeRef:
		tag = 1
	case typesystem.TokenTypeSpec:
		tag = 2
	default:
		panic(fmt.Sprintf("nodes: token %s is not a type token", tok))
	}
	return tok.RID()<<2 | tag
}

// EmitMethodSignature writes the flags, optional owner and constrained type,
// the method token row and the method instantiation.
func (b *SignatureBuilder) EmitMethodSignature(method MethodWithToken, enforceDefEncoding, enforceOwnerType bool, ctx SignatureContext, isUnboxingStub, isInstantiatingStub bool) {
	m := method.Method
	var flags uint32
	if isUnboxingStub {
		flags |= methodFlagUnboxingStub
	}
	if isInstantiatingStub {
		flags |= methodFlagInstantiatingStub
	}
	if m.HasInstantiation() {
		flags |= methodFlagMethodInstantiation
	}
	rid := m.TypicalDefinition().Token.RID()
	if !enforceDefEncoding {
		switch method.Token.Token.Table() {
		case typesystem.TokenMemberRef:
			flags |= methodFlagMemberRefToken
			rid = method.Token.Token.RID()
		case typesystem.TokenMethodDef:
			rid = method.Token.Token.RID()
		}
	}
	if method.ConstrainedType != nil {
		flags |= methodFlagConstrained
	}
	ownerType := enforceOwnerType || m.Owner.HasInstantiation()
	if ownerType {
		flags |= methodFlagOwnerType
	}

	b.EmitUInt(flags)
	if ownerType {
		b.EmitTypeSignature(m.Owner, ctx)
	}
	if method.ConstrainedType != nil {
		b.EmitTypeSignature(method.ConstrainedType, ctx)
	}
	b.EmitUInt(rid)
	if m.HasInstantiation() {
		b.EmitUInt(uint32(len(m.Instantiation)))
		for _, arg := range m.Instantiation {
			b.EmitTypeSignature(arg, ctx)
		}
	}
}

// EmitFieldSignature writes the flags, optional owner and the field row.
func (b *SignatureBuilder) EmitFieldSignature(f *typesystem.Field, ctx SignatureContext) {
	var flags uint32
	if f.Owner.HasInstantiation() {
		flags |= fieldFlagOwnerType
	}
	b.EmitUInt(flags)
	if flags&fieldFlagOwnerType != 0 {
		b.EmitTypeSignature(f.Owner, ctx)
	}
	b.EmitUInt(f.TypicalDefinition().Token.RID())
}
