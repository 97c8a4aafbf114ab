package codegen

import (
	"context"
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// x64 encodings used by the reference backend.
var (
	opPushRbp      = []byte{0x55}
	opRet          = []byte{0xC3}
	opCallRel32    = []byte{0xE8}
	opCallIndirect = []byte{0xFF, 0x15}
	opCallRax      = []byte{0xFF, 0xD0}
	opLoadRipRel   = []byte{0x48, 0x8B, 0x05}
)

var ilHelpers = map[ilcache.Helper]nodes.ReadyToRunHelper{
	ilcache.HelperPInvokeBegin: nodes.HelperPInvokeBegin,
	ilcache.HelperPInvokeEnd:   nodes.HelperPInvokeEnd,
}

// ReferenceBackend is a straight-line code generator: every IL operation
// becomes a call or load through the node it references. It produces real
// relocations against real nodes, which is all the graph needs.
type ReferenceBackend struct{}

// methodCompiler is the state of one CompileMethod call.
type methodCompiler struct {
	cg     *Context
	f      *nodes.Factory
	ts     *typesystem.Context
	method *typesystem.Method
	b      *objdata.Builder

	shared     bool
	typeArgs   []*typesystem.Type
	methodArgs []*typesystem.Type
}

// CompileMethod generates code for m. Resolution failures surface as
// *typesystem.TypeSystemError, bodies left to the runtime as
// ErrRequiresRuntimeJit and backend defects as *CodeGenerationFailedError.
func (ReferenceBackend) CompileMethod(ctx context.Context, cg *Context, m *typesystem.Method) (objdata.ObjectData, error) {
	host := cg.host
	if err := typesystem.EnsureLoadableMethod(m); err != nil {
		return objdata.ObjectData{}, err
	}
	if m.Owner.IsGenericDefinition() || (m.GenericParameterCount > 0 && !m.HasInstantiation()) {
		return objdata.ObjectData{}, requiresRuntimeJit("open generic definition")
	}
	il, err := host.GetMethodIL(m)
	if err != nil {
		return objdata.ObjectData{}, &CodeGenerationFailedError{Method: m, Reason: err.Error()}
	}
	if il == nil {
		return objdata.ObjectData{}, requiresRuntimeJit("method has no IL body")
	}

	mc := &methodCompiler{
		cg:         cg,
		f:          host.Factory(),
		ts:         host.TypeSystem(),
		method:     m,
		b:          cg.builder,
		shared:     m.IsSharedByGenericInstantiations(),
		typeArgs:   m.Owner.Instantiation,
		methodArgs: m.Instantiation,
	}
	mc.b.Reset(false)
	mc.b.AddSymbol(mc.f.CompiledMethodNode(m))
	mc.b.EmitBytes(opPushRbp)

	if host.IsModuleInstrumented(m.Owner.TypicalDefinition().Module) {
		mc.emitIndirectCall(mc.f.HelperImport(nodes.HelperLogMethodEnter))
	}
	for i, in := range il.Instructions {
		if err := mc.compile(ctx, in); err != nil {
			return objdata.ObjectData{}, fmt.Errorf("%s at instruction %d: %w", in.Op, i, err)
		}
	}
	mc.b.EmitBytes(opRet)

	cg.compiled++
	return mc.b.Finish(), nil
}

func (mc *methodCompiler) compile(ctx context.Context, in ilcache.Instruction) error {
	switch in.Op {
	case ilcache.OpCall:
		return mc.compileCall(ctx, in)
	case ilcache.OpNewArr:
		return mc.typeOperation(in.Type, nodes.FixupNewArray, mc.f.NewArrayHelper, mc.emitIndirectCall)
	case ilcache.OpNewObj:
		return mc.typeOperation(in.Type, nodes.FixupNewObject, mc.f.ConstructedTypeSymbol, mc.emitIndirectCall)
	case ilcache.OpLdToken:
		return mc.typeOperation(in.Type, nodes.FixupTypeHandle, mc.f.NecessaryTypeSymbol, mc.emitLoad)
	case ilcache.OpLdsflda:
		return mc.compileFieldAddress(in)
	case ilcache.OpDelegate:
		return mc.compileDelegate(in)
	case ilcache.OpHelper:
		helper, ok := ilHelpers[in.Helper]
		if !ok {
			return &CodeGenerationFailedError{Method: mc.method, Reason: fmt.Sprintf("unknown helper %s", in.Helper)}
		}
		mc.emitIndirectCall(mc.f.HelperImport(helper))
		return nil
	case ilcache.OpCalli:
		mc.b.EmitBytes(opCallRax)
		return nil
	case ilcache.OpLocalloc:
		return &CodeGenerationFailedError{Method: mc.method, Reason: "localloc is not supported"}
	default:
		return &CodeGenerationFailedError{Method: mc.method, Reason: fmt.Sprintf("unsupported operation %s", in.Op)}
	}
}

// lookup returns the dictionary lookup shared code uses to reach arg.
func (mc *methodCompiler) lookup(fixup nodes.FixupKind, arg nodes.LookupArgument) (*nodes.Import, error) {
	m := mc.method
	switch {
	case m.HasInstantiation():
		return mc.f.GenericLookupHelper(nodes.LookupMethodParam, fixup, arg, nodes.GenericContext{Method: m})
	case m.IsVirtual:
		return mc.f.GenericLookupHelper(nodes.LookupThisObj, fixup, arg, nodes.GenericContext{Type: m.Owner})
	default:
		return mc.f.GenericLookupHelper(nodes.LookupClassParam, fixup, arg, nodes.GenericContext{Type: m.Owner})
	}
}

// runtimeDetermined reports whether t can only be resolved through the
// generic dictionary.
func (mc *methodCompiler) runtimeDetermined(t *typesystem.Type) bool {
	return mc.shared && t.IsRuntimeDetermined()
}

func (mc *methodCompiler) typeOperation(t *typesystem.Type, fixup nodes.FixupKind, direct func(*typesystem.Type) (*nodes.Import, error), emit func(objdata.Symbol)) error {
	if t == nil {
		return &CodeGenerationFailedError{Method: mc.method, Reason: "missing type operand"}
	}
	if mc.runtimeDetermined(t) {
		cell, err := mc.lookup(fixup, nodes.LookupArgument{Type: t})
		if err != nil {
			return err
		}
		emit(cell)
		return nil
	}
	cell, err := direct(mc.ts.SubstituteType(t, mc.typeArgs, mc.methodArgs))
	if err != nil {
		return err
	}
	emit(cell)
	return nil
}

func (mc *methodCompiler) compileCall(ctx context.Context, in ilcache.Instruction) error {
	if in.Method == nil {
		return &CodeGenerationFailedError{Method: mc.method, Reason: "missing call target"}
	}
	if mc.shared && in.Method.IsRuntimeDetermined() {
		target := nodes.NewMethodWithToken(in.Method, in.Token, in.Constrained)
		cell, err := mc.lookup(nodes.FixupMethodEntry, nodes.LookupArgument{Method: &target})
		if err != nil {
			return err
		}
		mc.emitIndirectCall(cell)
		return nil
	}

	target := mc.ts.SubstituteMethod(in.Method, mc.typeArgs, mc.methodArgs)
	if err := typesystem.EnsureLoadableMethod(target); err != nil {
		return err
	}
	var constrained *typesystem.Type
	if in.Constrained != nil {
		constrained = mc.ts.SubstituteType(in.Constrained, mc.typeArgs, mc.methodArgs)
	}

	host := mc.cg.host
	if host.CanInline(mc.method, target) {
		if body, err := host.GetMethodIL(target); err == nil && body.IsTrivial() {
			ctxlog.FromContext(ctx).Debug("Inlined trivial callee.", "callee", target.String())
			return nil
		}
	}

	needsStub := !mc.ts.IsCanonicalMethod(target)
	node, err := mc.f.MethodEntrypoint(nodes.NewMethodWithToken(target, in.Token, constrained), false, needsStub)
	if err != nil {
		return err
	}
	if code, ok := node.(*nodes.MethodCodeNode); ok {
		mc.b.EmitBytes(opCallRel32)
		mc.b.EmitReloc(code, objdata.RelocRel32)
		return nil
	}
	mc.emitIndirectCall(node)
	return nil
}

func (mc *methodCompiler) compileFieldAddress(in ilcache.Instruction) error {
	if in.Field == nil {
		return &CodeGenerationFailedError{Method: mc.method, Reason: "missing field operand"}
	}
	if mc.runtimeDetermined(in.Field.Owner) {
		cell, err := mc.lookup(nodes.FixupFieldAddress, nodes.LookupArgument{Field: in.Field})
		if err != nil {
			return err
		}
		mc.emitLoad(cell)
		return nil
	}
	cell, err := mc.f.FieldAddress(mc.ts.SubstituteField(in.Field, mc.typeArgs, mc.methodArgs))
	if err != nil {
		return err
	}
	mc.emitLoad(cell)
	return nil
}

func (mc *methodCompiler) compileDelegate(in ilcache.Instruction) error {
	if in.Type == nil || in.Method == nil {
		return &CodeGenerationFailedError{Method: mc.method, Reason: "delegate construction needs a type and a target"}
	}
	if mc.runtimeDetermined(in.Type) || (mc.shared && in.Method.IsRuntimeDetermined()) {
		return requiresRuntimeJit("delegate construction over a shared generic target")
	}
	delegateType := mc.ts.SubstituteType(in.Type, mc.typeArgs, mc.methodArgs)
	target := mc.ts.SubstituteMethod(in.Method, mc.typeArgs, mc.methodArgs)
	cell, err := mc.f.DelegateCtor(delegateType, nodes.NewMethodWithToken(target, in.Token, nil))
	if err != nil {
		return err
	}
	mc.emitIndirectCall(cell)
	return nil
}

func (mc *methodCompiler) emitIndirectCall(cell objdata.Symbol) {
	mc.b.EmitBytes(opCallIndirect)
	mc.b.EmitReloc(cell, objdata.RelocRVA32)
}

func (mc *methodCompiler) emitLoad(cell objdata.Symbol) {
	mc.b.EmitBytes(opLoadRipRel)
	mc.b.EmitReloc(cell, objdata.RelocRVA32)
}
