package nodes

import (
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/nodecache"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Factory is the single source of node instances. Every entry point returns
// the same node for the same arguments, from any goroutine.
type Factory struct {
	ts       *typesystem.Context
	group    *modulegroup.Group
	sigCtx   SignatureContext
	comparer *comparer.Comparer

	sections        map[ImportSectionKind]*ImportSection
	markingComplete atomic.Bool

	methodCode    *nodecache.Cache[*MethodCodeNode]
	methodImports *nodecache.Cache[*MethodImport]
	imports       *nodecache.Cache[*Import]

	methodEntrySigs *nodecache.Cache[*MethodEntrySignature]
	typeSigs        *nodecache.Cache[*TypeFixupSignature]
	fieldSigs       *nodecache.Cache[*FieldFixupSignature]
	helperSigs      *nodecache.Cache[*HelperSignature]
	delegateSigs    *nodecache.Cache[*DelegateCtorSignature]
	lookupSigs      *nodecache.Cache[*GenericLookupSignature]
	newArraySigs    *nodecache.Cache[*NewArrayFixupSignature]
}

// NewFactory creates a factory for the compilation described by group.
// Signatures are encoded relative to the group's home module.
func NewFactory(ts *typesystem.Context, group *modulegroup.Group) *Factory {
	f := &Factory{
		ts:              ts,
		group:           group,
		sigCtx:          SignatureContext{Module: group.HomeModule()},
		comparer:        comparer.New(),
		sections:        make(map[ImportSectionKind]*ImportSection, len(ImportSectionKinds)),
		methodCode:      nodecache.New[*MethodCodeNode](),
		methodImports:   nodecache.New[*MethodImport](),
		imports:         nodecache.New[*Import](),
		methodEntrySigs: nodecache.New[*MethodEntrySignature](),
		typeSigs:        nodecache.New[*TypeFixupSignature](),
		fieldSigs:       nodecache.New[*FieldFixupSignature](),
		helperSigs:      nodecache.New[*HelperSignature](),
		delegateSigs:    nodecache.New[*DelegateCtorSignature](),
		lookupSigs:      nodecache.New[*GenericLookupSignature](),
		newArraySigs:    nodecache.New[*NewArrayFixupSignature](),
	}
	for _, kind := range ImportSectionKinds {
		f.sections[kind] = newImportSection(kind)
	}
	return f
}

func (f *Factory) TypeSystem() *typesystem.Context { return f.ts }

func (f *Factory) ModuleGroup() *modulegroup.Group { return f.group }

func (f *Factory) SignatureContext() SignatureContext { return f.sigCtx }

func (f *Factory) Comparer() *comparer.Comparer { return f.comparer }

// ImportSection returns the section of the given kind.
func (f *Factory) ImportSection(kind ImportSectionKind) *ImportSection {
	s, ok := f.sections[kind]
	if !ok {
		panic(fmt.Sprintf("nodes: unknown import section kind %s", kind))
	}
	return s
}

// ImportSections returns every section in image order.
func (f *Factory) ImportSections() []*ImportSection {
	out := make([]*ImportSection, 0, len(ImportSectionKinds))
	for _, kind := range ImportSectionKinds {
		out = append(out, f.sections[kind])
	}
	return out
}

// SetMarkingComplete records that the graph reached its fixed point. Import
// sections refuse to emit before that.
func (f *Factory) SetMarkingComplete() { f.markingComplete.Store(true) }

func (f *Factory) MarkingComplete() bool { return f.markingComplete.Load() }

// CompiledMethodNode returns the code node of a method compiled in this
// module group.
func (f *Factory) CompiledMethodNode(m *typesystem.Method) *MethodCodeNode {
	n, _ := f.methodCode.GetOrCreate(m.String(), func() (*MethodCodeNode, error) {
		return newMethodCodeNode(m), nil
	})
	return n
}

// MethodEntrypoint returns what a call to method binds to: the compiled body
// when it is generated locally in canonical form, otherwise an import cell.
func (f *Factory) MethodEntrypoint(method MethodWithToken, isUnboxingStub, isInstantiatingStub bool) (MethodNode, error) {
	m := method.Method
	if !isUnboxingStub && !isInstantiatingStub && f.group.ContainsMethodBody(m) && f.ts.IsCanonicalMethod(m) {
		if err := typesystem.EnsureLoadableMethod(m); err != nil {
			return nil, err
		}
		return f.CompiledMethodNode(m), nil
	}
	imp, err := f.MethodCallImport(method, isUnboxingStub, isInstantiatingStub)
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// MethodCallImport returns the delay-load cell for calling method.
func (f *Factory) MethodCallImport(method MethodWithToken, isUnboxingStub, isInstantiatingStub bool) (*MethodImport, error) {
	key := fmt.Sprintf("%s|unbox=%t|inst=%t", method.Key(), isUnboxingStub, isInstantiatingStub)
	return f.methodImports.GetOrCreate(key, func() (*MethodImport, error) {
		sig, err := f.methodEntrySignature(FixupMethodEntry, method, isUnboxingStub, isInstantiatingStub)
		if err != nil {
			return nil, err
		}
		section := f.ImportSection(ImportSectionMethodEntries)
		return newMethodImport(section, sig, method, isUnboxingStub, isInstantiatingStub, f.sigCtx), nil
	})
}

func (f *Factory) methodEntrySignature(kind FixupKind, method MethodWithToken, isUnboxingStub, isInstantiatingStub bool) (*MethodEntrySignature, error) {
	key := fmt.Sprintf("%s|%s|unbox=%t|inst=%t", kind, method.Key(), isUnboxingStub, isInstantiatingStub)
	return f.methodEntrySigs.GetOrCreate(key, func() (*MethodEntrySignature, error) {
		return newMethodEntrySignature(kind, method, isUnboxingStub, isInstantiatingStub, f.sigCtx)
	})
}

// NecessaryTypeSymbol returns the cell holding the type handle of t.
func (f *Factory) NecessaryTypeSymbol(t *typesystem.Type) (*Import, error) {
	sig, err := f.typeSignature(FixupTypeHandle, t)
	if err != nil {
		return nil, err
	}
	return f.importFor(ImportSectionTypeHandles, HelperDelayLoadHelper, sig)
}

// ConstructedTypeSymbol returns the cell that allocates instances of t.
func (f *Factory) ConstructedTypeSymbol(t *typesystem.Type) (*Import, error) {
	sig, err := f.typeSignature(FixupNewObject, t)
	if err != nil {
		return nil, err
	}
	return f.importFor(ImportSectionHelpers, HelperDelayLoadHelper, sig)
}

func (f *Factory) typeSignature(kind FixupKind, t *typesystem.Type) (*TypeFixupSignature, error) {
	return f.typeSigs.GetOrCreate(kind.String()+"|"+t.String(), func() (*TypeFixupSignature, error) {
		return newTypeFixupSignature(kind, t, f.sigCtx)
	})
}

// FieldAddress returns the cell resolving to the address of a static field.
func (f *Factory) FieldAddress(field *typesystem.Field) (*Import, error) {
	sig, err := f.fieldSigs.GetOrCreate(FixupFieldAddress.String()+"|"+field.String(), func() (*FieldFixupSignature, error) {
		return newFieldFixupSignature(FixupFieldAddress, field, f.sigCtx)
	})
	if err != nil {
		return nil, err
	}
	return f.importFor(ImportSectionHelpers, HelperDelayLoadHelper, sig)
}

// HelperImport returns the cell bound to a runtime helper.
func (f *Factory) HelperImport(helper ReadyToRunHelper) *Import {
	sig, _ := f.helperSigs.GetOrCreate(helper.String(), func() (*HelperSignature, error) {
		return newHelperSignature(helper, f.sigCtx), nil
	})
	return must(f.importFor(ImportSectionHelpers, HelperDelayLoadHelper, sig))
}

// NewArrayHelper returns the cell allocating arrays of arrayType.
func (f *Factory) NewArrayHelper(arrayType *typesystem.Type) (*Import, error) {
	sig, err := f.newArraySigs.GetOrCreate(arrayType.String(), func() (*NewArrayFixupSignature, error) {
		return newNewArrayFixupSignature(arrayType, f.sigCtx)
	})
	if err != nil {
		return nil, err
	}
	return f.importFor(ImportSectionHelpers, HelperDelayLoadHelper, sig)
}

// DelegateCtor returns the cell constructing delegateType over target.
func (f *Factory) DelegateCtor(delegateType *typesystem.Type, target MethodWithToken) (*Import, error) {
	key := delegateType.String() + "|" + target.Key()
	sig, err := f.delegateSigs.GetOrCreate(key, func() (*DelegateCtorSignature, error) {
		targetNode, err := f.MethodEntrypoint(target, false, false)
		if err != nil {
			return nil, err
		}
		return newDelegateCtorSignature(delegateType, targetNode, target.Token, f.sigCtx)
	})
	if err != nil {
		return nil, err
	}
	return f.importFor(ImportSectionHelpers, HelperDelayLoadHelper, sig)
}

// GenericLookupHelper returns the dictionary lookup cell shared code uses to
// fetch arg from the dictionary of gctx. It panics unless exactly one
// argument is set.
func (f *Factory) GenericLookupHelper(kind RuntimeLookupKind, fixup FixupKind, arg LookupArgument, gctx GenericContext) (*Import, error) {
	checkLookup(kind, arg)
	key := fmt.Sprintf("%s|%s|%s|%s", kind, fixup, arg, gctx)
	sig, err := f.lookupSigs.GetOrCreate(key, func() (*GenericLookupSignature, error) {
		return newGenericLookupSignature(kind, fixup, arg, gctx, f.sigCtx)
	})
	if err != nil {
		return nil, err
	}
	helper := HelperDelayLoadHelper
	if kind == LookupThisObj {
		helper = HelperDelayLoadHelperObj
	}
	return f.importFor(ImportSectionDictionaryLookups, helper, sig)
}

func (f *Factory) importFor(kind ImportSectionKind, helper ReadyToRunHelper, sig Signature) (*Import, error) {
	key := fmt.Sprintf("%s|%s|%s", kind, helper, sig.Name())
	return f.imports.GetOrCreate(key, func() (*Import, error) {
		return newImport(f.ImportSection(kind), helper, sig), nil
	})
}
