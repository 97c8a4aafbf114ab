package nodes

import (
	"cmp"
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// importCell is the state shared by every delay-load cell: the section it
// lives in, the signature the loader resolves and the helper that does it.
type importCell struct {
	depgraph.NodeCore
	section   *ImportSection
	helper    ReadyToRunHelper
	signature Signature
}

func (c *importCell) cellDependencies() DependencyList {
	var deps DependencyList
	deps.Add(c.signature, "Signature for ready-to-run fixup")
	deps.Add(c.section, "Import section")
	return deps
}

// cellData is an 8-byte slot: the signature RVA followed by the helper that
// resolves it on first use.
func (c *importCell) cellData(self ObjectNode, relocsOnly bool) objdata.ObjectData {
	b := objdata.NewBuilder(relocsOnly)
	b.RequireAlignment(8)
	b.AddSymbol(self)
	b.EmitReloc(c.signature, objdata.RelocRVA32)
	b.EmitUInt32(uint32(c.helper))
	return b.Finish()
}

func (c *importCell) compareCell(other *importCell, cm *comparer.Comparer) int {
	if r := cmp.Compare(c.helper, other.helper); r != 0 {
		return r
	}
	if r := cm.Compare(c.signature, other.signature); r != 0 {
		return r
	}
	return cmp.Compare(c.section.kind, other.section.kind)
}

// Signature returns the fixup signature of the cell.
func (c *importCell) Signature() Signature { return c.signature }

// ImportSection returns the section the cell is registered with.
func (c *importCell) ImportSection() *ImportSection { return c.section }

func (c *importCell) StaticDependenciesAreComputed() bool { return true }

func (c *importCell) Section() objdata.Section { return objdata.SectionData }

func (c *importCell) ShouldSkipEmitting(*Factory) bool { return false }

// Import is a delay-load helper import: an indirection cell generated code
// goes through, resolved by the runtime on first use.
type Import struct {
	importCell
}

func newImport(section *ImportSection, helper ReadyToRunHelper, sig Signature) *Import {
	return &Import{importCell{section: section, helper: helper, signature: sig}}
}

func (i *Import) Name() string {
	return fmt.Sprintf("DelayLoadHelperImport(%s, %s)", i.helper, i.signature.Name())
}

func (i *Import) GetStaticDependencies(*Factory) DependencyList {
	return i.cellDependencies()
}

func (i *Import) OnMarked(*Factory) { i.section.addCell(i) }

func (i *Import) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	return i.cellData(i, relocsOnly)
}

func (i *Import) ClassCode() int { return classDelayLoadHelperImport }

func (i *Import) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	return i.compareCell(&other.(*Import).importCell, c)
}

// MethodImport is a delay-load cell for a method call. When the call goes
// through an instantiating stub the shared canonical body must exist too.
type MethodImport struct {
	importCell
	method               MethodWithToken
	isUnboxingStub       bool
	useInstantiatingStub bool
	signatureContext     SignatureContext
}

func newMethodImport(section *ImportSection, sig Signature, method MethodWithToken, isUnboxingStub, useInstantiatingStub bool, ctx SignatureContext) *MethodImport {
	return &MethodImport{
		importCell:           importCell{section: section, helper: HelperDelayLoadMethodCall, signature: sig},
		method:               method,
		isUnboxingStub:       isUnboxingStub,
		useInstantiatingStub: useInstantiatingStub,
		signatureContext:     ctx,
	}
}

// Method returns the call target.
func (i *MethodImport) Method() MethodWithToken { return i.method }

// UsesInstantiatingStub reports whether the call needs an instantiating stub.
func (i *MethodImport) UsesInstantiatingStub() bool { return i.useInstantiatingStub }

func (i *MethodImport) Name() string {
	return fmt.Sprintf("DelayLoadHelperMethodImport(%s, stub=%t, %s)", i.method, i.useInstantiatingStub, i.signature.Name())
}

func (i *MethodImport) GetStaticDependencies(f *Factory) DependencyList {
	deps := i.cellDependencies()
	if i.useInstantiatingStub {
		canonical := f.TypeSystem().CanonicalMethod(i.method.Method, typesystem.Specific)
		target := NewMethodWithToken(canonical, i.method.Token, i.method.ConstrainedType)
		deps.Add(must(f.MethodEntrypoint(target, false, false)), "Canonical method for instantiating stub")
	}
	return deps
}

func (i *MethodImport) OnMarked(*Factory) { i.section.addCell(i) }

func (i *MethodImport) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	return i.cellData(i, relocsOnly)
}

func (i *MethodImport) ClassCode() int { return classDelayLoadMethodImport }

func (i *MethodImport) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*MethodImport)
	if r := cmp.Compare(boolRank(i.useInstantiatingStub), boolRank(o.useInstantiatingStub)); r != 0 {
		return r
	}
	if r := i.signatureContext.Compare(o.signatureContext); r != 0 {
		return r
	}
	if r := i.method.Compare(o.method); r != 0 {
		return r
	}
	if r := cmp.Compare(boolRank(i.isUnboxingStub), boolRank(o.isUnboxingStub)); r != 0 {
		return r
	}
	return i.compareCell(&o.importCell, c)
}
