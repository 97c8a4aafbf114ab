package nodes

import (
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// MethodCodeNode is the compiled body of a method. Its dependencies are known
// only after code generation, so the graph defers it to the compile batch.
type MethodCodeNode struct {
	depgraph.NodeCore
	method *typesystem.Method

	computed atomic.Bool
	code     *objdata.ObjectData
}

func newMethodCodeNode(m *typesystem.Method) *MethodCodeNode {
	return &MethodCodeNode{method: m}
}

// Method returns the compiled method.
func (n *MethodCodeNode) Method() *typesystem.Method { return n.method }

func (n *MethodCodeNode) Name() string { return "MethodCode(" + n.method.String() + ")" }

// SetCode commits generated code. Only called once per node.
func (n *MethodCodeNode) SetCode(code objdata.ObjectData) {
	for _, r := range code.Relocs {
		if _, ok := r.Target.(Node); !ok {
			panic(fmt.Sprintf("nodes: code for %s relocates against non-node symbol %s", n.method, r.Target.Name()))
		}
	}
	n.code = &code
	n.publish()
}

// SetUncompiled records that no code will be produced for the method. The
// node then emits a jump through a delay-load call cell, so callers bound to
// it reach the runtime JIT instead.
func (n *MethodCodeNode) SetUncompiled() {
	n.code = nil
	n.publish()
}

func (n *MethodCodeNode) publish() {
	if !n.computed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("nodes: code for %s was already committed", n.method))
	}
}

// HasCode reports whether code was committed.
func (n *MethodCodeNode) HasCode() bool {
	return n.computed.Load() && n.code != nil
}

func (n *MethodCodeNode) StaticDependenciesAreComputed() bool {
	return n.computed.Load()
}

// GetStaticDependencies reports every relocation target of the code, or
// the fallback call cell of an uncompiled method.
func (n *MethodCodeNode) GetStaticDependencies(f *Factory) DependencyList {
	var deps DependencyList
	if n.code == nil {
		if cell, err := n.fallback(f); err == nil {
			deps.Add(cell, "Runtime JIT fallback")
		}
		return deps
	}
	for _, r := range n.code.Relocs {
		deps.Add(r.Target.(Node), "Code relocation")
	}
	return deps
}

func (n *MethodCodeNode) fallback(f *Factory) (*MethodImport, error) {
	return f.MethodCallImport(NewMethodWithToken(n.method, typesystem.ModuleToken{}, nil), false, false)
}

func (n *MethodCodeNode) Section() objdata.Section { return objdata.SectionText }

// ShouldSkipEmitting reports an uncompiled method whose fallback cell could
// not be built; nothing can call such a method.
func (n *MethodCodeNode) ShouldSkipEmitting(f *Factory) bool {
	if !n.computed.Load() {
		return true
	}
	if n.code != nil {
		return false
	}
	_, err := n.fallback(f)
	return err != nil
}

func (n *MethodCodeNode) GetData(f *Factory, relocsOnly bool) objdata.ObjectData {
	if !n.computed.Load() {
		panic(fmt.Sprintf("nodes: %s emitted before compilation", n.Name()))
	}
	if n.code == nil {
		b := objdata.NewBuilder(relocsOnly)
		b.AddSymbol(n)
		b.EmitBytes([]byte{0xFF, 0x25})
		b.EmitReloc(must(n.fallback(f)), objdata.RelocRVA32)
		return b.Finish()
	}
	data := *n.code
	if relocsOnly {
		data.Data = nil
	}
	return data
}

func (n *MethodCodeNode) ClassCode() int { return classMethodCode }

func (n *MethodCodeNode) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	return c.CompareMethods(n.method, other.(*MethodCodeNode).method)
}
