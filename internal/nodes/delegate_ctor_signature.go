package nodes

import (
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// MethodNode is an object node standing for a method entry point: either its
// compiled body or an import cell resolving to it.
type MethodNode interface {
	ObjectNode
	TargetMethod() *typesystem.Method
}

// TargetMethod implements MethodNode.
func (n *MethodCodeNode) TargetMethod() *typesystem.Method { return n.method }

// TargetMethod implements MethodNode.
func (i *MethodImport) TargetMethod() *typesystem.Method { return i.method.Method }

// DelegateCtorSignature describes a delegate construction over a target
// method, so the runtime can build the delegate without resolving tokens.
type DelegateCtorSignature struct {
	signatureBase
	delegateType *typesystem.Type
	targetMethod MethodNode
	methodToken  typesystem.ModuleToken
}

func newDelegateCtorSignature(delegateType *typesystem.Type, target MethodNode, token typesystem.ModuleToken, ctx SignatureContext) (*DelegateCtorSignature, error) {
	if err := typesystem.EnsureLoadableType(delegateType); err != nil {
		return nil, err
	}
	if err := typesystem.EnsureLoadableMethod(target.TargetMethod()); err != nil {
		return nil, err
	}
	if !delegateType.TypicalDefinition().IsDelegate {
		return nil, &typesystem.TypeSystemError{Entity: delegateType.String(), Reason: "type is not a delegate"}
	}
	return &DelegateCtorSignature{
		signatureBase: signatureBase{ctx: ctx},
		delegateType:  delegateType,
		targetMethod:  target,
		methodToken:   token,
	}, nil
}

func (s *DelegateCtorSignature) Name() string {
	return fmt.Sprintf("DelegateCtorSignature(%s, %s @%s)", s.delegateType, s.targetMethod.TargetMethod(), s.methodToken)
}

func (s *DelegateCtorSignature) GetStaticDependencies(*Factory) DependencyList {
	var deps DependencyList
	deps.Add(s.targetMethod, "Delegate target method")
	return deps
}

// GetData writes the DelegateCtor fixup relative to the token's module, the
// target method signature and the delegate type.
func (s *DelegateCtorSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(FixupDelegateCtor, s.methodToken.Module, s.ctx)
	target := s.targetMethod.TargetMethod()
	b.EmitMethodSignature(MethodWithToken{Method: target, Token: s.methodToken}, false, false, inner, false, target.HasInstantiation())
	b.EmitTypeSignature(s.delegateType, inner)
	return b.Finish()
}

func (s *DelegateCtorSignature) ClassCode() int { return classDelegateCtorSignature }

func (s *DelegateCtorSignature) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*DelegateCtorSignature)
	if r := c.CompareTypes(s.delegateType, o.delegateType); r != 0 {
		return r
	}
	if r := c.Compare(s.targetMethod, o.targetMethod); r != 0 {
		return r
	}
	if r := s.methodToken.Compare(o.methodToken); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}
