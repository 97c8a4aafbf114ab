package nodes

import (
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// NewArrayFixupSignature asks the loader for an allocator of a
// single-dimensional array type.
type NewArrayFixupSignature struct {
	signatureBase
	arrayType *typesystem.Type
}

func newNewArrayFixupSignature(arrayType *typesystem.Type, ctx SignatureContext) (*NewArrayFixupSignature, error) {
	if arrayType.Kind != typesystem.KindArray {
		panic(fmt.Sprintf("nodes: new-array fixup for non-array type %s", arrayType))
	}
	if err := typesystem.EnsureLoadableType(arrayType); err != nil {
		return nil, err
	}
	if arrayType.IsRuntimeDetermined() {
		panic(fmt.Sprintf("nodes: new-array fixup for runtime-determined type %s", arrayType))
	}
	return &NewArrayFixupSignature{signatureBase: signatureBase{ctx: ctx}, arrayType: arrayType}, nil
}

func (s *NewArrayFixupSignature) Name() string {
	return "NewArrayFixupSignature(" + s.arrayType.String() + ")"
}

// GetStaticDependencies adds the element type; the array type itself is
// synthesized by the runtime.
func (s *NewArrayFixupSignature) GetStaticDependencies(f *Factory) DependencyList {
	var deps DependencyList
	deps.Add(must(f.NecessaryTypeSymbol(s.arrayType.Elem)), "Type used as array element")
	return deps
}

func (s *NewArrayFixupSignature) GetData(_ *Factory, relocsOnly bool) objdata.ObjectData {
	b := NewSignatureBuilder(relocsOnly)
	b.AddSymbol(s)
	inner := b.EmitFixup(FixupNewArray, typeModule(s.arrayType), s.ctx)
	b.EmitTypeSignature(s.arrayType, inner)
	return b.Finish()
}

func (s *NewArrayFixupSignature) ClassCode() int { return classNewArrayFixup }

func (s *NewArrayFixupSignature) CompareToImpl(other comparer.Node, c *comparer.Comparer) int {
	o := other.(*NewArrayFixupSignature)
	if r := c.CompareTypes(s.arrayType, o.arrayType); r != 0 {
		return r
	}
	return s.ctx.Compare(o.ctx)
}
