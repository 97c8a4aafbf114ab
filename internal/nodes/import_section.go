package nodes

import (
	"cmp"
	"fmt"
	"sync"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/objdata"
)

// ImportSectionKind partitions import cells by how the loader binds them.
type ImportSectionKind int

const (
	ImportSectionMethodEntries ImportSectionKind = iota
	ImportSectionTypeHandles
	ImportSectionHelpers
	ImportSectionDictionaryLookups
)

// ImportSectionKinds lists every kind in image order.
var ImportSectionKinds = []ImportSectionKind{
	ImportSectionMethodEntries,
	ImportSectionTypeHandles,
	ImportSectionHelpers,
	ImportSectionDictionaryLookups,
}

func (k ImportSectionKind) String() string {
	switch k {
	case ImportSectionMethodEntries:
		return "MethodEntries"
	case ImportSectionTypeHandles:
		return "TypeHandles"
	case ImportSectionHelpers:
		return "Helpers"
	case ImportSectionDictionaryLookups:
		return "DictionaryLookups"
	default:
		return fmt.Sprintf("ImportSection(%d)", int(k))
	}
}

// ImportSection is the table of import cells of one kind. Cells register
// themselves when marked, so the table is complete only once marking is.
type ImportSection struct {
	depgraph.NodeCore
	kind ImportSectionKind

	mu    sync.Mutex
	cells []ObjectNode
}

func newImportSection(kind ImportSectionKind) *ImportSection {
	return &ImportSection{kind: kind}
}

// Kind returns the section kind.
func (s *ImportSection) Kind() ImportSectionKind { return s.kind }

func (s *ImportSection) Name() string { return "ImportSection(" + s.kind.String() + ")" }

func (s *ImportSection) addCell(cell ObjectNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = append(s.cells, cell)
}

// Cells returns the registered cells in comparer order.
func (s *ImportSection) Cells(c *comparer.Comparer) []ObjectNode {
	s.mu.Lock()
	cells := append([]ObjectNode(nil), s.cells...)
	s.mu.Unlock()
	comparer.SortNodes(c, cells)
	return cells
}

func (s *ImportSection) StaticDependenciesAreComputed() bool { return true }

func (s *ImportSection) GetStaticDependencies(*Factory) DependencyList { return nil }

func (s *ImportSection) Section() objdata.Section { return objdata.SectionData }

func (s *ImportSection) ShouldSkipEmitting(*Factory) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells) == 0
}

// GetData writes the section kind, the cell count and one RVA per cell.
func (s *ImportSection) GetData(f *Factory, relocsOnly bool) objdata.ObjectData {
	if !f.MarkingComplete() {
		panic(fmt.Sprintf("nodes: %s emitted before marking completed", s.Name()))
	}
	cells := s.Cells(f.Comparer())
	b := objdata.NewBuilder(relocsOnly)
	b.RequireAlignment(4)
	b.AddSymbol(s)
	b.EmitUInt32(uint32(s.kind))
	b.EmitUInt32(uint32(len(cells)))
	for _, cell := range cells {
		b.EmitReloc(cell, objdata.RelocRVA32)
	}
	return b.Finish()
}

func (s *ImportSection) ClassCode() int { return classImportSection }

func (s *ImportSection) CompareToImpl(other comparer.Node, _ *comparer.Comparer) int {
	return cmp.Compare(s.kind, other.(*ImportSection).kind)
}
