// Package objdata holds the byte payloads nodes contribute to the image and
// the builder they use to produce them.
package objdata

import "fmt"

// Symbol is anything a relocation can point at. Graph nodes are symbols.
type Symbol interface {
	Name() string
}

// RelocType selects how a relocation target's address is written.
type RelocType int

const (
	// RelocRVA32 writes the target's image-relative address.
	RelocRVA32 RelocType = iota
	// RelocRel32 writes target - (site + 4), as used by call displacements.
	RelocRel32
)

func (t RelocType) String() string {
	switch t {
	case RelocRVA32:
		return "rva32"
	case RelocRel32:
		return "rel32"
	default:
		return fmt.Sprintf("reloc(%d)", int(t))
	}
}

// Relocation is a 32-bit slot at Offset to be patched with Target's address.
type Relocation struct {
	Offset int
	Type   RelocType
	Target Symbol
}

// SymbolDefinition places a symbol at an offset inside an object.
type SymbolDefinition struct {
	Symbol Symbol
	Offset int
}

// Section is the image section an object is placed in.
type Section int

const (
	SectionText Section = iota
	SectionData
	SectionRodata
)

// Sections lists every section in image order.
var Sections = []Section{SectionText, SectionData, SectionRodata}

func (s Section) String() string {
	switch s {
	case SectionText:
		return "text"
	case SectionData:
		return "data"
	case SectionRodata:
		return "rodata"
	default:
		return fmt.Sprintf("section(%d)", int(s))
	}
}

// ObjectData is a node's payload. In relocs-only mode Data is nil while Size,
// Relocs and Symbols are exactly what full emission produces.
type ObjectData struct {
	Data      []byte
	Size      int
	Alignment int
	Relocs    []Relocation
	Symbols   []SymbolDefinition
}
