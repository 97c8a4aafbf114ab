// Package objwriter lays out marked nodes into the output image, resolves
// their relocations and writes the image plus an optional map file.
package objwriter

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/aotgraph/internal/comparer"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/objdata"
)

const (
	// Magic opens every image.
	Magic = "RTR\x00"
	// FormatVersion is bumped on any layout change.
	FormatVersion = 1

	headerSize       = 4 + 2 + 2 + 4 + sha256.Size
	sectionEntrySize = 16
	sectionAlignment = 16
)

// SectionHeader describes one section of a written image.
type SectionHeader struct {
	Section objdata.Section
	RVA     uint32
	Size    uint32
	Count   uint32
}

// placement is a node's position in the image.
type placement struct {
	node    nodes.ObjectNode
	section objdata.Section
	rva     int
	size    int
}

// Layout is the result of placing nodes.
type Layout struct {
	Sections []SectionHeader
	Size     int

	placed  []placement
	symbols map[objdata.Symbol]int
}

// SymbolRVA returns the address a symbol was placed at.
func (l *Layout) SymbolRVA(s objdata.Symbol) (int, bool) {
	rva, ok := l.symbols[s]
	return rva, ok
}

// Writer produces images from marked node lists.
type Writer struct {
	factory *nodes.Factory
}

// New returns a writer that asks f for node data.
func New(f *nodes.Factory) *Writer {
	return &Writer{factory: f}
}

// emittable filters out nodes that produce nothing and sorts the rest.
func (w *Writer) emittable(marked []nodes.Node) []nodes.ObjectNode {
	var out []nodes.ObjectNode
	for _, n := range marked {
		on, ok := n.(nodes.ObjectNode)
		if !ok || on.ShouldSkipEmitting(w.factory) {
			continue
		}
		out = append(out, on)
	}
	comparer.SortNodes(w.factory.Comparer(), out)
	return out
}

func align(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}

// Layout places nodes after the header, section table and input component.
// Sizes come from relocs-only data.
func (w *Writer) Layout(input []byte, marked []nodes.Node) (*Layout, error) {
	objs := w.emittable(marked)
	bySection := make(map[objdata.Section][]nodes.ObjectNode, len(objdata.Sections))
	for _, n := range objs {
		bySection[n.Section()] = append(bySection[n.Section()], n)
	}

	l := &Layout{symbols: make(map[objdata.Symbol]int)}
	cursor := headerSize + sectionEntrySize*len(objdata.Sections) + len(input)
	for _, sec := range objdata.Sections {
		cursor = align(cursor, sectionAlignment)
		hdr := SectionHeader{Section: sec, RVA: uint32(cursor)}
		for _, n := range bySection[sec] {
			data := n.GetData(w.factory, true)
			if data.Alignment > 1 {
				cursor = align(cursor, data.Alignment)
			}
			for _, def := range data.Symbols {
				if _, dup := l.symbols[def.Symbol]; dup {
					return nil, fmt.Errorf("symbol %s is defined more than once", def.Symbol.Name())
				}
				l.symbols[def.Symbol] = cursor + def.Offset
			}
			l.placed = append(l.placed, placement{node: n, section: sec, rva: cursor, size: data.Size})
			cursor += data.Size
			hdr.Count++
		}
		hdr.Size = uint32(cursor) - hdr.RVA
		l.Sections = append(l.Sections, hdr)
	}
	l.Size = cursor
	return l, nil
}

// Emit renders the image for a layout.
func (w *Writer) Emit(input []byte, l *Layout) ([]byte, error) {
	image := make([]byte, l.Size)

	copy(image, Magic)
	binary.LittleEndian.PutUint16(image[4:], FormatVersion)
	binary.LittleEndian.PutUint16(image[6:], uint16(len(l.Sections)))
	binary.LittleEndian.PutUint32(image[8:], uint32(len(input)))
	digest := sha256.Sum256(input)
	copy(image[12:], digest[:])

	off := headerSize
	for _, s := range l.Sections {
		binary.LittleEndian.PutUint32(image[off:], uint32(s.Section))
		binary.LittleEndian.PutUint32(image[off+4:], s.RVA)
		binary.LittleEndian.PutUint32(image[off+8:], s.Size)
		binary.LittleEndian.PutUint32(image[off+12:], s.Count)
		off += sectionEntrySize
	}
	copy(image[off:], input)

	for _, p := range l.placed {
		data := p.node.GetData(w.factory, false)
		if data.Size != p.size || len(data.Data) != p.size {
			return nil, fmt.Errorf("node %s changed size between layout (%d) and emission (%d)", p.node.Name(), p.size, len(data.Data))
		}
		copy(image[p.rva:], data.Data)
		for _, r := range data.Relocs {
			target, ok := l.symbols[r.Target]
			if !ok {
				return nil, fmt.Errorf("node %s relocates against %s, which is not in the image", p.node.Name(), r.Target.Name())
			}
			site := p.rva + r.Offset
			switch r.Type {
			case objdata.RelocRVA32:
				binary.LittleEndian.PutUint32(image[site:], uint32(target))
			case objdata.RelocRel32:
				binary.LittleEndian.PutUint32(image[site:], uint32(int32(target-(site+4))))
			default:
				return nil, fmt.Errorf("node %s uses unsupported relocation %s", p.node.Name(), r.Type)
			}
		}
	}
	return image, nil
}

// WriteMap writes one line per placed node: RVA, size, section, class code
// and name, in address order.
func (w *Writer) WriteMap(out io.Writer, l *Layout) error {
	for _, p := range l.placed {
		if _, err := fmt.Fprintf(out, "%08X %08X %-6s %10d %s\n", p.rva, p.size, p.section, p.node.ClassCode(), p.node.Name()); err != nil {
			return fmt.Errorf("failed to write map entry: %w", err)
		}
	}
	return nil
}

// Options controls WriteFile.
type Options struct {
	// MapFile writes outputPath + ".map" next to the image.
	MapFile bool
}

// WriteFile lays out, emits and writes marked to outputPath.
func (w *Writer) WriteFile(ctx context.Context, outputPath string, input []byte, marked []nodes.Node, opts Options) error {
	logger := ctxlog.FromContext(ctx)

	l, err := w.Layout(input, marked)
	if err != nil {
		return fmt.Errorf("failed to lay out image: %w", err)
	}
	image, err := w.Emit(input, l)
	if err != nil {
		return fmt.Errorf("failed to emit image: %w", err)
	}
	if err := os.WriteFile(outputPath, image, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	logger.Info("Image written.", "path", outputPath, "bytes", len(image), "nodes", len(l.placed))

	if !opts.MapFile {
		return nil
	}
	mapPath := outputPath + ".map"
	f, err := os.Create(mapPath)
	if err != nil {
		return fmt.Errorf("failed to create map file: %w", err)
	}
	if err := w.WriteMap(f, l); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close map file: %w", err)
	}
	logger.Debug("Map file written.", "path", mapPath)
	return nil
}
