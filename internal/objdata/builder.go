package objdata

import (
	"encoding/binary"
	"fmt"
)

// MaxCompressedUInt is the largest value EmitCompressedUInt can encode.
const MaxCompressedUInt = 0x1FFFFFFF

// Builder accumulates an object's payload. A relocs-only builder tracks size,
// relocations and symbols but stores no bytes.
type Builder struct {
	relocsOnly bool
	buf        []byte
	size       int
	alignment  int
	relocs     []Relocation
	symbols    []SymbolDefinition
}

// NewBuilder returns an empty builder.
func NewBuilder(relocsOnly bool) *Builder {
	b := &Builder{}
	b.Reset(relocsOnly)
	return b
}

// Reset empties the builder for reuse, keeping its buffer capacity.
func (b *Builder) Reset(relocsOnly bool) {
	b.relocsOnly = relocsOnly
	b.buf = b.buf[:0]
	b.size = 0
	b.alignment = 1
	b.relocs = nil
	b.symbols = nil
}

// RelocsOnly reports whether payload bytes are being skipped.
func (b *Builder) RelocsOnly() bool {
	return b.relocsOnly
}

// Size is the number of bytes emitted so far.
func (b *Builder) Size() int {
	return b.size
}

// RequireAlignment raises the object's alignment to at least align.
func (b *Builder) RequireAlignment(align int) {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("objdata: alignment %d is not a power of two", align))
	}
	if align > b.alignment {
		b.alignment = align
	}
}

// AddSymbol defines sym at the current offset.
func (b *Builder) AddSymbol(sym Symbol) {
	b.symbols = append(b.symbols, SymbolDefinition{Symbol: sym, Offset: b.size})
}

// EmitByte appends one byte.
func (b *Builder) EmitByte(v byte) {
	if !b.relocsOnly {
		b.buf = append(b.buf, v)
	}
	b.size++
}

// EmitBytes appends raw bytes.
func (b *Builder) EmitBytes(p []byte) {
	if !b.relocsOnly {
		b.buf = append(b.buf, p...)
	}
	b.size += len(p)
}

// EmitZeros appends n zero bytes.
func (b *Builder) EmitZeros(n int) {
	if !b.relocsOnly {
		b.buf = append(b.buf, make([]byte, n)...)
	}
	b.size += n
}

// EmitUInt16 appends a little-endian 16-bit value.
func (b *Builder) EmitUInt16(v uint16) {
	if !b.relocsOnly {
		b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	}
	b.size += 2
}

// EmitUInt32 appends a little-endian 32-bit value.
func (b *Builder) EmitUInt32(v uint32) {
	if !b.relocsOnly {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	}
	b.size += 4
}

// EmitCompressedUInt appends v in the ECMA-335 compressed unsigned integer
// encoding: one, two or four big-endian bytes.
func (b *Builder) EmitCompressedUInt(v uint32) {
	n := CompressedUIntSize(v)
	if !b.relocsOnly {
		switch n {
		case 1:
			b.buf = append(b.buf, byte(v))
		case 2:
			b.buf = append(b.buf, 0x80|byte(v>>8), byte(v))
		default:
			b.buf = append(b.buf, 0xC0|byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		}
	}
	b.size += n
}

// EmitReloc reserves a 32-bit slot patched with target's address at layout.
func (b *Builder) EmitReloc(target Symbol, typ RelocType) {
	if target == nil {
		panic("objdata: relocation against nil symbol")
	}
	b.relocs = append(b.relocs, Relocation{Offset: b.size, Type: typ, Target: target})
	b.EmitUInt32(0)
}

// Finish returns the accumulated object. The builder may be Reset afterwards.
func (b *Builder) Finish() ObjectData {
	d := ObjectData{
		Size:      b.size,
		Alignment: b.alignment,
		Relocs:    b.relocs,
		Symbols:   b.symbols,
	}
	if !b.relocsOnly {
		d.Data = append([]byte(nil), b.buf...)
	}
	return d
}

// CompressedUIntSize returns the encoded length of v.
func CompressedUIntSize(v uint32) int {
	switch {
	case v < 0x80:
		return 1
	case v < 0x4000:
		return 2
	case v <= MaxCompressedUInt:
		return 4
	default:
		panic(fmt.Sprintf("objdata: %#x does not fit a compressed integer", v))
	}
}
