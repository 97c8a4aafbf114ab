package objdata

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sym string

func (s sym) Name() string { return string(s) }

func TestEmitCompressedUInt(t *testing.T) {
	testCases := []struct {
		value uint32
		want  []byte
	}{
		{0x00, []byte{0x00}},
		{0x03, []byte{0x03}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x80}},
		{0x2E57, []byte{0xAE, 0x57}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x00, 0x40, 0x00}},
		{0x1FFFFFFF, []byte{0xDF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tc := range testCases {
		b := NewBuilder(false)
		b.EmitCompressedUInt(tc.value)
		got := b.Finish()
		if diff := cmp.Diff(tc.want, got.Data); diff != "" {
			t.Errorf("encoding of %#x mismatch (-want +got):\n%s", tc.value, diff)
		}
		assert.Equal(t, len(tc.want), CompressedUIntSize(tc.value))
	}

	assert.Panics(t, func() { NewBuilder(false).EmitCompressedUInt(0x20000000) })
}

func emitSample(b *Builder) {
	b.RequireAlignment(4)
	b.AddSymbol(sym("self"))
	b.EmitByte(0x13)
	b.EmitCompressedUInt(0x1234)
	b.EmitReloc(sym("target"), RelocRVA32)
	b.EmitUInt16(7)
	b.EmitZeros(3)
	b.EmitBytes([]byte{1, 2})
}

func TestBuilder_RelocsOnlyMatchesFullEmission(t *testing.T) {
	full := NewBuilder(false)
	emitSample(full)
	sizing := NewBuilder(true)
	emitSample(sizing)

	fullData := full.Finish()
	sized := sizing.Finish()

	assert.Nil(t, sized.Data)
	assert.Len(t, fullData.Data, fullData.Size)
	assert.Equal(t, fullData.Size, sized.Size)
	assert.Equal(t, fullData.Alignment, sized.Alignment)
	assert.Equal(t, fullData.Relocs, sized.Relocs)
	assert.Equal(t, fullData.Symbols, sized.Symbols)

	require.Len(t, fullData.Relocs, 1)
	assert.Equal(t, 3, fullData.Relocs[0].Offset)
	assert.Equal(t, []byte{0, 0, 0, 0}, fullData.Data[3:7])
}

func TestBuilder_Reset(t *testing.T) {
	b := NewBuilder(false)
	emitSample(b)
	first := b.Finish()

	b.Reset(false)
	assert.Zero(t, b.Size())
	emitSample(b)
	second := b.Finish()
	assert.Equal(t, first, second)

	assert.Panics(t, func() { b.RequireAlignment(3) })
	assert.Panics(t, func() { b.EmitReloc(nil, RelocRel32) })
}
