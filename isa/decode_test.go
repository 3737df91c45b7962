package isa_test

import (
	"testing"

	"github.com/rv32aot/core/isa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeI builds a raw I-type word (used here only to exercise the decoder
// with known-good encodings; not a general assembler).
func encodeI(opcode7 uint32, rd, funct3, rs1 int64, imm int64) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode7
}

func encodeR(opcode7 uint32, rd, funct3, rs1, rs2 int64, funct7 uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode7
}

func TestDecode_AddiXZero(t *testing.T) {
	word := encodeI(0x13, 1, 0, 0, 42) // addi x1, x0, 42
	inst, err := isa.Decode(0x8000, word)
	require.NoError(t, err)
	assert.Equal(t, isa.OpAdd, inst.Opcode)
	assert.EqualValues(t, 1, inst.A)
	assert.EqualValues(t, 0, inst.B)
	assert.EqualValues(t, 42, inst.C)
	assert.Equal(t, isa.Register, inst.D)
	assert.Equal(t, isa.Immediate, inst.E)
}

func TestDecode_AddRegReg(t *testing.T) {
	word := encodeR(0x33, 3, 0, 1, 2, 0x00) // add x3, x1, x2
	inst, err := isa.Decode(0x8004, word)
	require.NoError(t, err)
	assert.Equal(t, isa.OpAdd, inst.Opcode)
	assert.EqualValues(t, 3, inst.A)
	assert.EqualValues(t, 1, inst.B)
	assert.EqualValues(t, 2, inst.C)
}

func TestDecode_Sub(t *testing.T) {
	word := encodeR(0x33, 4, 0, 1, 0, 0x20) // sub x4, x1, x0
	inst, err := isa.Decode(0x8008, word)
	require.NoError(t, err)
	assert.Equal(t, isa.OpSub, inst.Opcode)
}

func TestDecode_AndZeroRs1(t *testing.T) {
	word := encodeR(0x33, 5, 0x7, 0, 7, 0x00) // and x5, x0, x7
	inst, err := isa.Decode(0x800c, word)
	require.NoError(t, err)
	assert.Equal(t, isa.OpAnd, inst.Opcode)
	assert.EqualValues(t, 0, inst.B)
	assert.EqualValues(t, 7, inst.C)
}

func TestDecode_NegativeImmediateSignExtends(t *testing.T) {
	word := encodeI(0x13, 1, 0, 0, -1) // addi x1, x0, -1
	inst, err := isa.Decode(0x8000, word)
	require.NoError(t, err)
	assert.EqualValues(t, -1, inst.C)
}

func TestDecode_UnknownOpcode(t *testing.T) {
	_, err := isa.Decode(0x8000, 0x0000007f)
	assert.Error(t, err)
}

func TestDecodeProgram_EmptyIsLegal(t *testing.T) {
	p, err := isa.DecodeProgram(nil, 0x8000)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.InRange(0x8000))
}

func TestProgram_AtAndEndPC(t *testing.T) {
	code := make([]byte, 8)
	w0 := encodeI(0x13, 1, 0, 0, 10)
	w1 := encodeI(0x13, 2, 0, 0, 32)
	putWord(code[0:4], w0)
	putWord(code[4:8], w1)

	p, err := isa.DecodeProgram(code, 0x8000)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.EqualValues(t, 0x8008, p.EndPC())

	inst, ok := p.At(0x8004)
	require.True(t, ok)
	assert.EqualValues(t, 2, inst.A)

	_, ok = p.At(0x8008)
	assert.False(t, ok, "pc at EndPC is out of range")
}

func putWord(b []byte, w uint32) {
	b[0] = byte(w)
	b[1] = byte(w >> 8)
	b[2] = byte(w >> 16)
	b[3] = byte(w >> 24)
}
