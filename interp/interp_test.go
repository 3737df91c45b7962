package interp_test

import (
	"testing"

	"github.com/rv32aot/core/interp"
	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/segment"
	"github.com/rv32aot/core/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// program builds a Program directly from normalized instructions, so
// tests don't depend on the raw RV32 bit-encoding exercised in isa's own
// tests.
func program(entry uint32, insns ...isa.Instruction) *isa.Program {
	return &isa.Program{Instructions: insns, EntryPC: entry}
}

func addImm(pc uint32, rd, rs1 int64, imm int64) isa.Instruction {
	return isa.Instruction{PC: pc, Opcode: isa.OpAdd, A: rd, B: rs1, C: imm, D: isa.Register, E: isa.Immediate}
}

func addReg(pc uint32, rd, rs1, rs2 int64) isa.Instruction {
	return isa.Instruction{PC: pc, Opcode: isa.OpAdd, A: rd, B: rs1, C: rs2, D: isa.Register, E: isa.Register}
}

func subReg(pc uint32, rd, rs1, rs2 int64) isa.Instruction {
	return isa.Instruction{PC: pc, Opcode: isa.OpSub, A: rd, B: rs1, C: rs2, D: isa.Register, E: isa.Register}
}

func andReg(pc uint32, rd, rs1, rs2 int64) isa.Instruction {
	return isa.Instruction{PC: pc, Opcode: isa.OpAnd, A: rd, B: rs1, C: rs2, D: isa.Register, E: isa.Register}
}

func ebreak(pc uint32) isa.Instruction {
	return isa.Instruction{PC: pc, Opcode: isa.OpEbreak}
}

// TestScenario_SingleAddi is spec.md §8 scenario 1.
func TestScenario_SingleAddi(t *testing.T) {
	prog := program(0x8000, addImm(0x8000, 1, 0, 42), ebreak(0x8004))
	s := state.New(0x8000, nil, 0, 0)

	require.NoError(t, interp.RunBasic(prog, s, 0))

	assert.EqualValues(t, 42, s.Memory.ReadRegister(1))
	assert.EqualValues(t, 0, s.Memory.ReadRegister(0))
	assert.EqualValues(t, 2, s.Instret)
	assert.Equal(t, state.TerminateSentinel, s.PC)
}

// TestScenario_ThreeInstructionProgram is spec.md §8 scenario 2.
func TestScenario_ThreeInstructionProgram(t *testing.T) {
	prog := program(0x8000,
		addImm(0x8000, 1, 0, 10),
		addImm(0x8004, 2, 0, 32),
		addReg(0x8008, 3, 1, 2),
		ebreak(0x800c),
	)
	s := state.New(0x8000, nil, 0, 0)
	require.NoError(t, interp.RunBasic(prog, s, 0))

	assert.EqualValues(t, 10, s.Memory.ReadRegister(1))
	assert.EqualValues(t, 32, s.Memory.ReadRegister(2))
	assert.EqualValues(t, 42, s.Memory.ReadRegister(3))
	assert.EqualValues(t, 4, s.Instret) // 3 adds + ebreak
}

// TestScenario_AndFoldsToZero is spec.md §8 scenario 3.
func TestScenario_AndFoldsToZero(t *testing.T) {
	prog := program(0x8000, addImm(0x8000, 7, 0, 0x77), andReg(0x8004, 5, 0, 7), ebreak(0x8008))
	s := state.New(0x8000, nil, 0, 0)
	require.NoError(t, interp.RunBasic(prog, s, 0))

	assert.EqualValues(t, 0, s.Memory.ReadRegister(5))
}

// TestScenario_SubRegisterZero is spec.md §8 scenario 4.
func TestScenario_SubRegisterZero(t *testing.T) {
	prog := program(0x8000, addImm(0x8000, 1, 0, 7), subReg(0x8004, 4, 1, 0), ebreak(0x8008))
	s := state.New(0x8000, nil, 0, 0)
	require.NoError(t, interp.RunBasic(prog, s, 0))

	assert.EqualValues(t, 7, s.Memory.ReadRegister(4))
}

func TestRunBasic_OutOfRangeJumpErrors(t *testing.T) {
	prog := program(0x8000, addImm(0x8000, 1, 0, 1))
	s := state.New(0x8000, nil, 0, 0)
	// advance past the single instruction without hitting the sentinel.
	s.PC = 0x9000
	err := interp.RunBasic(prog, s, 0)
	assert.Error(t, err)
}

func TestRunBasic_EmptyProgramIsNoop(t *testing.T) {
	prog := program(0x8000)
	s := state.New(0x8000, nil, 0, 0)
	s.PC = state.TerminateSentinel
	require.NoError(t, interp.RunBasic(prog, s, 0))
}

func TestRunMetered_EmitsOneSegmentForShortRun(t *testing.T) {
	prog := program(0x8000, addImm(0x8000, 1, 0, 1), ebreak(0x8004))
	s := state.New(0x8000, nil, 0, 0)

	ctrl, err := segment.NewController(segment.DefaultLimits(), segment.AIRMetadata{
		Names: []string{"a"}, Widths: []uint32{1}, Interactions: []uint32{1},
	}, 1000)
	require.NoError(t, err)

	require.NoError(t, interp.RunMetered(prog, s, ctrl, interp.ZeroTraceSampler{}, 1))

	segs := ctrl.Segments()
	require.Len(t, segs, 1)
	assert.EqualValues(t, s.Instret, segs[0].NumInsns)
}

func TestRunPreflight_StopsAtBudget(t *testing.T) {
	prog := program(0x8000,
		addImm(0x8000, 1, 0, 1),
		addImm(0x8004, 1, 1, 1),
		addImm(0x8008, 1, 1, 1),
		ebreak(0x800c),
	)
	s := state.New(0x8000, nil, 0, 0)
	require.NoError(t, interp.RunPreflight(prog, s, 2))

	assert.EqualValues(t, 2, s.Instret)
	assert.EqualValues(t, 0x8008, s.PC)
	assert.EqualValues(t, 2, s.Memory.ReadRegister(1))
}
