// Package interp implements the basic and metered interpreters: the two
// pure-Go execution modes that must agree bit-for-bit with the AOT path
// (spec.md §8, "Mode equivalence").
package interp

import (
	"fmt"

	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/state"
)

// ECALL function codes, placed in a7 (x17); argument/result in a0 (x10).
// Mirrors the convention used by the zkVM RISC-V references this core is
// grounded on.
const (
	EcallHalt   = 0
	EcallOutput = 1
	EcallInput  = 2
)

const regA0 = 10
const regA7 = 17

// operandValue resolves operand C against its address-space tag E: an
// Immediate reads the literal, a Register reads the named guest register.
func operandValue(s *state.State, value int64, space isa.AddressSpace) uint32 {
	switch space {
	case isa.Immediate:
		return uint32(value)
	case isa.Register:
		return s.Memory.ReadRegister(uint32(value))
	default:
		panic(fmt.Sprintf("interp: unexpected address space %s for ALU operand", space))
	}
}

// Step executes exactly one guest instruction: inst must be the
// instruction at s.PC. It does not consult prog; callers fetch via
// prog.At and pass the result, so the same Step implementation serves
// the basic interpreter, the metered interpreter, and the AOT runtime's
// fallback handler.
func Step(s *state.State, inst isa.Instruction) error {
	switch inst.Opcode {
	case isa.OpAdd, isa.OpSub, isa.OpXor, isa.OpOr, isa.OpAnd,
		isa.OpSll, isa.OpSrl, isa.OpSra, isa.OpSlt, isa.OpSltu:
		return stepALU(s, inst)
	case isa.OpLui:
		s.Memory.WriteRegister(uint32(inst.A), uint32(inst.C))
		s.Retire()
		return nil
	case isa.OpAuipc:
		s.Memory.WriteRegister(uint32(inst.A), s.PC+uint32(inst.C))
		s.Retire()
		return nil
	case isa.OpJal:
		return stepJAL(s, inst)
	case isa.OpJalr:
		return stepJALR(s, inst)
	case isa.OpBeq, isa.OpBne, isa.OpBlt, isa.OpBge, isa.OpBltu, isa.OpBgeu:
		return stepBranch(s, inst)
	case isa.OpLb, isa.OpLh, isa.OpLw, isa.OpLbu, isa.OpLhu:
		return stepLoad(s, inst)
	case isa.OpSb, isa.OpSh, isa.OpSw:
		return stepStore(s, inst)
	case isa.OpMul, isa.OpMulh, isa.OpMulhsu, isa.OpMulhu, isa.OpDiv, isa.OpDivu, isa.OpRem, isa.OpRemu:
		return stepMulDiv(s, inst)
	case isa.OpEcall:
		return stepEcall(s)
	case isa.OpEbreak:
		s.PC = state.TerminateSentinel
		s.RetireInstret()
		return nil
	default:
		return &isa.InvalidInstructionError{PC: inst.PC, Message: fmt.Sprintf("unsupported opcode %s", inst.Opcode)}
	}
}

func stepALU(s *state.State, inst isa.Instruction) error {
	if inst.D != isa.Register {
		return &isa.InvalidInstructionError{PC: inst.PC, Message: "ALU destination operand must address the register space"}
	}
	if inst.E != isa.Register && inst.E != isa.Immediate {
		return &isa.InvalidInstructionError{PC: inst.PC, Message: "ALU second operand must address register or immediate space"}
	}
	rs1 := s.Memory.ReadRegister(uint32(inst.B))
	rs2 := operandValue(s, inst.C, inst.E)

	var result uint32
	switch inst.Opcode {
	case isa.OpAdd:
		result = rs1 + rs2
	case isa.OpSub:
		result = rs1 - rs2
	case isa.OpXor:
		result = rs1 ^ rs2
	case isa.OpOr:
		result = rs1 | rs2
	case isa.OpAnd:
		result = rs1 & rs2
	case isa.OpSll:
		result = rs1 << (rs2 & 0x1f)
	case isa.OpSrl:
		result = rs1 >> (rs2 & 0x1f)
	case isa.OpSra:
		result = uint32(int32(rs1) >> (rs2 & 0x1f))
	case isa.OpSlt:
		if int32(rs1) < int32(rs2) {
			result = 1
		}
	case isa.OpSltu:
		if rs1 < rs2 {
			result = 1
		}
	}
	s.Memory.WriteRegister(uint32(inst.A), result)
	s.Retire()
	return nil
}

func stepJAL(s *state.State, inst isa.Instruction) error {
	link := s.PC + 4
	s.PC = uint32(int64(s.PC) + inst.C)
	s.Memory.WriteRegister(uint32(inst.A), link)
	s.RetireInstret()
	return nil
}

func stepJALR(s *state.State, inst isa.Instruction) error {
	link := s.PC + 4
	base := s.Memory.ReadRegister(uint32(inst.B))
	target := (uint32(int64(base)+inst.C) >> 1) << 1
	s.PC = target
	s.Memory.WriteRegister(uint32(inst.A), link)
	s.RetireInstret()
	return nil
}

func stepBranch(s *state.State, inst isa.Instruction) error {
	a := s.Memory.ReadRegister(uint32(inst.A))
	b := s.Memory.ReadRegister(uint32(inst.B))
	var taken bool
	switch inst.Opcode {
	case isa.OpBeq:
		taken = a == b
	case isa.OpBne:
		taken = a != b
	case isa.OpBlt:
		taken = int32(a) < int32(b)
	case isa.OpBge:
		taken = int32(a) >= int32(b)
	case isa.OpBltu:
		taken = a < b
	case isa.OpBgeu:
		taken = a >= b
	}
	if taken {
		s.PC = uint32(int64(s.PC) + inst.C)
	} else {
		s.PC += 4
	}
	s.RetireInstret()
	return nil
}

func stepLoad(s *state.State, inst isa.Instruction) error {
	addr := uint32(int64(s.Memory.ReadRegister(uint32(inst.B))) + inst.C)
	var value uint32
	switch inst.Opcode {
	case isa.OpLb:
		b, err := s.Memory.ReadByte(isa.Memory, addr)
		if err != nil {
			return err
		}
		value = uint32(int32(int8(b)))
	case isa.OpLbu:
		b, err := s.Memory.ReadByte(isa.Memory, addr)
		if err != nil {
			return err
		}
		value = uint32(b)
	case isa.OpLh:
		lo, err := s.Memory.ReadByte(isa.Memory, addr)
		if err != nil {
			return err
		}
		hi, err := s.Memory.ReadByte(isa.Memory, addr+1)
		if err != nil {
			return err
		}
		value = uint32(int32(int16(uint16(lo) | uint16(hi)<<8)))
	case isa.OpLhu:
		lo, err := s.Memory.ReadByte(isa.Memory, addr)
		if err != nil {
			return err
		}
		hi, err := s.Memory.ReadByte(isa.Memory, addr+1)
		if err != nil {
			return err
		}
		value = uint32(lo) | uint32(hi)<<8
	case isa.OpLw:
		w, err := s.Memory.ReadWord(isa.Memory, addr)
		if err != nil {
			return err
		}
		value = w
	}
	s.Memory.WriteRegister(uint32(inst.A), value)
	s.Retire()
	return nil
}

func stepStore(s *state.State, inst isa.Instruction) error {
	addr := uint32(int64(s.Memory.ReadRegister(uint32(inst.A))) + inst.C)
	value := s.Memory.ReadRegister(uint32(inst.B))
	var err error
	switch inst.Opcode {
	case isa.OpSb:
		err = s.Memory.WriteByte(isa.Memory, addr, byte(value))
	case isa.OpSh:
		err = s.Memory.WriteByte(isa.Memory, addr, byte(value))
		if err == nil {
			err = s.Memory.WriteByte(isa.Memory, addr+1, byte(value>>8))
		}
	case isa.OpSw:
		err = s.Memory.WriteWord(isa.Memory, addr, value)
	}
	if err != nil {
		return err
	}
	s.Retire()
	return nil
}

func stepMulDiv(s *state.State, inst isa.Instruction) error {
	rs1 := s.Memory.ReadRegister(uint32(inst.B))
	rs2 := s.Memory.ReadRegister(uint32(inst.C))
	var result uint32
	switch inst.Opcode {
	case isa.OpMul:
		result = rs1 * rs2
	case isa.OpMulh:
		result = uint32((int64(int32(rs1)) * int64(int32(rs2))) >> 32)
	case isa.OpMulhu:
		result = uint32((uint64(rs1) * uint64(rs2)) >> 32)
	case isa.OpMulhsu:
		result = uint32((int64(int32(rs1)) * int64(rs2)) >> 32)
	case isa.OpDiv:
		if rs2 == 0 {
			result = 0xffffffff
		} else {
			result = uint32(int32(rs1) / int32(rs2))
		}
	case isa.OpDivu:
		if rs2 == 0 {
			result = 0xffffffff
		} else {
			result = rs1 / rs2
		}
	case isa.OpRem:
		if rs2 == 0 {
			result = rs1
		} else {
			result = uint32(int32(rs1) % int32(rs2))
		}
	case isa.OpRemu:
		if rs2 == 0 {
			result = rs1
		} else {
			result = rs1 % rs2
		}
	}
	s.Memory.WriteRegister(uint32(inst.A), result)
	s.Retire()
	return nil
}

func stepEcall(s *state.State) error {
	code := s.Memory.ReadRegister(regA7)
	switch code {
	case EcallHalt:
		s.PC = state.TerminateSentinel
		s.RetireInstret()
		return nil
	case EcallOutput:
		s.Output.WriteByte(byte(s.Memory.ReadRegister(regA0)))
	case EcallInput:
		b, err := s.Input.ReadByte()
		if err != nil {
			s.Memory.WriteRegister(regA0, 0xffffffff)
		} else {
			s.Memory.WriteRegister(regA0, uint32(b))
		}
	default:
		return &isa.InvalidInstructionError{Message: fmt.Sprintf("unknown ecall code %d", code)}
	}
	s.Retire()
	return nil
}
