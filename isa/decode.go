package isa

import "fmt"

// Decode translates one raw 32-bit RV32IM word, fetched at pc, into the
// normalized Instruction form used by the rest of the core. It mirrors a
// conventional RV32 field-extraction decoder (opcode/funct3/funct7), then
// folds every instruction shape down onto the shared (A, B, C, D, E)
// operand tuple documented per case below.
//
// Operand convention by instruction class:
//   - R-type ALU/M-extension: A=rd, B=rs1, C=rs2, D=Register, E=Register
//   - I-type ALU-immediate:   A=rd, B=rs1, C=sign-extended imm (or shamt
//     for the shift-immediate forms), D=Register, E=Immediate
//   - U-type (LUI/AUIPC):     A=rd, B=0, C=imm<<12, D=Register, E=Immediate
//   - JAL:                    A=rd, B=0, C=offset, D=Register, E=Immediate
//   - JALR:                   A=rd, B=rs1, C=offset, D=Register, E=Immediate
//   - Branches:                A=rs1, B=rs2, C=offset, D=Register, E=Register
//   - Loads:                   A=rd, B=rs1, C=offset, D=Register, E=Memory
//   - Stores:                  A=rs1, B=rs2, C=offset, D=Memory, E=Register
//   - ECALL/EBREAK:            no operands
func Decode(pc uint32, word uint32) (Instruction, error) {
	opcode7 := word & 0x7f
	rd := int64((word >> 7) & 0x1f)
	funct3 := (word >> 12) & 0x7
	rs1 := int64((word >> 15) & 0x1f)
	rs2 := int64((word >> 20) & 0x1f)
	funct7 := (word >> 25) & 0x7f

	switch opcode7 {
	case 0x33: // R-type: ALU register-register, or M-extension
		if funct7 == 0x01 {
			op, ok := mExtOpcode(funct3)
			if !ok {
				return Instruction{}, fmt.Errorf("isa: unknown M-extension funct3=0x%x at pc=0x%08x", funct3, pc)
			}
			return Instruction{PC: pc, Opcode: op, A: rd, B: rs1, C: rs2, D: Register, E: Register}, nil
		}
		op, ok := aluRegOpcode(funct3, funct7)
		if !ok {
			return Instruction{}, fmt.Errorf("isa: unknown R-type funct3=0x%x funct7=0x%x at pc=0x%08x", funct3, funct7, pc)
		}
		return Instruction{PC: pc, Opcode: op, A: rd, B: rs1, C: rs2, D: Register, E: Register}, nil

	case 0x13: // I-type: ALU register-immediate. Reuses the register-register
		// opcode constants (E=Immediate distinguishes this form from R-type);
		// see the Opcode block in isa.go.
		imm := signExtend(word>>20, 12)
		op, ok := aluImmOpcode(funct3, word)
		if !ok {
			return Instruction{}, fmt.Errorf("isa: unknown I-type funct3=0x%x at pc=0x%08x", funct3, pc)
		}
		if op == OpSll || op == OpSrl || op == OpSra {
			imm = int64((word >> 20) & 0x1f) // shamt, not sign-extended
		}
		return Instruction{PC: pc, Opcode: op, A: rd, B: rs1, C: imm, D: Register, E: Immediate}, nil

	case 0x03: // I-type: loads
		imm := signExtend(word>>20, 12)
		op, ok := loadOpcode(funct3)
		if !ok {
			return Instruction{}, fmt.Errorf("isa: unknown load funct3=0x%x at pc=0x%08x", funct3, pc)
		}
		return Instruction{PC: pc, Opcode: op, A: rd, B: rs1, C: imm, D: Register, E: Memory}, nil

	case 0x23: // S-type: stores
		immBits := ((word >> 25) << 5) | ((word >> 7) & 0x1f)
		imm := signExtend(immBits, 12)
		op, ok := storeOpcode(funct3)
		if !ok {
			return Instruction{}, fmt.Errorf("isa: unknown store funct3=0x%x at pc=0x%08x", funct3, pc)
		}
		return Instruction{PC: pc, Opcode: op, A: rs1, B: rs2, C: imm, D: Memory, E: Register}, nil

	case 0x63: // B-type: branches
		immBits := ((word >> 31) << 12) | (((word >> 7) & 0x1) << 11) |
			(((word >> 25) & 0x3f) << 5) | (((word >> 8) & 0xf) << 1)
		imm := signExtend(immBits, 13)
		op, ok := branchOpcode(funct3)
		if !ok {
			return Instruction{}, fmt.Errorf("isa: unknown branch funct3=0x%x at pc=0x%08x", funct3, pc)
		}
		return Instruction{PC: pc, Opcode: op, A: rs1, B: rs2, C: imm, D: Register, E: Register}, nil

	case 0x37: // LUI
		return Instruction{PC: pc, Opcode: OpLui, A: rd, B: 0, C: int64(word & 0xfffff000), D: Register, E: Immediate}, nil

	case 0x17: // AUIPC
		return Instruction{PC: pc, Opcode: OpAuipc, A: rd, B: 0, C: int64(word & 0xfffff000), D: Register, E: Immediate}, nil

	case 0x6f: // JAL
		immBits := ((word >> 31) << 20) | (((word >> 12) & 0xff) << 12) |
			(((word >> 20) & 0x1) << 11) | (((word >> 21) & 0x3ff) << 1)
		imm := signExtend(immBits, 21)
		return Instruction{PC: pc, Opcode: OpJal, A: rd, B: 0, C: imm, D: Register, E: Immediate}, nil

	case 0x67: // JALR
		imm := signExtend(word>>20, 12)
		return Instruction{PC: pc, Opcode: OpJalr, A: rd, B: rs1, C: imm, D: Register, E: Immediate}, nil

	case 0x73: // ECALL / EBREAK
		if word>>20 == 1 {
			return Instruction{PC: pc, Opcode: OpEbreak}, nil
		}
		return Instruction{PC: pc, Opcode: OpEcall}, nil

	default:
		return Instruction{}, fmt.Errorf("isa: unknown opcode 0x%02x at pc=0x%08x", opcode7, pc)
	}
}

func signExtend(bits uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(bits<<shift) >> shift)
}

func aluRegOpcode(funct3, funct7 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		if funct7 == 0x20 {
			return OpSub, true
		}
		return OpAdd, true
	case 0x1:
		return OpSll, true
	case 0x2:
		return OpSlt, true
	case 0x3:
		return OpSltu, true
	case 0x4:
		return OpXor, true
	case 0x5:
		if funct7 == 0x20 {
			return OpSra, true
		}
		return OpSrl, true
	case 0x6:
		return OpOr, true
	case 0x7:
		return OpAnd, true
	}
	return OpInvalid, false
}

func mExtOpcode(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpMul, true
	case 0x1:
		return OpMulh, true
	case 0x2:
		return OpMulhsu, true
	case 0x3:
		return OpMulhu, true
	case 0x4:
		return OpDiv, true
	case 0x5:
		return OpDivu, true
	case 0x6:
		return OpRem, true
	case 0x7:
		return OpRemu, true
	}
	return OpInvalid, false
}

func aluImmOpcode(funct3, word uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpAdd, true
	case 0x1:
		return OpSll, true
	case 0x2:
		return OpSlt, true
	case 0x3:
		return OpSltu, true
	case 0x4:
		return OpXor, true
	case 0x5:
		if (word>>25)&0x7f == 0x20 {
			return OpSra, true
		}
		return OpSrl, true
	case 0x6:
		return OpOr, true
	case 0x7:
		return OpAnd, true
	}
	return OpInvalid, false
}

func loadOpcode(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpLb, true
	case 0x1:
		return OpLh, true
	case 0x2:
		return OpLw, true
	case 0x4:
		return OpLbu, true
	case 0x5:
		return OpLhu, true
	}
	return OpInvalid, false
}

func storeOpcode(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpSb, true
	case 0x1:
		return OpSh, true
	case 0x2:
		return OpSw, true
	}
	return OpInvalid, false
}

func branchOpcode(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpBeq, true
	case 0x1:
		return OpBne, true
	case 0x4:
		return OpBlt, true
	case 0x5:
		return OpBge, true
	case 0x6:
		return OpBltu, true
	case 0x7:
		return OpBgeu, true
	}
	return OpInvalid, false
}

// DecodeProgram decodes a flat byte slice of guest code, one instruction
// every Step bytes, into a Program starting at entryPC.
func DecodeProgram(code []byte, entryPC uint32) (*Program, error) {
	if len(code)%Step != 0 {
		return nil, fmt.Errorf("isa: code length %d not a multiple of %d", len(code), Step)
	}
	n := len(code) / Step
	insns := make([]Instruction, n)
	for i := 0; i < n; i++ {
		pc := entryPC + uint32(i*Step)
		word := uint32(code[i*4]) | uint32(code[i*4+1])<<8 | uint32(code[i*4+2])<<16 | uint32(code[i*4+3])<<24
		inst, err := Decode(pc, word)
		if err != nil {
			return nil, err
		}
		insns[i] = inst
	}
	return &Program{Instructions: insns, EntryPC: entryPC}, nil
}
