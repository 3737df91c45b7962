package aot

import (
	"fmt"

	"github.com/rv32aot/core/isa"
)

// mnemonic maps an ALU opcode to its NASM two-operand instruction.
var mnemonic = map[isa.Opcode]string{
	isa.OpAdd: "add",
	isa.OpSub: "sub",
	isa.OpXor: "xor",
	isa.OpOr:  "or",
	isa.OpAnd: "and",
}

// BaseALU is the emitter for RV32IM's ADD/SUB/XOR/OR/AND, in both their
// register-register and register-immediate forms (spec.md §4.2's
// concrete base-ALU contract).
type BaseALU struct{}

func (BaseALU) TryEmit(inst isa.Instruction) (string, bool, error) {
	op, claimed := mnemonic[inst.Opcode]
	if !claimed {
		return "", false, nil
	}

	if inst.D != isa.Register {
		return "", true, &isa.InvalidInstructionError{
			PC:      inst.PC,
			Message: fmt.Sprintf("base-ALU emitter: destination address space must be Register, got %s", inst.D),
		}
	}
	if inst.E != isa.Register && inst.E != isa.Immediate {
		return "", true, &isa.InvalidInstructionError{
			PC:      inst.PC,
			Message: fmt.Sprintf("base-ALU emitter: second-operand address space must be Register or Immediate, got %s", inst.E),
		}
	}

	rd, rs1 := inst.A, inst.B
	if rd == 0 {
		// Writes to the zero register are discarded: nothing to emit.
		return "", true, nil
	}
	cIsReg := inst.E == isa.Register
	rs2IsZero := cIsReg && inst.C == 0

	// Zero-register folding (spec.md §4.1, §4.2): buffer[0] == 0 is a
	// synchronization invariant, never rechecked by emitted code, so
	// operands naming the zero register fold to constants or copies here
	// rather than a runtime branch.
	switch {
	case rs1 == 0 && inst.Opcode == isa.OpAnd:
		return foldZeroStore(rd), true, nil
	case rs1 == 0 && cIsReg && rs2IsZero:
		return foldZeroStore(rd), true, nil
	case rs2IsZero && inst.Opcode == isa.OpAnd:
		return foldZeroStore(rd), true, nil
	case rs1 == 0 && !cIsReg && inst.Opcode == isa.OpAnd:
		return foldZeroStore(rd), true, nil
	case rs1 == 0:
		return foldIdentity(inst.Opcode, rd, inst.C, cIsReg)
	case rs2IsZero:
		return foldCopy(rd, rs1), true, nil
	}

	return generalForm(op, rd, rs1, inst.C, cIsReg), true, nil
}

// foldZeroStore emits `and rd, x0, *` in any of its shapes: the result is
// always zero, so emitted code is a single constant store.
func foldZeroStore(rd int64) string {
	return fmt.Sprintf("    mov dword %s, 0\n", regMemOperand(rd))
}

// foldCopy emits `<op> rd, rs1, x0`: rs2 is the zero register, so ADD/
// SUB/XOR/OR all reduce to copying rs1 into rd.
func foldCopy(rd, rs1 int64) string {
	return fmt.Sprintf("    mov %s, %s\n    mov %s, %s\n",
		scratchReg32, regMemOperand(rs1), regMemOperand(rd), scratchReg32)
}

// foldIdentity emits `<op> rd, x0, c`: rs1 is the zero register. For ADD/
// XOR/OR this is the identity on c (a literal store if c is immediate, a
// copy if c is a register). SUB negates c.
func foldIdentity(op isa.Opcode, rd int64, c int64, cIsReg bool) (string, bool, error) {
	switch op {
	case isa.OpAdd, isa.OpXor, isa.OpOr:
		if !cIsReg {
			return fmt.Sprintf("    mov dword %s, %d\n", regMemOperand(rd), int32(c)), true, nil
		}
		return foldCopy(rd, c), true, nil
	case isa.OpSub:
		if !cIsReg {
			return fmt.Sprintf("    mov dword %s, %d\n", regMemOperand(rd), -int32(c)), true, nil
		}
		return fmt.Sprintf("    mov %s, %s\n    neg %s\n    mov %s, %s\n",
			scratchReg32, regMemOperand(c), scratchReg32, regMemOperand(rd), scratchReg32), true, nil
	case isa.OpAnd:
		return foldZeroStore(rd), true, nil
	}
	return "", true, fmt.Errorf("aot: foldIdentity: unhandled opcode %s", op)
}

// generalForm emits the unfolded three-operand lowering:
//
//	mov  r15d, [rbx+rs1*4]
//	<op> r15d, <c>
//	mov  [rbx+rd*4], r15d
func generalForm(op string, rd, rs1, c int64, cIsReg bool) string {
	cOperand := fmt.Sprintf("%d", int32(c))
	if cIsReg {
		if c == 0 {
			cOperand = "0" // unreachable: rs2==0 is folded above, kept for defensiveness
		} else {
			cOperand = regMemOperand(c)
		}
	}
	var b []byte
	b = append(b, fmt.Sprintf("    mov %s, %s\n", scratchReg32, regMemOperand(rs1))...)
	b = append(b, fmt.Sprintf("    %s %s, %s\n", op, scratchReg32, cOperand)...)
	b = append(b, fmt.Sprintf("    mov %s, %s\n", regMemOperand(rd), scratchReg32)...)
	return string(b)
}
