// Package aot implements the per-opcode AOT emitter contract and the AOT
// compiler (spec.md §4.2, §4.3): translating a guest program into host
// x86-64 NASM-syntax assembly text.
package aot

import (
	"fmt"

	"github.com/rv32aot/core/isa"
)

// Emitter is the capability contract every guest-ISA executor exposes to
// the AOT compiler. It is deliberately a capability, not an inheritance
// hierarchy: the compiler only ever asks "do you claim this instruction?"
// and, if so, composes the returned text (spec.md §9, "Emitter
// polymorphism").
type Emitter interface {
	// TryEmit attempts to lower inst into a host assembly fragment. ok is
	// false if this emitter does not handle inst's opcode, in which case
	// the compiler continues searching the remaining emitters in list
	// order and falls back to the interpreter trampoline if none claim
	// it. err is non-nil only when this emitter DOES claim the opcode but
	// inst's operand-format fields are invalid for it.
	TryEmit(inst isa.Instruction) (asm string, ok bool, err error)
}

// Register file conventions every emitter must observe (spec.md §4.2):
// the buffer is addressed as [rbx + reg*4], and r15d is free scratch
// within a single instruction's expansion.
const (
	regFileBase  = "rbx"
	scratchReg32 = "r15d"
)

// regMemOperand returns the NASM memory operand addressing guest register
// idx within the host register buffer.
func regMemOperand(idx int64) string {
	if idx == 0 {
		// Register 0 is never read from or written to the buffer by
		// emitted code; callers fold it away before reaching here. This
		// branch exists only to make a misuse loud instead of silently
		// addressing the wrong slot.
		panic("aot: regMemOperand called with register index 0; caller must fold the zero register first")
	}
	return fmt.Sprintf("[%s+%d]", regFileBase, idx*4)
}
