package interp

import (
	"fmt"

	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/state"
)

// RunBasic drives prog one instruction at a time until the guest halts
// (pc reaches state.TerminateSentinel) or maxInsns instructions have
// retired, whichever comes first. maxInsns == 0 means unbounded. This is
// the "basic" execution mode of spec.md §2.
func RunBasic(prog *isa.Program, s *state.State, maxInsns uint64) error {
	for !s.Terminated() {
		if maxInsns != 0 && s.Instret >= maxInsns {
			return nil
		}
		inst, ok := prog.At(s.PC)
		if !ok {
			return fmt.Errorf("interp: pc 0x%08x is outside the program's translated range [0x%08x, 0x%08x)", s.PC, prog.EntryPC, prog.EndPC())
		}
		if err := Step(s, inst); err != nil {
			return err
		}
	}
	return nil
}
