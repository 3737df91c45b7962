package interp

import (
	"fmt"

	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/state"
)

// RunPreflight executes exactly numInsns guest instructions starting from
// s's current state (or fewer, if the guest halts first). This is the
// "preflight execution" mode named in spec.md's GLOSSARY: a pre-proof run
// that consumes one already-decided segment.Segment's instret budget and
// produces the state trace generation needs, without re-running the
// segmentation decision loop (the segment boundary is already fixed).
func RunPreflight(prog *isa.Program, s *state.State, numInsns uint64) error {
	target := s.Instret + numInsns
	for s.Instret < target && !s.Terminated() {
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
