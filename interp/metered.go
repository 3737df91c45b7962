package interp

import (
	"fmt"

	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/segment"
	"github.com/rv32aot/core/state"
)

// TraceSampler supplies the (trace_heights, is_trace_height_constant)
// observation the segmentation controller needs at each consultation.
// Computing real trace heights is chip-level trace generation, which
// spec.md §1 places outside this core's scope; RunMetered is generic over
// any sampler so a caller can plug in the real proof-backend chips.
type TraceSampler interface {
	// Sample returns, for numAirs configured AIRs, the current trace
	// height of each and whether that AIR's height is currently flagged
	// constant (exempt from the height-axis check).
	Sample(s *state.State, numAirs int) (heights []uint32, constant []bool)
}

// ZeroTraceSampler is a TraceSampler that reports zero, non-constant
// height for every AIR. It is useful for tests and for running this core
// standalone, without a proof backend wired in.
type ZeroTraceSampler struct{}

func (ZeroTraceSampler) Sample(_ *state.State, numAirs int) ([]uint32, []bool) {
	return make([]uint32, numAirs), make([]bool, numAirs)
}

// RunMetered drives prog one instruction at a time, like RunBasic, and
// additionally consults ctrl every ctrl.CheckCadence() retired
// instructions (spec.md §4.5). It closes the final, possibly-partial
// segment once the guest halts, so the sum of segment.Segment.NumInsns
// always equals the final instret (spec.md §8).
func RunMetered(prog *isa.Program, s *state.State, ctrl *segment.Controller, sampler TraceSampler, numAirs int) error {
	cadence := ctrl.CheckCadence()
	for !s.Terminated() {
		inst, ok := prog.At(s.PC)
		if !ok {
			return fmt.Errorf("interp: pc 0x%08x is outside the program's translated range [0x%08x, 0x%08x)", s.PC, prog.EntryPC, prog.EndPC())
		}
		if err := Step(s, inst); err != nil {
			return err
		}
		if cadence != 0 && s.Instret%cadence == 0 {
			heights, constant := sampler.Sample(s, numAirs)
			if _, err := ctrl.Consult(s.Instret, heights, constant); err != nil {
				return err
			}
		}
	}
	return ctrl.Close(s.Instret)
}
