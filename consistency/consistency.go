// Package consistency implements the consistency gate spec.md §8 names:
// "Mode equivalence" — for a given program and input, the basic
// interpreter, the metered interpreter, preflight execution, and the AOT
// runtime must agree bit-for-bit on final instret, final pc, and every
// address space's bytes. This is a test harness, not a runtime component
// (SPEC_FULL.md §3): no execution mode depends on this package, only the
// other direction.
package consistency

import (
	"bytes"
	"fmt"

	"github.com/rv32aot/core/aot"
	"github.com/rv32aot/core/aotruntime"
	"github.com/rv32aot/core/interp"
	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/segment"
	"github.com/rv32aot/core/state"
)

// Outcome is one execution mode's observable result, the triple spec.md §8
// compares across modes.
type Outcome struct {
	Mode    string
	Instret uint64
	PC      uint32
	Memory  *state.State // retained so Check can read out its Memory spaces
}

// Mismatch reports two modes disagreeing on one comparison axis.
type Mismatch struct {
	Axis   string // "instret", "pc", or a memory space name
	ModeA  string
	ModeB  string
	ValueA string
	ValueB string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("consistency: %s disagrees between %s (%s) and %s (%s)",
		m.Axis, m.ModeA, m.ValueA, m.ModeB, m.ValueB)
}

// Run drives prog under all four modes (basic, metered, preflight, AOT)
// from independent fresh states and returns their Outcomes, or the first
// execution error encountered. input and seed are applied identically to
// each run; numPublicValues matches state.New's parameter of the same
// name. The AOT stage requires the host assembler/C-compiler toolchain
// (see aotruntime.DefaultBuilder); a caller without one installed should
// expect Run to return the build error from that stage.
func Run(prog *isa.Program, input []byte, seed uint64, numPublicValues int) ([]Outcome, error) {
	basicState := state.New(prog.EntryPC, input, seed, numPublicValues)
	if err := interp.RunBasic(prog, basicState, 0); err != nil {
		return nil, fmt.Errorf("consistency: basic mode: %w", err)
	}

	meteredState := state.New(prog.EntryPC, input, seed, numPublicValues)
	ctrl, err := segment.NewController(segment.DefaultLimits(), segment.AIRMetadata{}, segment.DefaultSegmentCheckInsns)
	if err != nil {
		return nil, fmt.Errorf("consistency: building segment controller: %w", err)
	}
	if err := interp.RunMetered(prog, meteredState, ctrl, interp.ZeroTraceSampler{}, 0); err != nil {
		return nil, fmt.Errorf("consistency: metered mode: %w", err)
	}

	// Preflight consumes an instret budget equal to however many
	// instructions the basic run actually retired, matching spec.md §8's
	// "preflight(P)" over the same program and input: one fixed segment
	// spanning the whole run.
	preflightState := state.New(prog.EntryPC, input, seed, numPublicValues)
	if err := interp.RunPreflight(prog, preflightState, basicState.Instret); err != nil {
		return nil, fmt.Errorf("consistency: preflight mode: %w", err)
	}

	// AOT is the highest-risk mode to leave unchecked here: it is the one
	// path that does not share interp.Step's Go-side semantics for every
	// natively emitted instruction, so it is the mode most likely to
	// silently diverge from the other three.
	builder, err := aotruntime.DefaultBuilder()
	if err != nil {
		return nil, fmt.Errorf("consistency: aot mode: %w", err)
	}
	rt, err := aotruntime.CompileAndBuild(builder, aot.NewCompiler(aot.DefaultEmitters()...), prog, "")
	if err != nil {
		return nil, fmt.Errorf("consistency: aot mode: %w", err)
	}
	defer rt.Close()

	aotState := state.New(prog.EntryPC, input, seed, numPublicValues)
	if err := rt.Execute(prog, aotState); err != nil {
		return nil, fmt.Errorf("consistency: aot mode: %w", err)
	}

	return []Outcome{
		{Mode: "basic", Instret: basicState.Instret, PC: basicState.PC, Memory: basicState},
		{Mode: "metered", Instret: meteredState.Instret, PC: meteredState.PC, Memory: meteredState},
		{Mode: "preflight", Instret: preflightState.Instret, PC: preflightState.PC, Memory: preflightState},
		{Mode: "aot", Instret: aotState.Instret, PC: aotState.PC, Memory: aotState},
	}, nil
}

// Check runs Run and reports the first Mismatch found across every
// pairwise comparison of instret, pc, and every address space's raw bytes,
// or nil if all four modes agree (spec.md §8's "Mode equivalence" holds).
func Check(prog *isa.Program, input []byte, seed uint64, numPublicValues int) error {
	outcomes, err := Run(prog, input, seed, numPublicValues)
	if err != nil {
		return err
	}
	return Compare(outcomes)
}

// Compare checks every pairwise agreement across outcomes, returning the
// first Mismatch found. It is exported separately from Check so a caller
// that already has Outcomes on hand (for example, one that assembled its
// own subset of modes) can fold them in without re-executing Run.
func Compare(outcomes []Outcome) error {
	for i := 0; i < len(outcomes); i++ {
		for j := i + 1; j < len(outcomes); j++ {
			a, b := outcomes[i], outcomes[j]
			if a.Instret != b.Instret {
				return &Mismatch{Axis: "instret", ModeA: a.Mode, ModeB: b.Mode,
					ValueA: fmt.Sprintf("%d", a.Instret), ValueB: fmt.Sprintf("%d", b.Instret)}
			}
			if a.PC != b.PC {
				return &Mismatch{Axis: "pc", ModeA: a.Mode, ModeB: b.Mode,
					ValueA: fmt.Sprintf("0x%08x", a.PC), ValueB: fmt.Sprintf("0x%08x", b.PC)}
			}
			if err := compareMemory(a, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func compareMemory(a, b Outcome) error {
	for _, space := range a.Memory.Memory.Spaces() {
		aBytes, err := a.Memory.Memory.Bytes(space)
		if err != nil {
			return fmt.Errorf("consistency: reading %s's %s space: %w", a.Mode, space, err)
		}
		bBytes, err := b.Memory.Memory.Bytes(space)
		if err != nil {
			return fmt.Errorf("consistency: reading %s's %s space: %w", b.Mode, space, err)
		}
		if !bytes.Equal(aBytes, bBytes) {
			return &Mismatch{Axis: fmt.Sprintf("memory:%s", space), ModeA: a.Mode, ModeB: b.Mode,
				ValueA: fmt.Sprintf("%d bytes", len(aBytes)), ValueB: fmt.Sprintf("%d bytes", len(bBytes))}
		}
	}
	return nil
}
