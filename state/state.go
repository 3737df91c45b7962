// Package state holds the guest execution state shared by every
// execution mode (basic, metered, AOT, preflight): the instret counter,
// program counter, guest memory, I/O streams, seed, and public-value count
// (spec.md §3 "Execution state").
package state

import (
	"bytes"
	"fmt"

	"github.com/rv32aot/core/memory"
)

// TerminateSentinel is the pc value that signals normal termination. The
// interpreter's Step writes it for EBREAK and the halt ECALL, in every
// execution mode including the AOT fallback path.
const TerminateSentinel uint32 = 0xFFFFFFFF

// State is the mutable execution state threaded through a guest run.
type State struct {
	Instret uint64
	PC      uint32
	Memory  *memory.Memory

	Input  *bytes.Reader
	Output *bytes.Buffer

	Seed uint64

	// NumPublicValues is the count of public-value slots reserved for the
	// proof pipeline; the AOT core does not interpret their contents.
	NumPublicValues int
}

// New creates a State at entryPC over a fresh guest Memory.
func New(entryPC uint32, input []byte, seed uint64, numPublicValues int) *State {
	if entryPC%4 != 0 {
		panic(fmt.Sprintf("state: entry pc 0x%08x is not 4-byte aligned", entryPC))
	}
	return &State{
		PC:              entryPC,
		Memory:          memory.New(),
		Input:           bytes.NewReader(input),
		Output:          &bytes.Buffer{},
		Seed:            seed,
		NumPublicValues: numPublicValues,
	}
}

// Retire advances instret by one and moves pc to the next sequential
// instruction. It is the housekeeping every non-branching, non-fallback
// step performs; branch/jump opcodes set PC directly instead and still
// call RetireInstret.
func (s *State) Retire() {
	s.RetireInstret()
	s.PC += 4
}

// RetireInstret increments the retired-instruction counter. It is the
// only mutator on the interpreter side; under AOT, compiled code also
// increments the instret cell directly, and aotruntime's fallback copies
// that cell into Instret before stepping.
func (s *State) RetireInstret() {
	s.Instret++
}

// Terminated reports whether PC holds the terminate sentinel.
func (s *State) Terminated() bool {
	return s.PC == TerminateSentinel
}
