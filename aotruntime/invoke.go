package aotruntime

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/rv32aot/core/interp"
	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/regsync"
	"github.com/rv32aot/core/state"
)

// entrySymbol is the externally visible symbol every compiled translation
// unit exports (spec.md §6's "Generated-assembly surface").
const entrySymbol = "rv32aot_entry"

// Runtime owns a built, loaded AOT shared library (spec.md §3's "AOT
// runtime"): a temporary directory (deleted on Close unless keep is set),
// a loaded-library handle, and the resolved entry-point function pointer.
// A Runtime owns no guest state; each Execute call borrows pointers into
// caller-supplied state for the duration of that call. A Runtime is not
// concurrently invocable (spec.md §5); callers wanting parallel executions
// build independent Runtimes.
type Runtime struct {
	dir    string
	keep   bool
	handle uintptr
	entry  uintptr
}

// Close releases the runtime's temporary directory. The loaded library is
// not explicitly unmapped — it is not shared or cached across runtimes,
// and the process-lifetime cost of one mapped library is acceptable for
// this core's single-shot-per-Runtime usage.
func (r *Runtime) Close() error {
	if r.keep {
		return nil
	}
	return os.RemoveAll(r.dir)
}

// Dir returns the runtime's temporary build directory, for diagnostics or
// KeepArtifacts inspection.
func (r *Runtime) Dir() string {
	return r.dir
}

// Execute invokes the loaded entry point over prog and s (spec.md §4.6,
// "Foreign-code invocation"). It is inherently unsafe: the caller must
// ensure the Emitter list the Compiler used to produce this Runtime's
// assembly agrees with prog, and that prog is exactly the program s.PC
// addresses.
//
// The call sequence is: load the host register buffer from s.Memory,
// invoke the entry point with raw pointers to the buffer and to s's
// instret/pc cells (the entry-point ABI of spec.md §6, concretely fixed
// by aot.Compiler.Compile's doc comment), then flush the buffer back to
// s.Memory once the call returns. Every fallback re-entry into the
// Go-side interpreter (see newFallback) performs its own buffer
// flush/refill around the single instruction it executes, so s.Memory is
// always consistent at the moments the fallback callback observes it —
// the zero-register invariant (spec.md §8) holds at every such boundary
// because regsync.LoadFromMemory/StoreToMemory enforce it.
func (r *Runtime) Execute(prog *isa.Program, s *state.State) error {
	var buf regsync.Buffer
	regsync.LoadFromMemory(&buf, s.Memory)

	var execErr error
	cb := newFallback(prog, s, &execErr)

	bufBase := uintptr(unsafe.Pointer(&buf.Words[0]))
	instretPtr := uintptr(unsafe.Pointer(&s.Instret))
	pcPtr := uintptr(unsafe.Pointer(&s.PC))

	purego.SyscallN(r.entry, bufBase, instretPtr, pcPtr, cb)

	regsync.StoreToMemory(&buf, s.Memory)
	return execErr
}

// newFallback builds the C-callable callback the compiled entry point
// invokes whenever an instruction has no native emitter or control flow
// steps outside the translated range (spec.md §2, §4.3's fallback
// handler). The callback receives the live register buffer and the
// instret/pc cell pointers; it flushes the buffer to guest memory,
// single-steps the Go interpreter for exactly the instruction at the
// current pc, refills the buffer, and reports whether execution should
// continue (0) or the compiled loop should unwind (non-zero: guest
// terminated, or the pc fell outside the program and no further native
// dispatch is possible). outErr receives the same error RunBasic/RunMetered
// would return for the identical condition — an out-of-range pc without
// having reached the terminate sentinel is a malformed-program error, not a
// successful halt, and AOT must agree with the interpreter modes on that
// (spec.md §8, "Mode equivalence"), not invent a third outcome.
//
// Per spec.md §9's resolution of the instret-accounting open question,
// this callback increments instret itself via interp.Step — exactly as
// the basic and metered interpreters do — so the compiler never
// double-counts a fallback-handled instruction.
func newFallback(prog *isa.Program, s *state.State, outErr *error) uintptr {
	fn := func(bufPtr, instretPtr, pcPtr uintptr) uintptr {
		b := (*regsync.Buffer)(unsafe.Pointer(bufPtr))
		instretCell := (*uint64)(unsafe.Pointer(instretPtr))
		pcCell := (*uint32)(unsafe.Pointer(pcPtr))

		regsync.StoreToMemory(b, s.Memory)
		s.PC = *pcCell
		s.Instret = *instretCell

		inst, ok := prog.At(s.PC)
		if !ok {
			if s.PC != state.TerminateSentinel {
				*outErr = fmt.Errorf("aotruntime: pc 0x%08x is outside the program's translated range [0x%08x, 0x%08x)", s.PC, prog.EntryPC, prog.EndPC())
			}
			return 1
		}
		if err := interp.Step(s, inst); err != nil {
			*outErr = err
			*instretCell = s.Instret
			*pcCell = s.PC
			return 1
		}

		*instretCell = s.Instret
		*pcCell = s.PC
		if s.Terminated() {
			return 1
		}
		regsync.LoadFromMemory(b, s.Memory)
		return 0
	}
	return purego.NewCallback(fn)
}
