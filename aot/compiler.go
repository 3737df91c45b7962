package aot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rv32aot/core/isa"
)

// DefaultEmitters returns the emitter list a Compiler uses when none is
// supplied explicitly. Additional per-opcode emitters (loads, stores,
// mul/div) are expected to register themselves here as they are written;
// any opcode none of them claims falls back to the interpreter
// trampoline, so the compiler is correct (if slow) even before every
// opcode has a native emitter.
func DefaultEmitters() []Emitter {
	return []Emitter{BaseALU{}}
}

// Compiler lowers an isa.Program into host x86-64 NASM-syntax assembly
// text (spec.md §4.3). With at least one Emitter configured, JAL and the
// conditional branches are lowered by the compiler itself, JALR/ECALL/
// EBREAK always go to the fallback trampoline, and every other opcode is
// offered to each configured Emitter, in order; the first one that claims
// it wins. Unclaimed opcodes compile to a call into the fallback
// trampoline, which re-enters the Go-side interpreter for exactly that
// one instruction and then resumes compiled code.
type Compiler struct {
	emitters []Emitter
}

// NewCompiler builds a Compiler from an explicit emitter list. Passing
// no emitters is valid — every instruction then compiles through the
// fallback trampoline, which is correct, just unaccelerated.
func NewCompiler(emitters ...Emitter) *Compiler {
	return &Compiler{emitters: emitters}
}

func label(pc uint32) string {
	return fmt.Sprintf("L_%08x", pc)
}

// Compile produces the full NASM translation unit for prog: section and
// global-symbol declarations, prologue, one labeled block per instruction, the
// dispatch routine and its jump table (spec.md §9's resolved
// "generated per-label dispatch + jump table" design for indirect and
// out-of-range control flow), the fallback trampoline, and the
// epilogue.
//
// Entry ABI (rv32aot_entry, see aotruntime for the Go-side caller):
//
//	rdi = register buffer base        (kept live in rbx)
//	rsi = instret cell pointer (*u64) (kept live in r12)
//	rdx = pc cell pointer (*u32)      (kept live in r13)
//	rcx = fallback callback address   (kept live in r14)
//
// This is a deliberate 4-parameter collapse of spec.md §6's literal
// 5-parameter/named-extern-symbol contract (pre_compute, instret, pc,
// arg, state, with externs openvm_aot_handler/
// openvm_sync_registers_to_memory/openvm_sync_registers_from_memory):
// the register buffer absorbs pre_compute/state/arg's roles, and the
// fallback is resolved to one purego.NewCallback address at build time
// instead of three link-time symbols, since this core has no cgo step
// to resolve them against. See SPEC_FULL.md's OQ3 for the full
// reasoning.
//
// Every instruction compiled by a registered Emitter also emits the
// instret-increment and pc-cell-store housekeeping described in spec.md
// §4.3: these two cells are the ones the caller reads back after the
// call returns, so they are kept current at every instruction boundary,
// not just at fallback/exit. r15d remains the Emitter contract's free
// scratch register.
func (c *Compiler) Compile(prog *isa.Program) (string, error) {
	if prog.Len() == 0 {
		return "", fmt.Errorf("aot: cannot compile an empty program")
	}

	var body strings.Builder
	pcs := make([]uint32, 0, prog.Len())

	for i := 0; i < prog.Len(); i++ {
		inst := prog.Instructions[i]
		pcs = append(pcs, inst.PC)

		fmt.Fprintf(&body, "%s:\n", label(inst.PC))
		if len(c.emitters) == 0 {
			body.WriteString(emitFallbackCall(inst.PC))
			continue
		}
		fallthroughPC := inst.PC + isa.Step
		hasFallthrough := true

		switch inst.Opcode {
		case isa.OpJal:
			target := uint32(int64(inst.PC) + inst.C)
			body.WriteString(emitLink(inst.A, inst.PC+isa.Step))
			body.WriteString(bumpInstret())
			body.WriteString(c.emitStaticJump(prog, target))
			hasFallthrough = false
		case isa.OpBeq, isa.OpBne, isa.OpBlt, isa.OpBge, isa.OpBltu, isa.OpBgeu:
			taken := uint32(int64(inst.PC) + inst.C)
			body.WriteString(bumpInstret())
			body.WriteString(c.emitBranch(prog, inst, taken, fallthroughPC))
			hasFallthrough = false
		case isa.OpJalr, isa.OpEcall, isa.OpEbreak:
			body.WriteString(emitFallbackCall(inst.PC))
			hasFallthrough = false
		default:
			asm, claimed, err := c.tryEmit(inst)
			if err != nil {
				return "", err
			}
			if claimed {
				body.WriteString(asm)
				body.WriteString(bumpInstretAndPC(fallthroughPC))
			} else {
				body.WriteString(emitFallbackCall(inst.PC))
				hasFallthrough = false
			}
		}

		if hasFallthrough && !prog.InRange(fallthroughPC) {
			body.WriteString(emitFallbackCall(fallthroughPC))
		}
	}

	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })

	var out strings.Builder
	out.WriteString(prologue(prog.EntryPC))
	out.WriteString(body.String())
	out.WriteString(epilogue())
	out.WriteString(dispatchRoutine(prog, pcs))
	return out.String(), nil
}

func (c *Compiler) tryEmit(inst isa.Instruction) (string, bool, error) {
	for _, e := range c.emitters {
		asm, ok, err := e.TryEmit(inst)
		if err != nil {
			return "", true, err
		}
		if ok {
			return asm, true, nil
		}
	}
	return "", false, nil
}

// bumpInstret increments the instret cell ([r12]) by one. Used for
// control-flow opcodes (JAL, branches) whose pc update is already
// explicit in the emitted jump, so only the counter needs bumping here.
func bumpInstret() string {
	return "    mov rax, [r12]\n    inc rax\n    mov [r12], rax\n"
}

// bumpInstretAndPC increments the instret cell and stores nextPC into
// the pc cell ([r13]): the housekeeping spec.md §4.3 requires around
// every non-branching emitted fragment.
func bumpInstretAndPC(nextPC uint32) string {
	return bumpInstret() + fmt.Sprintf("    mov dword [r13], %d\n", nextPC)
}

// emitStaticJump handles JAL: the target is known at compile time. If it
// falls inside the compiled program, control transfers with a direct
// jmp; otherwise it is equivalent to an indirect jump for our purposes,
// so it goes through setPCCell + the dispatch routine.
func (c *Compiler) emitStaticJump(prog *isa.Program, target uint32) string {
	if prog.InRange(target) {
		return setPCCell(target) + fmt.Sprintf("    jmp %s\n", label(target))
	}
	return setPCCell(target) + "    jmp dispatch\n"
}

// emitBranch compares the two guest registers (loaded into eax/ecx) and
// branches with the matching conditional jump to either the taken or
// fallthrough target, each resolved the same way as emitStaticJump.
func (c *Compiler) emitBranch(prog *isa.Program, inst isa.Instruction, taken, fallthroughPC uint32) string {
	var cond strings.Builder
	fmt.Fprintf(&cond, "    mov rax, %s\n", regMemOperand64(inst.A))
	fmt.Fprintf(&cond, "    mov rcx, %s\n", regMemOperand64(inst.B))
	op := map[isa.Opcode]string{
		isa.OpBeq:  "je",
		isa.OpBne:  "jne",
		isa.OpBlt:  "jl",
		isa.OpBge:  "jge",
		isa.OpBltu: "jb",
		isa.OpBgeu: "jae",
	}[inst.Opcode]
	cond.WriteString("    cmp eax, ecx\n")

	takenLabel := fmt.Sprintf("%s_taken", label(inst.PC))
	fmt.Fprintf(&cond, "    %s %s\n", op, takenLabel)
	cond.WriteString(c.branchTarget(prog, fallthroughPC))
	fmt.Fprintf(&cond, "%s:\n", takenLabel)
	cond.WriteString(c.branchTarget(prog, taken))
	return cond.String()
}

func (c *Compiler) branchTarget(prog *isa.Program, target uint32) string {
	if prog.InRange(target) {
		return setPCCell(target) + fmt.Sprintf("    jmp %s\n", label(target))
	}
	return setPCCell(target) + "    jmp dispatch\n"
}

// regMemOperand64 is the source operand for the 64-bit register loads in
// branch comparisons: regMemOperand for registers 1..31, and the literal
// 0 for the zero register, which has no buffer slot to read.
func regMemOperand64(idx int64) string {
	if idx == 0 {
		return "0"
	}
	return regMemOperand(idx)
}

// emitLink stores linkPC into rd, JAL's return-address write. rd == 0 is
// legal RISC-V (a JAL used purely for its jump, not its link) and is a
// no-op: the zero register discards writes.
func emitLink(rd int64, linkPC uint32) string {
	if rd == 0 {
		return ""
	}
	return fmt.Sprintf("    mov dword %s, %d\n", regMemOperand(rd), linkPC)
}

// setPCCell stores pc into the caller-owned pc cell at [r13].
func setPCCell(pc uint32) string {
	return fmt.Sprintf("    mov dword [r13], %d\n", pc)
}

// emitFallbackCall routes control through the fallback trampoline for
// the instruction at pc: JALR (target only known at runtime), ECALL /
// EBREAK (side-effecting on Go-owned I/O state), and any opcode no
// registered Emitter claims. instret is not bumped here: the fallback
// callback re-enters the Go-side interpreter's Step, which retires the
// instruction itself (spec.md §9's open question on instret accounting
// under fallback: whichever side executes an instruction retires it).
func emitFallbackCall(pc uint32) string {
	return setPCCell(pc) + "    jmp fallback\n"
}

func prologue(entryPC uint32) string {
	return strings.Join([]string{
		"bits 64",
		"default rel",
		"",
		"section .text",
		"global rv32aot_entry",
		// rv32aot_entry(rdi: register buffer base, rsi: instret cell
		// pointer, rdx: pc cell pointer, rcx: fallback callback address).
		// The callback address is passed in rather than resolved as an
		// extern symbol because the generated object is dlopen'd at
		// runtime (purego), with no static link step against the Go
		// binary that owns the callback; the instret/pc cells are raw
		// pointers into the caller's execution state, per spec.md §4.6.
		"rv32aot_entry:",
		"    push rbx",
		"    push r12",
		"    push r13",
		"    push r14",
		"    push r15",
		"    mov rbx, rdi      ; rbx = register file base, per the Emitter contract",
		"    mov r12, rsi      ; r12 = instret cell pointer",
		"    mov r13, rdx      ; r13 = pc cell pointer",
		"    mov r14, rcx      ; r14 = fallback callback address",
		fmt.Sprintf("    cmp dword [r13], %d ; initial pc vs the program's entry pc", entryPC),
		"    jne fallback",
		"    jmp dispatch",
		"",
	}, "\n")
}

func epilogue() string {
	return strings.Join([]string{
		"",
		"aot_return:",
		"    pop r15",
		"    pop r14",
		"    pop r13",
		"    pop r12",
		"    pop rbx",
		"    ret",
		"",
	}, "\n")
}

// fallbackTrampoline resolves control-flow ambiguity the way this core's
// open design question on fallback control flow settles it: it calls
// back into the Go-side interpreter for exactly the instruction named
// by the pc cell, passing the register buffer and the instret/pc cell
// pointers so the callback can flush/refill the buffer and update both
// cells directly, then loops back into dispatch rather than returning.
// Compiled code exits only when the callback returns non-zero: the guest
// terminated, a Step failed, or the pc lies outside the program.
func fallbackTrampoline() string {
	return strings.Join([]string{
		"fallback:",
		"    mov rdi, rbx       ; register buffer base",
		"    mov rsi, r12       ; instret cell pointer",
		"    mov rdx, r13       ; pc cell pointer",
		"    call r14",
		"    test eax, eax",
		"    jnz aot_return      ; non-zero: guest terminated or faulted, unwind",
		"    jmp dispatch",
		"",
	}, "\n")
}

// dispatchRoutine builds the pc -> label jump table and the dispatch
// label that indexes into it from the pc cell. Any pc outside the
// compiled program's range — including every pc the fallback trampoline
// may hand back after a dynamic jump, and the terminate sentinel —
// resolves through the fallback path instead of indexing the table.
func dispatchRoutine(prog *isa.Program, sortedPCs []uint32) string {
	var out strings.Builder
	out.WriteString("dispatch:\n")
	out.WriteString("    mov eax, [r13]\n")
	fmt.Fprintf(&out, "    sub eax, %d\n", prog.EntryPC)
	fmt.Fprintf(&out, "    cmp eax, %d\n", prog.EndPC()-prog.EntryPC)
	out.WriteString("    jae fallback\n")
	out.WriteString("    test eax, 3\n")
	out.WriteString("    jnz fallback\n")
	out.WriteString("    shr eax, 2\n")
	out.WriteString("    cmp eax, jump_table_len\n")
	out.WriteString("    jae fallback\n")
	out.WriteString("    lea rcx, [jump_table]\n")
	out.WriteString("    jmp [rcx+rax*8]\n")
	out.WriteString("\n")
	out.WriteString(fallbackTrampoline())

	out.WriteString("\nsection .rodata\n")
	fmt.Fprintf(&out, "jump_table_len equ %d\n", len(sortedPCs))
	out.WriteString("jump_table:\n")
	for _, pc := range sortedPCs {
		fmt.Fprintf(&out, "    dq %s\n", label(pc))
	}
	return out.String()
}
