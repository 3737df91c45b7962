package aotruntime

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ebitengine/purego"
)

// DefaultHandlerSrc is the minimal fallback-handler C source
// original_source/crates/vm/src/arch/aot/runtime.rs carries as
// AotRuntimeBuilder::build's default handler (a weak `openvm_aot_handler`
// that unconditionally terminates): it is compiled and linked alongside
// the generated assembly only when a caller passes it as Builder.Build's
// handlerSrc parameter (builder_test.go exercises this path directly).
// Linking it does not make it the fallback: the generated code always
// calls the callback address passed in rcx, and Runtime.Execute always
// passes its Go closure bridged in via purego.NewCallback (see invoke.go
// and SPEC_FULL.md's OQ3), so nothing calls the linked C function.
const DefaultHandlerSrc = `#include <stdint.h>
// A minimal handler that sets pc to the terminate sentinel. It is linked
// into the library when supplied, but neither the generated code nor
// Runtime.Execute calls it.
uint64_t rv32aot_default_handler(uint64_t *instret, uint32_t *pc) {
    (void)instret;
    *pc = 0xFFFFFFFFu;
    return 1;
}
`

// Builder materializes a temporary build directory, drives the external
// assembler and C compiler, links a shared library, and loads it
// (spec.md §4.4). One Builder value can drive many independent Build
// calls; each call produces its own Runtime with its own temp directory.
type Builder struct {
	Assembler     string // e.g. "nasm"
	CCompiler     string // e.g. "cc"
	ObjFormat     string // e.g. "elf64", "macho64"
	KeepArtifacts bool
}

// NewBuilder constructs a Builder with explicit toolchain settings.
func NewBuilder(assembler, cCompiler, objFormat string, keepArtifacts bool) *Builder {
	return &Builder{Assembler: assembler, CCompiler: cCompiler, ObjFormat: objFormat, KeepArtifacts: keepArtifacts}
}

// DefaultBuilder returns a Builder using "nasm"/"cc" and the object format
// matching the host OS, or nil and an UnsupportedPlatformError if the host
// OS has no known recipe.
func DefaultBuilder() (*Builder, error) {
	objFormat, err := hostObjFormat()
	if err != nil {
		return nil, err
	}
	return &Builder{Assembler: "nasm", CCompiler: "cc", ObjFormat: objFormat}, nil
}

func hostObjFormat() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "elf64", nil
	case "darwin":
		return "macho64", nil
	default:
		return "", &UnsupportedPlatformError{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
	}
}

func sharedLibExt() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

// Build assembles asmText (the output of aot.Compiler.Compile), optionally
// compiles and links handlerSrc alongside it (pass "" to skip; see
// DefaultHandlerSrc's doc comment for why the core's normal path never
// needs one), links a position-independent shared library, and loads it.
// entryPC is carried only so a build failure can be reported anchored at
// the program's entry pc, per spec.md §7.
func (b *Builder) Build(asmText, handlerSrc string, entryPC uint32) (*Runtime, error) {
	if _, err := hostObjFormat(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "rv32aot-build-")
	if err != nil {
		return nil, &AotCompileFailureError{Stage: "assemble", EntryPC: entryPC, Tool: "mkdtemp", Err: err}
	}
	cleanup := func() {
		if !b.KeepArtifacts {
			os.RemoveAll(dir)
		}
	}

	asmPath := filepath.Join(dir, "aot.asm")
	if err := os.WriteFile(asmPath, []byte(asmText), 0o600); err != nil {
		cleanup()
		return nil, &AotCompileFailureError{Stage: "assemble", EntryPC: entryPC, Tool: "write", Err: err}
	}

	objPath := filepath.Join(dir, "aot.o")
	if err := b.runTool(dir, "assemble", entryPC, b.Assembler,
		"-f", b.ObjFormat, "-o", objPath, asmPath); err != nil {
		cleanup()
		return nil, err
	}
	objs := []string{objPath}

	if handlerSrc != "" {
		handlerPath := filepath.Join(dir, "handler.c")
		if err := os.WriteFile(handlerPath, []byte(handlerSrc), 0o600); err != nil {
			cleanup()
			return nil, &AotCompileFailureError{Stage: "compile", EntryPC: entryPC, Tool: "write", Err: err}
		}
		handlerObj := filepath.Join(dir, "handler.o")
		if err := b.runTool(dir, "compile", entryPC, b.CCompiler,
			"-c", "-fPIC", "-o", handlerObj, handlerPath); err != nil {
			cleanup()
			return nil, err
		}
		objs = append(objs, handlerObj)
	}

	libPath := filepath.Join(dir, "librv32aot"+sharedLibExt())
	linkArgs := append([]string{"-shared", "-o", libPath}, objs...)
	if err := b.runTool(dir, "link", entryPC, b.CCompiler, linkArgs...); err != nil {
		cleanup()
		return nil, err
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		cleanup()
		return nil, &AotCompileFailureError{Stage: "load", EntryPC: entryPC, Tool: "dlopen", Args: []string{libPath}, Err: err}
	}

	entry, err := purego.Dlsym(handle, entrySymbol)
	if err != nil {
		cleanup()
		return nil, &NoEntryPointError{Symbol: entrySymbol, Path: libPath}
	}

	return &Runtime{dir: dir, keep: b.KeepArtifacts, handle: handle, entry: entry}, nil
}

// runTool invokes an external build-tool command inside dir, returning a
// typed AotCompileFailureError naming stage on non-zero exit.
func (b *Builder) runTool(dir, stage string, entryPC uint32, tool string, args ...string) error {
	cmd := exec.Command(tool, args...) // #nosec G204 -- tool/args come from caller-controlled Builder config, not external input
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &AotCompileFailureError{Stage: stage, EntryPC: entryPC, Tool: tool, Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}
