// Package aotruntime drives the external build toolchain (NASM, a C
// compiler) that turns compiled assembly text into a loadable shared
// library, and the dlopen/dlsym bridge (github.com/ebitengine/purego)
// that invokes it without cgo.
package aotruntime

import "fmt"

// AotCompileFailureError reports that a build stage (assemble, compile,
// link, or load) returned non-zero or otherwise failed, surfaced to the
// caller as an execution failure anchored at the program's entry pc
// (spec.md §7).
type AotCompileFailureError struct {
	Stage   string // "assemble", "compile", "link", or "load"
	EntryPC uint32
	Tool    string
	Args    []string
	Stderr  string
	Err     error
}

func (e *AotCompileFailureError) Error() string {
	return fmt.Sprintf("aotruntime: stage=%s entry_pc=0x%08x: %s %v failed: %v\n%s",
		e.Stage, e.EntryPC, e.Tool, e.Args, e.Err, e.Stderr)
}

func (e *AotCompileFailureError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError reports that this runtime has no NASM object
// format / shared-library recipe for the current GOOS/GOARCH.
type UnsupportedPlatformError struct {
	GOOS   string
	GOARCH string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("aotruntime: no build recipe for GOOS=%s GOARCH=%s (AOT execution requires linux/amd64 or darwin/amd64)", e.GOOS, e.GOARCH)
}

// NoEntryPointError reports that a built shared library does not export
// the symbol the runtime expects to invoke.
type NoEntryPointError struct {
	Symbol string
	Path   string
}

func (e *NoEntryPointError) Error() string {
	return fmt.Sprintf("aotruntime: %s does not export symbol %q", e.Path, e.Symbol)
}
