package aotruntime

import (
	"github.com/rv32aot/core/aot"
	"github.com/rv32aot/core/isa"
)

// CompileAndBuild runs the full AOT pipeline named in spec.md §2 items 3-4:
// aot.Compiler.Compile translates prog into assembly text, then b.Build
// assembles/links/loads it into a ready-to-Execute Runtime. handlerSrc is
// forwarded to Build unchanged (see Builder.Build's doc comment); "" is the
// normal case.
func CompileAndBuild(b *Builder, compiler *aot.Compiler, prog *isa.Program, handlerSrc string) (*Runtime, error) {
	asm, err := compiler.Compile(prog)
	if err != nil {
		return nil, err
	}
	return b.Build(asm, handlerSrc, prog.EntryPC)
}
