// Package regsync implements the host-ABI register file abstraction of
// spec.md §4.1: bidirectional synchronization between the guest's register
// address space and the contiguous 128-byte buffer the emitted host code
// addresses directly.
package regsync

import (
	"github.com/rv32aot/core/memory"
)

// RegisterCount is the number of guest registers the buffer holds.
const RegisterCount = memory.RegisterCount

// BufferSize is the buffer's size in bytes: 32 registers * 4 bytes.
const BufferSize = memory.RegisterSpaceSize

// Buffer is the host-stack-resident register buffer the emitted assembly
// addresses as `[rbx + reg*4]`. It is a plain value type so it can live on
// an actual host stack frame when bridged through aotruntime, or be used
// directly by Go-side callers (the basic/metered interpreters do not use
// it; it exists purely for the AOT path and its tests).
type Buffer struct {
	Words [RegisterCount]uint32
}

// Read returns register idx. Register 0 always reads zero.
func (b *Buffer) Read(idx uint32) uint32 {
	if idx == 0 {
		return 0
	}
	return b.Words[idx]
}

// Write sets register idx. Writes to index 0 are no-ops.
func (b *Buffer) Write(idx uint32, value uint32) {
	if idx == 0 {
		return
	}
	b.Words[idx] = value
}

// LoadFromMemory copies guest registers 1..31 from mem into buf and sets
// buf[0] := 0. This is the "Load-from-memory" synchronization primitive.
func LoadFromMemory(buf *Buffer, mem *memory.Memory) {
	buf.Words[0] = 0
	for i := uint32(1); i < RegisterCount; i++ {
		buf.Words[i] = mem.ReadRegister(i)
	}
}

// StoreToMemory copies buf registers 1..31 back into mem. Index 0 is never
// written, matching guest register 0's hard-wired-zero semantics. This is
// the "Store-to-memory" synchronization primitive.
func StoreToMemory(buf *Buffer, mem *memory.Memory) {
	for i := uint32(1); i < RegisterCount; i++ {
		mem.WriteRegister(i, buf.Words[i])
	}
}

// ReadAll returns a copy of all 32 registers.
func (b *Buffer) ReadAll() [RegisterCount]uint32 {
	out := b.Words
	out[0] = 0
	return out
}

// WriteAll bulk-writes all 32 registers, skipping index 0.
func (b *Buffer) WriteAll(values [RegisterCount]uint32) {
	for i := uint32(1); i < RegisterCount; i++ {
		b.Words[i] = values[i]
	}
}
