// Package memory implements the guest's partitioned byte store: a fixed
// set of named address spaces, with the register and immediate spaces
// given their special semantics from spec.md §3.
package memory

import (
	"fmt"

	"github.com/rv32aot/core/isa"
)

// RegisterCount is the number of 32-bit guest registers.
const RegisterCount = 32

// RegisterSpaceSize is the register address space's size in bytes: 32
// little-endian 4-byte words.
const RegisterSpaceSize = RegisterCount * 4

// DefaultMemorySpaceSize is the default size of the ordinary "memory"
// address space created by New.
const DefaultMemorySpaceSize = 1 << 20 // 1MB

// space is one contiguous byte region.
type space struct {
	name string
	data []byte
}

// Memory is the guest's address-space-partitioned byte store.
type Memory struct {
	spaces map[isa.AddressSpace]*space
	order  []isa.AddressSpace
}

// New creates a Memory with the Register space (sized RegisterSpaceSize)
// and one ordinary Memory space sized DefaultMemorySpaceSize. The
// Immediate pseudo-space gets no backing store (see AddSpace).
func New() *Memory {
	m := &Memory{spaces: make(map[isa.AddressSpace]*space)}
	m.AddSpace(isa.Register, "register", RegisterSpaceSize)
	m.AddSpace(isa.Memory, "memory", DefaultMemorySpaceSize)
	return m
}

// AddSpace registers a new named address space. It is a no-op to call this
// for isa.Immediate: there is no backing store for the immediate
// pseudo-space since an operand tagged with it is never a memory load.
func (m *Memory) AddSpace(tag isa.AddressSpace, name string, size uint32) {
	if tag == isa.Immediate {
		return
	}
	if _, exists := m.spaces[tag]; !exists {
		m.order = append(m.order, tag)
	}
	m.spaces[tag] = &space{name: name, data: make([]byte, size)}
}

// Spaces returns the address-space tags in registration order, for
// deterministic byte-equality comparison across execution modes (spec.md
// §8, "byte-for-byte-equal final memory across all address spaces").
func (m *Memory) Spaces() []isa.AddressSpace {
	return append([]isa.AddressSpace(nil), m.order...)
}

func (m *Memory) space(tag isa.AddressSpace) (*space, error) {
	s, ok := m.spaces[tag]
	if !ok {
		return nil, fmt.Errorf("memory: unknown address space %s", tag)
	}
	return s, nil
}

// Bytes returns the raw backing bytes of an address space, for read-only
// inspection (serialization, equality checks). Callers must not mutate the
// returned slice.
func (m *Memory) Bytes(tag isa.AddressSpace) ([]byte, error) {
	s, err := m.space(tag)
	if err != nil {
		return nil, err
	}
	return s.data, nil
}

// ReadByte reads one byte from an address space.
func (m *Memory) ReadByte(tag isa.AddressSpace, addr uint32) (byte, error) {
	s, err := m.space(tag)
	if err != nil {
		return 0, err
	}
	if int(addr) >= len(s.data) {
		return 0, fmt.Errorf("memory: read out of bounds: space=%s addr=0x%08x size=%d", s.name, addr, len(s.data))
	}
	return s.data[addr], nil
}

// WriteByte writes one byte to an address space. A write to the register
// space that falls within register 0's word (offsets 0..3) is silently
// discarded, per spec.md §3.
func (m *Memory) WriteByte(tag isa.AddressSpace, addr uint32, value byte) error {
	s, err := m.space(tag)
	if err != nil {
		return err
	}
	if int(addr) >= len(s.data) {
		return fmt.Errorf("memory: write out of bounds: space=%s addr=0x%08x size=%d", s.name, addr, len(s.data))
	}
	if tag == isa.Register && addr < 4 {
		return nil
	}
	s.data[addr] = value
	return nil
}

// ReadWord reads a little-endian 32-bit word from an address space.
func (m *Memory) ReadWord(tag isa.AddressSpace, addr uint32) (uint32, error) {
	s, err := m.space(tag)
	if err != nil {
		return 0, err
	}
	if int(addr)+4 > len(s.data) {
		return 0, fmt.Errorf("memory: word read out of bounds: space=%s addr=0x%08x size=%d", s.name, addr, len(s.data))
	}
	b := s.data[addr : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// WriteWord writes a little-endian 32-bit word to an address space. A
// write to register 0 (the register space's first word) is silently
// discarded.
func (m *Memory) WriteWord(tag isa.AddressSpace, addr uint32, value uint32) error {
	s, err := m.space(tag)
	if err != nil {
		return err
	}
	if int(addr)+4 > len(s.data) {
		return fmt.Errorf("memory: word write out of bounds: space=%s addr=0x%08x size=%d", s.name, addr, len(s.data))
	}
	if tag == isa.Register && addr == 0 {
		return nil
	}
	b := s.data[addr : addr+4]
	b[0] = byte(value)
	b[1] = byte(value >> 8)
	b[2] = byte(value >> 16)
	b[3] = byte(value >> 24)
	return nil
}

// ReadRegister reads guest register idx (0..31). Register 0 always reads
// zero.
func (m *Memory) ReadRegister(idx uint32) uint32 {
	if idx == 0 {
		return 0
	}
	v, err := m.ReadWord(isa.Register, idx*4)
	if err != nil {
		panic(err) // idx is caller-validated to be < RegisterCount
	}
	return v
}

// WriteRegister writes guest register idx. Writes to register 0 are
// no-ops.
func (m *Memory) WriteRegister(idx uint32, value uint32) {
	if idx == 0 {
		return
	}
	if err := m.WriteWord(isa.Register, idx*4, value); err != nil {
		panic(err)
	}
}
