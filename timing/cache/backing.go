package cache

import (
	"github.com/sarchlab/mcsim/emu"
)

// BackingStore supplies instruction text for blocks the cache prefetches.
type BackingStore interface {
	InstructionAt(addr uint64) (string, bool)
}

// MemoryBacking wraps emu.Memory as a BackingStore.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// InstructionAt fetches the instruction text at addr from the backing memory.
func (m *MemoryBacking) InstructionAt(addr uint64) (string, bool) {
	return m.memory.InstructionAt(addr)
}
