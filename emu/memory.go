package emu

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMemorySize is the default number of memory cells.
const DefaultMemorySize = 4096

// ErrOutOfMemory is returned when an allocation does not fit.
var ErrOutOfMemory = errors.New("out of memory")

// Memory is the shared memory of the machine. Every cell holds a data word
// and, for program cells, the instruction text loaded there. One cell is
// reserved as the I/O device address and is never handed out by Allocate.
//
// All accesses are serialized by a single lock.
type Memory struct {
	mu     sync.Mutex
	words  []int64
	text   []string
	ioAddr uint64
	next   uint64
}

// NewMemory creates a memory with size cells and the I/O sentinel at ioAddr.
func NewMemory(size int, ioAddr uint64) *Memory {
	return &Memory{
		words:  make([]int64, size),
		text:   make([]string, size),
		ioAddr: ioAddr,
	}
}

// Size returns the number of cells.
func (m *Memory) Size() uint64 {
	return uint64(len(m.words))
}

// IOAddress returns the reserved I/O address.
func (m *Memory) IOAddress() uint64 {
	return m.ioAddr
}

// IsIO reports whether addr is the reserved I/O address.
func (m *Memory) IsIO(addr uint64) bool {
	return addr == m.ioAddr
}

// Contains reports whether addr is a valid cell.
func (m *Memory) Contains(addr uint64) bool {
	return addr < uint64(len(m.words))
}

// Read returns the data word at addr. Invalid addresses read as 0.
func (m *Memory) Read(addr uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr >= uint64(len(m.words)) {
		return 0
	}
	return m.words[addr]
}

// Write stores a data word at addr. Writes to invalid addresses are dropped.
func (m *Memory) Write(addr uint64, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr >= uint64(len(m.words)) {
		return
	}
	m.words[addr] = value
}

// ReadRange returns a copy of n data words starting at addr.
func (m *Memory) ReadRange(addr uint64, n int) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int64, 0, n)
	for i := 0; i < n && addr+uint64(i) < uint64(len(m.words)); i++ {
		out = append(out, m.words[addr+uint64(i)])
	}
	return out
}

// InstructionAt returns the instruction text at addr, if any.
func (m *Memory) InstructionAt(addr uint64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr >= uint64(len(m.text)) || m.text[addr] == "" {
		return "", false
	}
	return m.text[addr], true
}

// Allocate reserves n consecutive cells and returns the first address.
// The I/O cell is never part of an allocation.
func (m *Memory) Allocate(n int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		return 0, fmt.Errorf("allocate %d cells: size must be > 0", n)
	}

	base := m.next
	end := base + uint64(n)
	if base <= m.ioAddr && m.ioAddr < end {
		base = m.ioAddr + 1
		end = base + uint64(n)
	}
	if end > uint64(len(m.words)) {
		return 0, fmt.Errorf("allocate %d cells at %d: %w", n, base, ErrOutOfMemory)
	}

	m.next = end
	return base, nil
}

// WriteProgram stores instruction lines at base, base+1, ...
func (m *Memory) WriteProgram(base uint64, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if base+uint64(len(lines)) > uint64(len(m.text)) {
		return fmt.Errorf("program of %d lines at %d: %w", len(lines), base, ErrOutOfMemory)
	}

	for i, line := range lines {
		m.text[base+uint64(i)] = line
		m.words[base+uint64(i)] = 0
	}
	return nil
}

// Reset clears every cell and the allocation cursor.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.words {
		m.words[i] = 0
		m.text[i] = ""
	}
	m.next = 0
}
