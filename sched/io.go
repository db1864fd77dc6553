package sched

import (
	"sync"

	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/process"
)

// ioResource is the single I/O device. owner is 0 when it is free.
type ioResource struct {
	mu    sync.Mutex
	owner int
}

// TryAcquireIO claims the I/O device for p. It fails if another process
// holds it.
func (m *Manager) TryAcquireIO(p *process.PCB) bool {
	m.io.mu.Lock()
	owner := m.io.owner
	if owner == 0 || owner == p.PID {
		m.io.owner = p.PID
		p.OwnsIO = true
	}
	m.io.mu.Unlock()

	if owner != 0 && owner != p.PID {
		m.emit(display.HookPosIOContention, p.LastCore, p.PID, "I/O busy", "owner", owner)
		return false
	}
	return true
}

// ReleaseIO gives up the I/O device if p holds it.
func (m *Manager) ReleaseIO(p *process.PCB) {
	m.io.mu.Lock()
	defer m.io.mu.Unlock()

	if m.io.owner == p.PID {
		m.io.owner = 0
	}
	p.OwnsIO = false
}

// IOOwner returns the pid holding the I/O device, or 0.
func (m *Manager) IOOwner() int {
	m.io.mu.Lock()
	defer m.io.mu.Unlock()
	return m.io.owner
}
