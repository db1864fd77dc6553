package sched

import "github.com/sarchlab/mcsim/process"

// RoundRobin runs ready processes in FIFO order. Preempted processes go to
// the tail.
type RoundRobin struct {
	basePolicy
}

// NewRoundRobin creates a round-robin policy.
func NewRoundRobin(quantum int) *RoundRobin {
	return &RoundRobin{basePolicy{quantum: quantum}}
}

// Name returns the policy name.
func (r *RoundRobin) Name() string { return "Round Robin" }

// SelectNext returns the head of the ready queue.
func (r *RoundRobin) SelectNext(m *Manager) *process.PCB {
	return fifo(m)
}

func fifo(m *Manager) *process.PCB {
	ready := m.ReadyQueue()
	if len(ready) == 0 {
		return nil
	}
	return ready[0]
}
