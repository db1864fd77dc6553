package sched

import "github.com/sarchlab/mcsim/process"

// SJF runs the ready process with the smallest memory footprint first. Ties
// go to the earliest queued. A preempted process keeps its place at the head
// so the job order is not disturbed by the quantum.
type SJF struct {
	basePolicy
}

// NewSJF creates a shortest-job-first policy.
func NewSJF(quantum int) *SJF {
	return &SJF{basePolicy{quantum: quantum}}
}

// Name returns the policy name.
func (s *SJF) Name() string { return "Shortest Job First" }

// SelectNext returns the ready process with the smallest footprint.
func (s *SJF) SelectNext(m *Manager) *process.PCB {
	var best *process.PCB
	for _, p := range m.ReadyQueue() {
		if best == nil || p.Footprint() < best.Footprint() {
			best = p
		}
	}
	return best
}

// OnQuantumExpired puts the preempted process back at the head.
func (s *SJF) OnQuantumExpired(m *Manager, p *process.PCB) {
	m.PushReadyFront(p)
}
