package sched

import (
	"math/rand/v2"

	"github.com/sarchlab/mcsim/process"
)

// Lottery draws the next process with probability proportional to its
// tickets. Tickets survive preemption.
type Lottery struct {
	basePolicy
	rng *rand.Rand
}

// NewLottery creates a lottery policy with a deterministic seed.
func NewLottery(quantum int, seed uint64) *Lottery {
	return &Lottery{
		basePolicy: basePolicy{quantum: quantum},
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Name returns the policy name.
func (l *Lottery) Name() string { return "Lottery" }

// SelectNext draws a winning ticket among the ready processes.
func (l *Lottery) SelectNext(m *Manager) *process.PCB {
	ready := m.ReadyQueue()
	if len(ready) == 0 {
		return nil
	}

	total := 0
	for _, p := range ready {
		total += tickets(p)
	}

	draw := l.rng.IntN(total)
	for _, p := range ready {
		draw -= tickets(p)
		if draw < 0 {
			return p
		}
	}
	return ready[len(ready)-1]
}

func tickets(p *process.PCB) int {
	if p.Tickets < 1 {
		return 1
	}
	return p.Tickets
}
