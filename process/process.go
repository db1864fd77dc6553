// Package process defines the process control block, its lifecycle state
// machine, and the execution context saved across context switches.
package process

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mcsim/emu"
)

// State is a process lifecycle state.
type State uint8

// Process states.
const (
	StateNew State = iota
	StateReady
	StateRunning
	StateBlocked
	StateFinished

	numStates
)

var stateNames = [numStates]string{
	StateNew:      "NEW",
	StateReady:    "READY",
	StateRunning:  "RUNNING",
	StateBlocked:  "BLOCKED",
	StateFinished: "FINISHED",
}

func (s State) String() string {
	if s >= numStates {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateNames[s]
}

// ErrInvalidTransition is returned for a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateNew:     {StateReady},
	StateReady:   {StateRunning},
	StateRunning: {StateReady, StateBlocked, StateFinished},
	StateBlocked: {StateReady},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LoopFrame is one active LOOP. Start is the index of the first body
// instruction and Remaining the trips left, including the current one.
type LoopFrame struct {
	Start     int
	Remaining int64
}

// Context is the architectural state saved into a PCB while it is off core.
type Context struct {
	Regs  emu.RegFile
	PC    int
	Loops []LoopFrame
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	out := c
	if c.Loops != nil {
		out.Loops = append([]LoopFrame(nil), c.Loops...)
	}
	return out
}

// Metrics are the per-process accounting values. All times are in cycles.
type Metrics struct {
	ArrivalCycle  uint64
	FirstRunCycle uint64
	FinishCycle   uint64
	Started       bool

	CyclesExecuted       uint64
	InstructionsExecuted uint64
	CyclesBlocked        uint64
	Preemptions          uint64
	Dispatches           uint64

	Turnaround uint64
	Response   uint64
	Waiting    uint64
}

// PCB is a process control block.
//
// Lifecycle fields are guarded by the scheduler that owns the PCB. The
// context and execution counters belong to the core currently running it.
type PCB struct {
	PID   int
	State State

	Context Context

	// Base and Limit bound the process window [Base, Limit).
	Base  uint64
	Limit uint64

	InstructionCount int

	QuantumRemaining int
	OwnsIO           bool
	BlockedFor       int
	BlockedAt        uint64
	Tickets          int

	// LastCore is the core that last ran the process, or -1.
	LastCore int

	Metrics Metrics

	// StateCounts counts entries into each state.
	StateCounts [numStates]int
}

// New creates a PCB in the NEW state.
func New(pid int, base, limit uint64, count int, arrival uint64) *PCB {
	p := &PCB{
		PID:              pid,
		State:            StateNew,
		Base:             base,
		Limit:            limit,
		InstructionCount: count,
		LastCore:         -1,
	}
	p.Metrics.ArrivalCycle = arrival
	p.StateCounts[StateNew]++
	return p
}

// Footprint returns the size of the process window.
func (p *PCB) Footprint() uint64 {
	return p.Limit - p.Base
}

// Contains reports whether addr lies inside the process window.
func (p *PCB) Contains(addr uint64) bool {
	return addr >= p.Base && addr < p.Limit
}

// Done reports whether the program counter ran past the last instruction.
func (p *PCB) Done() bool {
	return p.Context.PC >= p.InstructionCount
}

// Transition moves the process to state to.
func (p *PCB) Transition(to State) error {
	if !CanTransition(p.State, to) {
		return fmt.Errorf("pid %d: %s -> %s: %w", p.PID, p.State, to, ErrInvalidTransition)
	}
	p.State = to
	p.StateCounts[to]++
	return nil
}

// Save stores a copy of ctx as the process context.
func (p *PCB) Save(ctx Context) {
	p.Context = ctx.Clone()
}

// Restore returns a copy of the saved context.
func (p *PCB) Restore() Context {
	return p.Context.Clone()
}

// MarkDispatched records that the process starts running at cycle.
func (p *PCB) MarkDispatched(cycle uint64, core int) {
	if !p.Metrics.Started {
		p.Metrics.Started = true
		p.Metrics.FirstRunCycle = cycle
		p.Metrics.Response = cycle - p.Metrics.ArrivalCycle
	}
	p.Metrics.Dispatches++
	p.LastCore = core
}

// Finalize computes the completion metrics with the process finishing at
// cycle.
func (p *PCB) Finalize(cycle uint64) {
	m := &p.Metrics
	m.FinishCycle = cycle
	m.Turnaround = cycle - m.ArrivalCycle

	busy := m.CyclesExecuted + m.CyclesBlocked
	if m.Turnaround > busy {
		m.Waiting = m.Turnaround - busy
	} else {
		m.Waiting = 0
	}
}
