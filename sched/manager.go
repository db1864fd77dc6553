// Package sched implements the process manager and its scheduling policies.
//
// The Manager owns every PCB in an arena indexed by pid, the ready and
// blocked queues, and the assignment of processes to cores. All of it is
// guarded by one lock. Policies are called with that lock held.
//
// Lock order: the Manager lock is taken before any core, memory or cache
// lock. The I/O resource lock is a leaf.
package sched

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/process"
)

var (
	// ErrTooManyProcesses is returned when creating a process would exceed
	// the configured process limit.
	ErrTooManyProcesses = errors.New("too many processes")

	// ErrNotRunning is returned when a core reports on a process it does not
	// hold.
	ErrNotRunning = errors.New("no process running on core")
)

// Config holds the process manager parameters.
type Config struct {
	MaxProcesses   int
	DefaultTickets int
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		MaxProcesses:   64,
		DefaultTickets: 10,
	}
}

// Snapshot is a consistent view of where every process is.
type Snapshot struct {
	Cycle    uint64
	Ready    []int
	Blocked  []int
	Running  map[int]int // core id -> pid
	Finished []int
}

// Manager is the process manager.
type Manager struct {
	sim.HookableBase

	mu sync.Mutex

	config Config
	policy Policy

	arena   []*process.PCB
	ready   []*process.PCB
	blocked []*process.PCB
	running map[int]*process.PCB

	// lastPID is the pid last loaded onto each core.
	lastPID         map[int]int
	contextSwitches uint64

	cycle uint64

	io ioResource
}

// NewManager creates a process manager using policy.
func NewManager(config Config, policy Policy) *Manager {
	if config.MaxProcesses <= 0 {
		config.MaxProcesses = DefaultConfig().MaxProcesses
	}
	if config.DefaultTickets <= 0 {
		config.DefaultTickets = DefaultConfig().DefaultTickets
	}

	return &Manager{
		config:  config,
		policy:  policy,
		arena:   make([]*process.PCB, 0, config.MaxProcesses),
		ready:   make([]*process.PCB, 0, config.MaxProcesses),
		blocked: make([]*process.PCB, 0, config.MaxProcesses),
		running: make(map[int]*process.PCB),
		lastPID: make(map[int]int),
	}
}

// Policy returns the active scheduling policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// CreateProcess creates a process for the window [base, limit) holding count
// instructions and places it on the ready queue.
func (m *Manager) CreateProcess(base, limit uint64, count int) (*process.PCB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.arena) >= m.config.MaxProcesses {
		return nil, fmt.Errorf("create process: limit %d: %w", m.config.MaxProcesses, ErrTooManyProcesses)
	}
	if limit < base {
		return nil, fmt.Errorf("create process: limit %d below base %d", limit, base)
	}

	p := process.New(len(m.arena)+1, base, limit, count, m.cycle)
	p.Tickets = m.config.DefaultTickets
	m.arena = append(m.arena, p)

	if err := m.transition(p, process.StateReady, display.NoCore); err != nil {
		return nil, err
	}
	m.ready = append(m.ready, p)

	return p, nil
}

// Process returns the PCB with the given pid, or nil.
func (m *Manager) Process(pid int) *process.PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(pid)
}

func (m *Manager) lookup(pid int) *process.PCB {
	if pid < 1 || pid > len(m.arena) {
		return nil
	}
	return m.arena[pid-1]
}

// Processes returns every PCB in pid order.
func (m *Manager) Processes() []*process.PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*process.PCB(nil), m.arena...)
}

// SetTickets sets the lottery tickets of a process.
func (m *Manager) SetTickets(pid, tickets int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.lookup(pid)
	if p == nil {
		return fmt.Errorf("set tickets: unknown pid %d", pid)
	}
	if tickets <= 0 {
		return fmt.Errorf("set tickets: pid %d: tickets must be > 0", pid)
	}
	p.Tickets = tickets
	return nil
}

// Dispatch assigns the next process chosen by the policy to coreID. It
// returns nil if the core is busy or nothing is ready.
func (m *Manager) Dispatch(coreID int) (*process.PCB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running[coreID] != nil || len(m.ready) == 0 {
		return nil, nil
	}

	p := m.policy.SelectNext(m)
	if p == nil {
		return nil, nil
	}
	if err := m.transition(p, process.StateRunning, coreID); err != nil {
		return nil, err
	}
	m.removeReady(p)
	p.QuantumRemaining = m.policy.Quantum()
	p.MarkDispatched(m.cycle, coreID)
	m.running[coreID] = p

	if m.lastPID[coreID] != p.PID {
		m.contextSwitches++
		m.emit(display.HookPosContextSwitch, coreID, p.PID, "context switch",
			"from", m.lastPID[coreID])
	}
	m.lastPID[coreID] = p.PID

	return p, nil
}

// Running returns the process assigned to coreID, or nil.
func (m *Manager) Running(coreID int) *process.PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[coreID]
}

// Preempt returns the process on coreID to the ready queue after its quantum
// expired, saving ctx into it.
func (m *Manager) Preempt(coreID int, ctx process.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.release(coreID, ctx, process.StateReady)
	if err != nil {
		return err
	}
	p.Metrics.Preemptions++
	m.policy.OnQuantumExpired(m, p)

	return nil
}

// Block moves the process on coreID to the blocked queue for cycles cycles,
// saving ctx into it.
func (m *Manager) Block(coreID int, ctx process.Context, cycles int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.release(coreID, ctx, process.StateBlocked)
	if err != nil {
		return err
	}
	if cycles < 1 {
		cycles = 1
	}
	p.BlockedFor = cycles
	p.BlockedAt = m.cycle
	m.blocked = append(m.blocked, p)

	return nil
}

// Complete finishes the process on coreID, saving ctx into it.
func (m *Manager) Complete(coreID int, ctx process.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.release(coreID, ctx, process.StateFinished)
	if err != nil {
		return err
	}
	m.policy.OnProcessComplete(m, p)

	return nil
}

func (m *Manager) release(
	coreID int,
	ctx process.Context,
	to process.State,
) (*process.PCB, error) {
	p := m.running[coreID]
	if p == nil {
		return nil, fmt.Errorf("core %d: %w", coreID, ErrNotRunning)
	}

	p.Save(ctx)
	if err := m.transition(p, to, coreID); err != nil {
		return nil, err
	}
	delete(m.running, coreID)

	return p, nil
}

// Tick ends the current cycle. Blocked processes count down, and those whose
// countdown reaches zero return to the ready queue and give up I/O. A
// process blocked during this cycle starts counting on the next one.
func (m *Manager) Tick() []*process.PCB {
	m.mu.Lock()
	defer m.mu.Unlock()

	var woken []*process.PCB
	still := m.blocked[:0]
	for _, p := range m.blocked {
		if p.BlockedAt == m.cycle {
			still = append(still, p)
			continue
		}

		p.BlockedFor--
		p.Metrics.CyclesBlocked++
		if p.BlockedFor > 0 {
			still = append(still, p)
			continue
		}

		m.ReleaseIO(p)
		if err := m.transition(p, process.StateReady, display.NoCore); err != nil {
			panic(err)
		}
		m.ready = append(m.ready, p)
		woken = append(woken, p)
	}
	clear(m.blocked[len(still):])
	m.blocked = still

	m.cycle++

	return woken
}

// Cycle returns the number of completed cycles.
func (m *Manager) Cycle() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle
}

// ContextSwitches returns how many times a core was loaded with a process
// other than the one it last ran.
func (m *Manager) ContextSwitches() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contextSwitches
}

// AllFinished reports whether every process has finished.
func (m *Manager) AllFinished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.arena {
		if p.State != process.StateFinished {
			return false
		}
	}
	return true
}

// Snapshot returns the current pid of every queue and core.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Cycle:   m.cycle,
		Ready:   pids(m.ready),
		Blocked: pids(m.blocked),
		Running: make(map[int]int, len(m.running)),
	}
	for core, p := range m.running {
		s.Running[core] = p.PID
	}
	for _, p := range m.arena {
		if p.State == process.StateFinished {
			s.Finished = append(s.Finished, p.PID)
		}
	}
	return s
}

func pids(queue []*process.PCB) []int {
	out := make([]int, len(queue))
	for i, p := range queue {
		out[i] = p.PID
	}
	return out
}

// ReadyQueue returns the ready queue in order. It must only be called by
// policies, with the lock held.
func (m *Manager) ReadyQueue() []*process.PCB {
	return m.ready
}

// CurrentCycle returns the cycle in progress. It must only be called by
// policies, with the lock held.
func (m *Manager) CurrentCycle() uint64 {
	return m.cycle
}

// PushReady appends p to the ready queue. It must only be called by
// policies, with the lock held.
func (m *Manager) PushReady(p *process.PCB) {
	m.ready = append(m.ready, p)
}

// PushReadyFront puts p at the head of the ready queue. It must only be
// called by policies, with the lock held.
func (m *Manager) PushReadyFront(p *process.PCB) {
	m.ready = append(m.ready, nil)
	copy(m.ready[1:], m.ready)
	m.ready[0] = p
}

// Finalize computes the completion metrics of a finished process. It must
// only be called by policies, with the lock held.
func (m *Manager) Finalize(p *process.PCB) {
	p.Finalize(m.cycle + 1)
}

func (m *Manager) removeReady(p *process.PCB) {
	for i, q := range m.ready {
		if q == p {
			m.ready = append(m.ready[:i], m.ready[i+1:]...)
			return
		}
	}
}

func (m *Manager) transition(p *process.PCB, to process.State, coreID int) error {
	from := p.State
	if err := p.Transition(to); err != nil {
		return err
	}
	m.emit(display.HookPosStateChange, coreID, p.PID, "state change",
		"from", from.String(), "to", to.String())
	return nil
}

func (m *Manager) emit(pos *sim.HookPos, coreID, pid int, msg string, args ...any) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    pos,
		Detail: display.Event{
			Cycle: m.cycle,
			Core:  coreID,
			PID:   pid,
			Msg:   msg,
			Args:  args,
		},
	})
}
