// Package core provides the simulated CPU core. A core holds at most one
// process and runs one pipeline pass of it per cycle.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/timing/pipeline"
)

// ErrBusy is returned when loading a process onto a core that already has
// one.
var ErrBusy = errors.New("core busy")

// Outcome is what a cycle did to the process on the core.
type Outcome int

// Cycle outcomes.
const (
	OutcomeIdle Outcome = iota
	OutcomeContinue
	OutcomePreempted
	OutcomeBlocked
	OutcomeFinished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeContinue:
		return "continue"
	case OutcomePreempted:
		return "preempted"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeFinished:
		return "finished"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Scheduler receives the processes a core gives up. The core never holds
// its own lock while calling it.
type Scheduler interface {
	TryAcquireIO(p *process.PCB) bool
	Preempt(coreID int, ctx process.Context) error
	Block(coreID int, ctx process.Context, cycles int) error
	Complete(coreID int, ctx process.Context) error
}

// Config holds core parameters.
type Config struct {
	// IOBlockCycles is how long a process blocks after an I/O store.
	IOBlockCycles int
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// BusyCycles is the number of cycles a process ran.
	BusyCycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64

	CacheHits   uint64
	CacheMisses uint64

	BoundsViolations uint64
	DivideByZero     uint64
	IOBlocks         uint64
	Preemptions      uint64
	Completions      uint64
}

// Utilization returns the fraction of cycles the core was busy.
func (s Stats) Utilization() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.BusyCycles) / float64(s.Cycles)
}

// Report is the result of one cycle of one core.
type Report struct {
	Core    int
	Cycle   uint64
	PID     int
	Outcome Outcome
	Err     error
}

// Core represents a CPU core.
type Core struct {
	sim.HookableBase

	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	id     int
	sched  Scheduler
	config Config

	mu      sync.Mutex
	current *process.PCB
	ctx     process.Context
	quantum int
	cycle   uint64
	stats   Stats
}

// NewCore creates a core that runs over memory and hands processes back to
// sched.
func NewCore(
	id int,
	memory *emu.Memory,
	sched Scheduler,
	config Config,
	opts ...pipeline.PipelineOption,
) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(memory, opts...),
		id:       id,
		sched:    sched,
		config:   config,
	}
}

// ID returns the core id.
func (c *Core) ID() int {
	return c.id
}

// Available reports whether the core has no process.
func (c *Core) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == nil
}

// Current returns the process on the core, or nil.
func (c *Core) Current() *process.PCB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Context returns a copy of the live architectural state.
func (c *Core) Context() process.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx.Clone()
}

// QuantumRemaining returns the cycles left before preemption.
func (c *Core) QuantumRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quantum
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Load puts p on the core, restoring its saved context.
func (c *Core) Load(p *process.PCB) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return fmt.Errorf("core %d: load pid %d: running pid %d: %w",
			c.id, p.PID, c.current.PID, ErrBusy)
	}

	c.current = p
	c.ctx = p.Restore()
	c.quantum = p.QuantumRemaining
	return nil
}

// Step runs one cycle. A process leaving the core is handed to the
// scheduler after the core lock is released.
func (c *Core) Step(cycle uint64) (Report, error) {
	outcome, p, ctx, err := c.pass(cycle)

	report := Report{Core: c.id, Cycle: cycle, Outcome: outcome}
	if p != nil {
		report.PID = p.PID
	}
	if err != nil {
		report.Err = err
		return report, err
	}

	switch outcome {
	case OutcomePreempted:
		err = c.sched.Preempt(c.id, ctx)
	case OutcomeBlocked:
		err = c.sched.Block(c.id, ctx, c.config.IOBlockCycles)
	case OutcomeFinished:
		err = c.sched.Complete(c.id, ctx)
	}
	if err != nil {
		err = fmt.Errorf("core %d: pid %d: %w", c.id, p.PID, err)
		report.Err = err
	}

	return report, err
}

func (c *Core) pass(cycle uint64) (Outcome, *process.PCB, process.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cycle = cycle
	c.stats.Cycles++

	p := c.current
	if p == nil {
		return OutcomeIdle, nil, process.Context{}, nil
	}
	if p.Done() {
		c.stats.Completions++
		return OutcomeFinished, p, c.detach(), nil
	}

	res, err := c.Pipeline.Pass(&c.ctx, pipeline.WindowOf(p), ioPort{sched: c.sched, p: p})
	if err != nil {
		return OutcomeContinue, p, process.Context{}, fmt.Errorf("core %d: pid %d: %w", c.id, p.PID, err)
	}
	if !res.Fetched {
		c.stats.Completions++
		return OutcomeFinished, p, c.detach(), nil
	}

	c.account(p, &res)

	switch {
	case res.IOWrite || res.IOBusy:
		c.stats.IOBlocks++
		return OutcomeBlocked, p, c.detach(), nil
	case c.ctx.PC >= p.InstructionCount:
		c.stats.Completions++
		return OutcomeFinished, p, c.detach(), nil
	}

	c.quantum--
	p.QuantumRemaining = c.quantum
	if c.quantum <= 0 {
		c.stats.Preemptions++
		return OutcomePreempted, p, c.detach(), nil
	}

	return OutcomeContinue, p, process.Context{}, nil
}

func (c *Core) account(p *process.PCB, res *pipeline.PassResult) {
	c.stats.BusyCycles++
	p.Metrics.CyclesExecuted++
	if res.Retired {
		c.stats.Instructions++
		p.Metrics.InstructionsExecuted++
	}

	if c.Pipeline.UseICache() {
		if res.CacheHit {
			c.stats.CacheHits++
		} else {
			c.stats.CacheMisses++
		}
	}

	if res.Clamped {
		c.stats.BoundsViolations++
	}
	if res.DivideByZero {
		c.stats.DivideByZero++
	}

	if c.NumHooks() == 0 {
		return
	}

	for s := pipeline.StageFetch; s < pipeline.NumStages; s++ {
		c.emit(display.HookPosStage, p.PID, s.String(), "pc", res.PC, "content", res.Stages[s])
	}
	if res.Clamped {
		c.emit(display.HookPosBoundsViolation, p.PID, "address outside process window",
			"addr", res.Requested, "base", p.Base, "limit", p.Limit)
	}
	if res.DivideByZero {
		c.emit(display.HookPosDivideByZero, p.PID, "division by zero", "pc", res.PC)
	}
}

// detach removes the current process and returns its final context. It must
// be called with the lock held.
func (c *Core) detach() process.Context {
	ctx := c.ctx
	c.current = nil
	c.ctx = process.Context{}
	c.quantum = 0
	return ctx
}

func (c *Core) emit(pos *sim.HookPos, pid int, msg string, args ...any) {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Detail: display.Event{
			Cycle: c.cycle,
			Core:  c.id,
			PID:   pid,
			Msg:   msg,
			Args:  args,
		},
	})
}

// Run is the core worker. It runs one Step per cycle received from ticks and
// sends the report to reports. It returns when ticks is closed, ctx is
// done, or a step fails.
func (c *Core) Run(ctx context.Context, ticks <-chan uint64, reports chan<- Report) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cycle, ok := <-ticks:
			if !ok {
				return nil
			}

			report, err := c.Step(cycle)
			select {
			case reports <- report:
			case <-ctx.Done():
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// Reset drops the current process and clears the statistics.
func (c *Core) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detach()
	c.stats = Stats{}
	c.cycle = 0
	c.Pipeline.Reset()
}

type ioPort struct {
	sched Scheduler
	p     *process.PCB
}

func (i ioPort) AcquireIO() bool {
	return i.sched.TryAcquireIO(i.p)
}
