// Package arch ties memory, cache, scheduler and cores into one machine and
// advances it cycle by cycle.
//
// Every core runs in its own worker goroutine for the whole simulation. The
// controller paces them in lockstep: each cycle it fills idle cores, hands
// every worker a cycle token, and waits for all of them to report before the
// scheduler ticks.
package arch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/mcsim/config"
	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/loader"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/sched"
	"github.com/sarchlab/mcsim/timing/cache"
	"github.com/sarchlab/mcsim/timing/core"
	"github.com/sarchlab/mcsim/timing/pipeline"
)

var (
	// ErrStopped is returned when the controller is used after Shutdown.
	ErrStopped = errors.New("controller stopped")
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger logs every simulation event to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
		c.hooks = append(c.hooks, display.NewLogger(logger))
	}
}

// WithHook attaches hook to every core, the cache and the scheduler.
func WithHook(hook sim.Hook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, hook)
	}
}

// state is the cross-cutting counters, guarded by the controller's state
// lock.
type state struct {
	cycle           uint64
	instructions    uint64
	completed       int
	contextSwitches uint64
	truncated       bool
}

// Controller is the architecture controller.
type Controller struct {
	config *config.Config
	logger *slog.Logger
	hooks  []sim.Hook

	memory  *emu.Memory
	icache  *cache.Cache
	manager *sched.Manager
	cores   []*core.Core

	ticks   []chan uint64
	reports chan core.Report
	group   *errgroup.Group
	gctx    context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	err     error

	stateMu sync.Mutex
	state   state
}

// New builds a machine from cfg.
func New(cfg *config.Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Controller{
		config: cfg.Clone(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.memory = emu.NewMemory(cfg.MemorySize, cfg.IOAddress)

	cacheConfig := cache.DefaultConfig()
	cacheConfig.Size = cfg.CacheSize
	cacheConfig.Enabled = cfg.CacheEnabled
	c.icache = cache.New(cacheConfig, cache.NewMemoryBacking(c.memory))

	policy, err := sched.NewPolicy(cfg.Policy, sched.PolicyConfig{
		Quantum:             cfg.Quantum,
		Seed:                cfg.Seed,
		LookAhead:           cfg.LookAhead,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxClusters:         cfg.MaxClusters,
		Cache:               c.icache,
		Text:                c.memory,
	})
	if err != nil {
		return nil, err
	}

	c.manager = sched.NewManager(sched.Config{
		MaxProcesses:   cfg.MaxProcesses,
		DefaultTickets: cfg.DefaultTickets,
	}, policy)

	for i := 0; i < cfg.NumCores; i++ {
		c.cores = append(c.cores, core.NewCore(i, c.memory, c.manager,
			core.Config{IOBlockCycles: cfg.IOBlockCycles},
			pipeline.WithICache(c.icache)))
	}

	for _, hook := range c.hooks {
		c.icache.AcceptHook(hook)
		c.manager.AcceptHook(hook)
		for _, cr := range c.cores {
			cr.AcceptHook(hook)
		}
	}

	return c, nil
}

// Config returns a copy of the configuration.
func (c *Controller) Config() *config.Config {
	return c.config.Clone()
}

// Memory returns the shared memory.
func (c *Controller) Memory() *emu.Memory {
	return c.memory
}

// Cache returns the shared instruction cache.
func (c *Controller) Cache() *cache.Cache {
	return c.icache
}

// Manager returns the process manager.
func (c *Controller) Manager() *sched.Manager {
	return c.manager
}

// Cores returns the cores.
func (c *Controller) Cores() []*core.Core {
	return c.cores
}

// CreateProcess creates a process for an already placed program.
func (c *Controller) CreateProcess(base, limit uint64, count int) (*process.PCB, error) {
	return c.manager.CreateProcess(base, limit, count)
}

// LoadProgram places program text in memory and creates its process.
func (c *Controller) LoadProgram(text string) (*process.PCB, error) {
	return loader.LoadProgram(c.memory, c.manager, text, c.config.DataWords)
}

// LoadFile loads the program at path.
func (c *Controller) LoadFile(path string) (*process.PCB, error) {
	return loader.LoadFile(c.memory, c.manager, path, c.config.DataWords)
}

// Start launches one worker per core.
func (c *Controller) Start(ctx context.Context) error {
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.group, c.gctx = errgroup.WithContext(ctx)
	c.reports = make(chan core.Report)
	c.ticks = make([]chan uint64, len(c.cores))

	for i, cr := range c.cores {
		ticks := make(chan uint64)
		c.ticks[i] = ticks
		c.group.Go(func() error {
			return cr.Run(c.gctx, ticks, c.reports)
		})
	}
	c.started = true

	c.logger.Info("simulation started",
		"cores", len(c.cores),
		"policy", c.manager.Policy().Name(),
		"quantum", c.config.Quantum,
		"cache", c.config.CacheEnabled)

	return nil
}

// RunCycle advances the machine by exactly one cycle.
func (c *Controller) RunCycle() error {
	if c.err != nil {
		return c.err
	}
	if c.stopped {
		return ErrStopped
	}
	if !c.started {
		if err := c.Start(context.Background()); err != nil {
			return err
		}
	}

	cycle := c.manager.Cycle()

	if err := c.fillIdleCores(); err != nil {
		return c.fail(err)
	}

	for _, ticks := range c.ticks {
		select {
		case ticks <- cycle:
		case <-c.gctx.Done():
			return c.fail(context.Cause(c.gctx))
		}
	}

	completed := 0
	for range c.cores {
		select {
		case r := <-c.reports:
			if r.Err != nil {
				return c.fail(r.Err)
			}
			if r.Outcome == core.OutcomeFinished {
				completed++
			}
		case <-c.gctx.Done():
			return c.fail(context.Cause(c.gctx))
		}
	}

	c.manager.Tick()
	c.record(completed)

	return nil
}

func (c *Controller) fillIdleCores() error {
	for _, cr := range c.cores {
		if !cr.Available() {
			continue
		}

		p, err := c.manager.Dispatch(cr.ID())
		if err != nil {
			return err
		}
		if p == nil {
			continue
		}
		if err := cr.Load(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) record(completed int) {
	var instructions uint64
	for _, cr := range c.cores {
		instructions += cr.Stats().Instructions
	}
	cycle := c.manager.Cycle()
	switches := c.manager.ContextSwitches()

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.state.cycle = cycle
	c.state.instructions = instructions
	c.state.completed += completed
	c.state.contextSwitches = switches
}

// fail stops every worker and keeps err as the run's result.
func (c *Controller) fail(err error) error {
	c.err = err
	c.stop()
	return err
}

// AllFinished reports whether every process has finished.
func (c *Controller) AllFinished() bool {
	return c.manager.AllFinished()
}

// Run runs cycles until every process finishes, ctx is done, or MaxCycles
// is reached, then shuts down.
func (c *Controller) Run(ctx context.Context) (Metrics, error) {
	if err := c.Start(ctx); err != nil {
		return c.Metrics(), err
	}

	for !c.AllFinished() {
		if err := ctx.Err(); err != nil {
			_ = c.Shutdown()
			return c.Metrics(), err
		}
		if c.manager.Cycle() >= c.config.MaxCycles {
			c.stateMu.Lock()
			c.state.truncated = true
			c.stateMu.Unlock()
			c.logger.Warn("cycle limit reached", "max_cycles", c.config.MaxCycles)
			break
		}
		if err := c.RunCycle(); err != nil {
			return c.Metrics(), err
		}
	}

	err := c.Shutdown()
	m := c.Metrics()
	if err == nil {
		c.logger.Info("simulation finished",
			"cycles", m.Cycles,
			"instructions", m.Instructions,
			"completed", m.Completed)
	}
	return m, err
}

// Shutdown stops every worker and returns the first fatal error, if any.
// It is safe to call more than once.
func (c *Controller) Shutdown() error {
	c.stop()
	return c.err
}

func (c *Controller) stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	if !c.started {
		return
	}

	for _, ticks := range c.ticks {
		close(ticks)
	}
	c.cancel()
	if err := c.group.Wait(); err != nil && c.err == nil {
		c.err = err
	}
}
