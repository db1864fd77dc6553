package sched

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mcsim/config"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/timing/cache"
)

// ErrUnknownPolicy is returned by NewPolicy for an unrecognized name.
var ErrUnknownPolicy = errors.New("unknown scheduling policy")

// Policy decides which ready process runs next. Every method is called with
// the Manager lock held.
type Policy interface {
	Name() string

	// Quantum is the number of cycles a dispatched process may run.
	Quantum() int

	// SelectNext returns the ready process to run next, or nil. The Manager
	// removes it from the ready queue.
	SelectNext(m *Manager) *process.PCB

	// OnQuantumExpired re-enqueues a preempted process.
	OnQuantumExpired(m *Manager, p *process.PCB)

	// OnProcessComplete finalizes a finished process.
	OnProcessComplete(m *Manager, p *process.PCB)
}

// CacheProbe is the view of the cache the cache-aware policy needs.
type CacheProbe interface {
	Enabled() bool
	Probe(addr uint64) cache.SlotInfo
}

// InstructionSource returns the instruction text stored at an address.
type InstructionSource interface {
	InstructionAt(addr uint64) (string, bool)
}

// PolicyConfig carries everything any policy may need.
type PolicyConfig struct {
	Quantum int
	Seed    uint64

	LookAhead           int
	SimilarityThreshold float64
	MaxClusters         int

	Cache CacheProbe
	Text  InstructionSource
}

// NewPolicy creates the policy with the given config name.
func NewPolicy(name string, cfg PolicyConfig) (Policy, error) {
	switch name {
	case config.PolicyRoundRobin:
		return NewRoundRobin(cfg.Quantum), nil
	case config.PolicySJF:
		return NewSJF(cfg.Quantum), nil
	case config.PolicyLottery:
		return NewLottery(cfg.Quantum, cfg.Seed), nil
	case config.PolicyCacheAware:
		if cfg.Cache == nil || cfg.Text == nil {
			return nil, fmt.Errorf("%s: cache and instruction source are required", name)
		}
		return NewCacheAware(cfg.Quantum, CacheAwareConfig{
			LookAhead:           cfg.LookAhead,
			SimilarityThreshold: cfg.SimilarityThreshold,
			MaxClusters:         cfg.MaxClusters,
		}, cfg.Cache, cfg.Text), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPolicy)
	}
}

// basePolicy carries the behavior shared by every policy: a fixed quantum,
// tail re-enqueue on preemption and plain metric finalization.
type basePolicy struct {
	quantum int
}

func (b basePolicy) Quantum() int {
	return b.quantum
}

func (b basePolicy) OnQuantumExpired(m *Manager, p *process.PCB) {
	m.PushReady(p)
}

func (b basePolicy) OnProcessComplete(m *Manager, p *process.PCB) {
	m.Finalize(p)
}
