package arch

import (
	"github.com/sarchlab/mcsim/timing/cache"
	"github.com/sarchlab/mcsim/timing/core"
)

// ProcessMetrics is the final accounting of one process.
type ProcessMetrics struct {
	PID          int
	State        string
	Instructions uint64
	Executed     uint64
	Blocked      uint64
	Preemptions  uint64
	Dispatches   uint64
	Arrival      uint64
	Finish       uint64
	Turnaround   uint64
	Response     uint64
	Waiting      uint64
}

// Metrics summarizes a simulation.
type Metrics struct {
	Policy          string
	Cycles          uint64
	Instructions    uint64
	Completed       int
	ContextSwitches uint64
	// Truncated is set when the run stopped at MaxCycles with processes
	// still unfinished.
	Truncated bool

	Cache     cache.Statistics
	Cores     []core.Stats
	Processes []ProcessMetrics

	AvgTurnaround float64
	AvgResponse   float64
	AvgWaiting    float64
}

// Throughput returns completed processes per cycle.
func (m Metrics) Throughput() float64 {
	if m.Cycles == 0 {
		return 0
	}
	return float64(m.Completed) / float64(m.Cycles)
}

// IPC returns instructions per cycle across all cores.
func (m Metrics) IPC() float64 {
	if m.Cycles == 0 {
		return 0
	}
	return float64(m.Instructions) / float64(m.Cycles)
}

// Metrics returns the current metrics. It is safe to call between cycles and
// after Shutdown.
func (c *Controller) Metrics() Metrics {
	c.stateMu.Lock()
	m := Metrics{
		Policy:          c.manager.Policy().Name(),
		Cycles:          c.state.cycle,
		Instructions:    c.state.instructions,
		Completed:       c.state.completed,
		ContextSwitches: c.state.contextSwitches,
		Truncated:       c.state.truncated,
	}
	c.stateMu.Unlock()

	m.Cache = c.icache.Stats()
	for _, cr := range c.cores {
		m.Cores = append(m.Cores, cr.Stats())
	}

	var finished int
	for _, p := range c.manager.Processes() {
		pm := p.Metrics
		m.Processes = append(m.Processes, ProcessMetrics{
			PID:          p.PID,
			State:        p.State.String(),
			Instructions: uint64(p.InstructionCount),
			Executed:     pm.InstructionsExecuted,
			Blocked:      pm.CyclesBlocked,
			Preemptions:  pm.Preemptions,
			Dispatches:   pm.Dispatches,
			Arrival:      pm.ArrivalCycle,
			Finish:       pm.FinishCycle,
			Turnaround:   pm.Turnaround,
			Response:     pm.Response,
			Waiting:      pm.Waiting,
		})

		if pm.FinishCycle == 0 {
			continue
		}
		finished++
		m.AvgTurnaround += float64(pm.Turnaround)
		m.AvgResponse += float64(pm.Response)
		m.AvgWaiting += float64(pm.Waiting)
	}

	if finished > 0 {
		m.AvgTurnaround /= float64(finished)
		m.AvgResponse /= float64(finished)
		m.AvgWaiting /= float64(finished)
	}

	return m
}
