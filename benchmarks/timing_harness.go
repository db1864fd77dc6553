// Package benchmarks provides the scheduling benchmark harness for mcsim.
//
// A benchmark is a multi-process workload. The harness runs every workload
// under every configured policy on a fresh machine and reports cycle counts,
// cache behavior and the classic scheduling metrics side by side.
package benchmarks

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/mcsim/arch"
	"github.com/sarchlab/mcsim/config"
)

// BenchmarkResult holds the results of one workload under one policy.
type BenchmarkResult struct {
	// RunID groups the results of one RunAll call.
	RunID string `json:"run_id"`

	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Policy is the scheduling policy the workload ran under
	Policy string `json:"policy"`

	// SimulatedCycles is the total cycle count of the run
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// IPC is instructions per cycle across all cores
	IPC float64 `json:"ipc"`

	Processes       int    `json:"processes"`
	Completed       int    `json:"completed"`
	ContextSwitches uint64 `json:"context_switches"`
	Truncated       bool   `json:"truncated"`

	AvgTurnaround float64 `json:"avg_turnaround"`
	AvgResponse   float64 `json:"avg_response"`
	AvgWaiting    float64 `json:"avg_waiting"`

	ICacheHits   uint64  `json:"icache_hits"`
	ICacheMisses uint64  `json:"icache_misses"`
	ICacheRatio  float64 `json:"icache_hit_ratio"`

	// Err is set if the run failed
	Err error `json:"-"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Programs are the program texts, one process each, loaded in order
	Programs []string

	// Setup adjusts the machine configuration before the run, if set
	Setup func(cfg *config.Config)
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Base is the machine configuration every run starts from
	Base *config.Config

	// Policies lists the policies to compare. Empty means all of them.
	Policies []string

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Base:     config.Default(),
		Policies: config.Policies,
		Output:   os.Stdout,
		Verbose:  false,
	}
}

// Harness runs scheduling benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Base == nil {
		config.Base = DefaultConfig().Base
	}
	if len(config.Policies) == 0 {
		config.Policies = DefaultConfig().Policies
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark under every policy and returns results,
// benchmark-major.
func (h *Harness) RunAll() []BenchmarkResult {
	runID := xid.New().String()
	results := make([]BenchmarkResult, 0, len(h.benchmarks)*len(h.config.Policies))

	for _, bench := range h.benchmarks {
		for _, policy := range h.config.Policies {
			result := h.runBenchmark(bench, policy)
			result.RunID = runID
			results = append(results, result)

			if h.config.Verbose {
				_, _ = fmt.Fprintf(h.config.Output, "ran %s/%s in %v\n",
					bench.Name, policy, result.WallTime)
			}
		}
	}

	return results
}

// runBenchmark executes a single benchmark under policy.
func (h *Harness) runBenchmark(bench Benchmark, policy string) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Policy:      policy,
		Processes:   len(bench.Programs),
	}

	cfg := h.config.Base.Clone()
	cfg.Policy = policy
	if bench.Setup != nil {
		bench.Setup(cfg)
	}

	c, err := arch.New(cfg)
	if err != nil {
		result.Err = err
		return result
	}

	for _, prog := range bench.Programs {
		if _, err := c.LoadProgram(prog); err != nil {
			_ = c.Shutdown()
			result.Err = fmt.Errorf("%s: %w", bench.Name, err)
			return result
		}
	}

	// Run simulation and measure time
	start := time.Now()
	m, err := c.Run(context.Background())
	result.WallTime = time.Since(start)
	result.Err = err

	result.SimulatedCycles = m.Cycles
	result.InstructionsRetired = m.Instructions
	result.IPC = m.IPC()
	result.Completed = m.Completed
	result.ContextSwitches = m.ContextSwitches
	result.Truncated = m.Truncated
	result.AvgTurnaround = m.AvgTurnaround
	result.AvgResponse = m.AvgResponse
	result.AvgWaiting = m.AvgWaiting
	result.ICacheHits = m.Cache.Hits
	result.ICacheMisses = m.Cache.Misses
	result.ICacheRatio = m.Cache.HitRatio()

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== mcsim Scheduling Benchmark Results ===")
	if len(results) > 0 {
		_, _ = fmt.Fprintf(h.config.Output, "Run: %s\n", results[0].RunID)
	}
	_, _ = fmt.Fprintln(h.config.Output, "")

	name := ""
	for _, r := range results {
		if r.Name != name {
			name = r.Name
			_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
			_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
			_, _ = fmt.Fprintf(h.config.Output, "  Processes:   %d\n", r.Processes)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  --- %s ---\n", r.Policy)
		if r.Err != nil {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %v\n", r.Err)
			continue
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  IPC:                  %.3f\n", r.IPC)
		_, _ = fmt.Fprintf(h.config.Output, "  Completed:            %d/%d\n", r.Completed, r.Processes)
		_, _ = fmt.Fprintf(h.config.Output, "  Context Switches:     %d\n", r.ContextSwitches)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Turnaround:       %.2f\n", r.AvgTurnaround)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Response:         %.2f\n", r.AvgResponse)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Waiting:          %.2f\n", r.AvgWaiting)
		_, _ = fmt.Fprintf(h.config.Output, "  I-Cache Hit Ratio:    %.1f%% (%d/%d)\n",
			r.ICacheRatio*100, r.ICacheHits, r.ICacheHits+r.ICacheMisses)
		if r.Truncated {
			_, _ = fmt.Fprintln(h.config.Output, "  Stopped at the cycle limit")
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
	}
	_, _ = fmt.Fprintln(h.config.Output, "")
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"run_id,name,policy,cycles,instructions,ipc,completed,context_switches,avg_turnaround,avg_response,avg_waiting,icache_hits,icache_misses,truncated")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%s,%d,%d,%.3f,%d,%d,%.2f,%.2f,%.2f,%d,%d,%t\n",
			r.RunID,
			r.Name,
			r.Policy,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.IPC,
			r.Completed,
			r.ContextSwitches,
			r.AvgTurnaround,
			r.AvgResponse,
			r.AvgWaiting,
			r.ICacheHits,
			r.ICacheMisses,
			r.Truncated,
		)
	}
}
