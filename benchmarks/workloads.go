package benchmarks

import (
	"fmt"
	"strings"

	"github.com/sarchlab/mcsim/config"
)

// GetWorkloads returns the standard set of scheduling workloads. ioAddr is
// the machine's I/O address, used by the workloads that perform I/O.
func GetWorkloads(ioAddr uint64) []Benchmark {
	return []Benchmark{
		cpuBound(),
		mixedLengths(),
		ioContention(ioAddr),
		sharedCode(),
		branchHeavy(),
		singleCore(),
	}
}

// GetCoreWorkloads returns a minimal set of 3 workloads for quick validation.
func GetCoreWorkloads(ioAddr uint64) []Benchmark {
	return []Benchmark{
		mixedLengths(),
		ioContention(ioAddr),
		sharedCode(),
	}
}

func straightLine(n int, lines ...string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(lines[i%len(lines)])
		b.WriteByte('\n')
	}
	return b.String()
}

// 1. CPU Bound - equal arithmetic processes, measures plain time slicing
func cpuBound() Benchmark {
	prog := straightLine(24, "ADD R1, #1", "MUL R2, R1, #3", "SUB R3, R2, R1")
	return Benchmark{
		Name:        "cpu_bound",
		Description: "4 equal 24-instruction arithmetic processes",
		Programs:    []string{prog, prog, prog, prog},
	}
}

// 2. Mixed Lengths - short jobs queued behind long ones
func mixedLengths() Benchmark {
	return Benchmark{
		Name:        "mixed_lengths",
		Description: "long and short processes interleaved - favors shortest job first",
		Programs: []string{
			straightLine(40, "ADD R1, #1", "MUL R1, #2"),
			straightLine(4, "ADD R2, #1"),
			straightLine(30, "SUB R3, #1", "ADD R4, R3, #7"),
			straightLine(6, "ADD R2, #2"),
			straightLine(2, "ADD R5, #5"),
		},
	}
}

// 3. I/O Contention - every process competes for the single I/O device
func ioContention(ioAddr uint64) Benchmark {
	prog := func(v int) string {
		return fmt.Sprintf("ADD R1, #%d\nSTORE R1, %d\nMUL R1, #2\nSTORE R1, %d\nADD R2, R1, #1\n",
			v, ioAddr, ioAddr)
	}
	return Benchmark{
		Name:        "io_contention",
		Description: "4 processes storing to the I/O address twice each",
		Programs:    []string{prog(1), prog(2), prog(3), prog(4)},
	}
}

// 4. Shared Code - identical loop bodies, rewarding cache-aware grouping
func sharedCode() Benchmark {
	loop := "LOOP 6\nADD R1, #1\nMUL R2, R1, #2\nSUB R3, R2, #1\nL_END\n"
	other := "LOOP 4\nDIV R4, #1\nADD R5, #3\nL_END\n"
	return Benchmark{
		Name:        "shared_code",
		Description: "two families of identical loops",
		Programs:    []string{loop, other, loop, other, loop},
	}
}

// 5. Branch Heavy - nested loops and conditionals
func branchHeavy() Benchmark {
	prog := strings.Join([]string{
		"ADD R6, #3",
		"LOOP R6",
		"ADD R1, #1",
		"IF R1 > 1",
		"ADD R2, #10",
		"I_END",
		"ELSE",
		"ADD R2, #1",
		"ELS_END",
		"LOOP 2",
		"ADD R3, #1",
		"L_END",
		"L_END",
	}, "\n")
	return Benchmark{
		Name:        "branch_heavy",
		Description: "nested LOOP/IF control flow in 3 processes",
		Programs:    []string{prog, prog, prog},
	}
}

// 6. Single Core - queueing with no parallelism and a short quantum
func singleCore() Benchmark {
	return Benchmark{
		Name:        "single_core",
		Description: "3 processes on one core with quantum 2",
		Programs: []string{
			straightLine(10, "ADD R1, #1"),
			straightLine(5, "ADD R1, #1"),
			straightLine(3, "ADD R1, #1"),
		},
		Setup: func(cfg *config.Config) {
			cfg.NumCores = 1
			cfg.Quantum = 2
		},
	}
}
