package arch

import (
	"fmt"
	"io"
)

// PrintReport writes the final simulation report in a human-readable format.
func PrintReport(w io.Writer, m Metrics) {
	_, _ = fmt.Fprintln(w, "=== mcsim Simulation Report ===")
	_, _ = fmt.Fprintf(w, "Policy:           %s\n", m.Policy)
	_, _ = fmt.Fprintf(w, "Cycles:           %d\n", m.Cycles)
	_, _ = fmt.Fprintf(w, "Instructions:     %d\n", m.Instructions)
	_, _ = fmt.Fprintf(w, "IPC:              %.3f\n", m.IPC())
	_, _ = fmt.Fprintf(w, "Completed:        %d/%d\n", m.Completed, len(m.Processes))
	_, _ = fmt.Fprintf(w, "Context Switches: %d\n", m.ContextSwitches)
	if m.Truncated {
		_, _ = fmt.Fprintln(w, "Run stopped at the cycle limit")
	}

	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "--- Processes ---")
	_, _ = fmt.Fprintf(w, "%5s %-9s %6s %8s %8s %7s %10s %8s %7s\n",
		"PID", "STATE", "INSTS", "EXECUTED", "PREEMPTS", "BLOCKED",
		"TURNAROUND", "RESPONSE", "WAITING")
	for _, p := range m.Processes {
		_, _ = fmt.Fprintf(w, "%5d %-9s %6d %8d %8d %7d %10d %8d %7d\n",
			p.PID, p.State, p.Instructions, p.Executed, p.Preemptions, p.Blocked,
			p.Turnaround, p.Response, p.Waiting)
	}
	_, _ = fmt.Fprintf(w, "Average Turnaround: %.2f\n", m.AvgTurnaround)
	_, _ = fmt.Fprintf(w, "Average Response:   %.2f\n", m.AvgResponse)
	_, _ = fmt.Fprintf(w, "Average Waiting:    %.2f\n", m.AvgWaiting)

	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "--- Cores ---")
	for i, s := range m.Cores {
		_, _ = fmt.Fprintf(w, "Core %d: busy %d/%d (%.1f%%), %d instructions, %d preemptions, %d I/O blocks\n",
			i, s.BusyCycles, s.Cycles, s.Utilization()*100, s.Instructions,
			s.Preemptions, s.IOBlocks)
		if s.BoundsViolations > 0 || s.DivideByZero > 0 {
			_, _ = fmt.Fprintf(w, "        %d bounds violations, %d divisions by zero\n",
				s.BoundsViolations, s.DivideByZero)
		}
	}

	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "--- I-Cache ---")
	_, _ = fmt.Fprintf(w, "Lookups:   %d\n", m.Cache.Lookups)
	_, _ = fmt.Fprintf(w, "Hits:      %d\n", m.Cache.Hits)
	_, _ = fmt.Fprintf(w, "Misses:    %d\n", m.Cache.Misses)
	_, _ = fmt.Fprintf(w, "Hit Ratio: %.1f%%\n", m.Cache.HitRatio()*100)
	_, _ = fmt.Fprintf(w, "Evictions: %d\n", m.Cache.Evictions)
	if m.Cache.Prefetches > 0 {
		_, _ = fmt.Fprintf(w, "Prefetches: %d (%d hits)\n", m.Cache.Prefetches, m.Cache.PrefetchHits)
	}
}
