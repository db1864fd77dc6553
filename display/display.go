// Package display turns simulator events into observable output.
//
// Cores, the cache and the process manager are Akita hookables. They invoke
// hooks at the positions declared here with an Event as the hook detail.
// Hooks only observe; they never change how the simulation proceeds.
package display

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions.
var (
	HookPosStateChange     = &sim.HookPos{Name: "ProcessStateChange"}
	HookPosStage           = &sim.HookPos{Name: "PipelineStage"}
	HookPosCacheHit        = &sim.HookPos{Name: "CacheHit"}
	HookPosCacheMiss       = &sim.HookPos{Name: "CacheMiss"}
	HookPosCacheEvict      = &sim.HookPos{Name: "CacheEvict"}
	HookPosCachePrefetch   = &sim.HookPos{Name: "CachePrefetch"}
	HookPosBoundsViolation = &sim.HookPos{Name: "BoundsViolation"}
	HookPosDivideByZero    = &sim.HookPos{Name: "DivideByZero"}
	HookPosIOContention    = &sim.HookPos{Name: "IOContention"}
	HookPosContextSwitch   = &sim.HookPos{Name: "ContextSwitch"}
)

// NoCore marks events that are not tied to a core.
const NoCore = -1

// Event is the detail carried by every hook invocation.
type Event struct {
	Cycle uint64
	Core  int
	PID   int
	Msg   string
	// Args are slog-style key/value pairs.
	Args []any
}

func levelFor(pos *sim.HookPos) slog.Level {
	switch pos {
	case HookPosBoundsViolation, HookPosDivideByZero:
		return slog.LevelWarn
	case HookPosStateChange, HookPosContextSwitch, HookPosIOContention:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Logger is a hook that writes every event as a structured log record.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger hook. A nil logger uses slog.Default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Func implements sim.Hook.
func (l *Logger) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(Event)
	if !ok {
		return
	}

	level := levelFor(ctx.Pos)
	if !l.logger.Enabled(context.Background(), level) {
		return
	}

	args := make([]any, 0, len(evt.Args)+8)
	args = append(args, "event", ctx.Pos.Name, "cycle", evt.Cycle)
	if evt.Core != NoCore {
		args = append(args, "core", evt.Core)
	}
	if evt.PID != 0 {
		args = append(args, "pid", evt.PID)
	}
	args = append(args, evt.Args...)

	l.logger.Log(context.Background(), level, evt.Msg, args...)
}

// Record is one event captured by a Recorder.
type Record struct {
	Pos   *sim.HookPos
	Event Event
}

// Recorder is a hook that keeps every event in memory. It is safe for
// concurrent use by several cores.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Func implements sim.Hook.
func (r *Recorder) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(Event)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Pos: ctx.Pos, Event: evt})
}

// Records returns a copy of every captured record.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Filter returns the captured events at pos.
func (r *Recorder) Filter(pos *sim.HookPos) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, rec := range r.records {
		if rec.Pos == pos {
			out = append(out, rec.Event)
		}
	}
	return out
}

// Count returns the number of events captured at pos.
func (r *Recorder) Count(pos *sim.HookPos) int {
	return len(r.Filter(pos))
}

// Reset drops every captured record.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
