package display_test

import (
	"bytes"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mcsim/display"
)

func TestDisplay(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Display Suite")
}

type source struct {
	sim.HookableBase
}

var _ = Describe("Hooks", func() {
	var src *source

	BeforeEach(func() {
		src = &source{}
	})

	emit := func(pos *sim.HookPos, evt display.Event) {
		src.InvokeHook(sim.HookCtx{Domain: src, Pos: pos, Detail: evt})
	}

	Describe("Recorder", func() {
		It("should capture events by position", func() {
			rec := display.NewRecorder()
			src.AcceptHook(rec)

			emit(display.HookPosCacheHit, display.Event{Cycle: 1, Core: 0})
			emit(display.HookPosCacheMiss, display.Event{Cycle: 2, Core: 0})
			emit(display.HookPosCacheHit, display.Event{Cycle: 3, Core: 1})

			Expect(rec.Count(display.HookPosCacheHit)).To(Equal(2))
			Expect(rec.Filter(display.HookPosCacheMiss)[0].Cycle).To(Equal(uint64(2)))
			Expect(rec.Records()).To(HaveLen(3))

			rec.Reset()
			Expect(rec.Records()).To(BeEmpty())
		})

		It("should ignore foreign details", func() {
			rec := display.NewRecorder()
			src.AcceptHook(rec)
			src.InvokeHook(sim.HookCtx{Domain: src, Pos: display.HookPosStage, Detail: "text"})
			Expect(rec.Records()).To(BeEmpty())
		})
	})

	Describe("Logger", func() {
		It("should log warnings with event attributes", func() {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			src.AcceptHook(display.NewLogger(logger))

			emit(display.HookPosBoundsViolation, display.Event{
				Cycle: 7, Core: 1, PID: 3, Msg: "address clamped",
				Args: []any{"addr", 120},
			})
			emit(display.HookPosStage, display.Event{Cycle: 7, Core: 1, Msg: "fetch"})

			out := buf.String()
			Expect(out).To(ContainSubstring("address clamped"))
			Expect(out).To(ContainSubstring("event=BoundsViolation"))
			Expect(out).To(ContainSubstring("pid=3"))
			Expect(out).To(ContainSubstring("addr=120"))
			Expect(out).NotTo(ContainSubstring("fetch"))
		})
	})
})
