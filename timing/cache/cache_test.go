package cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/timing/cache"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

var _ = Describe("Cache", func() {
	var (
		c      *cache.Cache
		memory *emu.Memory
	)

	BeforeEach(func() {
		memory = emu.NewMemory(emu.DefaultMemorySize, emu.DefaultMemorySize-1)
		c = cache.New(cache.DefaultConfig(), cache.NewMemoryBacking(memory))
	})

	Describe("Lookup and Update", func() {
		It("should miss on a cold cache", func() {
			Expect(c.Lookup(10, "ADD R1 #1")).To(BeFalse())

			stats := c.Stats()
			Expect(stats.Lookups).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(BeZero())
		})

		It("should hit after an update", func() {
			c.Update(10, "ADD R1 #1")
			Expect(c.Lookup(10, "ADD R1 #1")).To(BeTrue())

			entry := c.Entry(10)
			Expect(entry.Valid).To(BeTrue())
			Expect(entry.Tag).To(Equal(uint64(10)))
			Expect(entry.Hits).To(Equal(uint64(1)))
			Expect(entry.Data).To(Equal("ADD R1 #1"))
		})

		It("should be idempotent for repeated lookups", func() {
			c.Update(3, "SUB R2 #1")
			for i := 0; i < 5; i++ {
				Expect(c.Lookup(3, "SUB R2 #1")).To(BeTrue())
			}

			Expect(c.Entry(3).Hits).To(Equal(uint64(5)))
			Expect(c.Stats().Evictions).To(BeZero())
		})

		It("should not install on lookup", func() {
			c.Lookup(7, "ADD R1 #1")
			Expect(c.Lookup(7, "ADD R1 #1")).To(BeFalse())
			Expect(c.Entry(7).Valid).To(BeFalse())
		})

		It("should evict addresses that share a slot", func() {
			c.Update(5, "ADD R1 #1")
			c.Update(5+64, "MUL R1 #2")

			Expect(c.Lookup(5, "ADD R1 #1")).To(BeFalse())
			Expect(c.Lookup(5+64, "MUL R1 #2")).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Evictions).To(Equal(uint64(1)))
			Expect(c.Entry(5).Age).To(BeZero())
		})

		It("should age other valid slots on update", func() {
			c.Update(0, "ADD R1 #1")
			c.Update(1, "ADD R1 #1")
			c.Update(2, "ADD R1 #1")

			Expect(c.Entry(0).Age).To(Equal(uint64(2)))
			Expect(c.Entry(1).Age).To(Equal(uint64(1)))
			Expect(c.Entry(2).Age).To(BeZero())
			Expect(c.Entry(3).Age).To(BeZero())
		})

		It("should keep the instruction history ring bounded", func() {
			c.Update(4, "LOAD R1 4")
			for i := 0; i < 20; i++ {
				c.Lookup(4, "LOAD R1 4")
			}
			Expect(c.Entry(4).History).To(HaveLen(8))
		})
	})

	Describe("FindLRU", func() {
		It("should return the first empty slot", func() {
			c.Update(0, "ADD R1 #1")
			c.Update(1, "ADD R1 #1")
			Expect(c.FindLRU()).To(Equal(2))
		})

		It("should return the least recently used slot when full", func() {
			for a := uint64(0); a < 64; a++ {
				c.Update(a, "ADD R1 #1")
			}
			Expect(c.FindLRU()).To(Equal(0))

			c.Lookup(0, "ADD R1 #1")
			Expect(c.FindLRU()).To(Equal(1))

			c.Update(65, "SUB R1 #1")
			Expect(c.Lookup(1, "ADD R1 #1")).To(BeFalse())
			Expect(c.FindLRU()).To(Equal(2))
		})
	})

	Describe("Efficiency", func() {
		It("should be zero for an empty slot", func() {
			Expect(c.Efficiency(9)).To(BeZero())
		})

		It("should weigh hit ratio, history and age", func() {
			c.Update(9, "ADD R1 #1")
			c.Lookup(9, "ADD R1 #1")

			// hits 1, misses 0, history 2 of 8, age 0
			Expect(c.Efficiency(9)).To(BeNumerically("~", 100*(0.5+0.3*2.0/8+0.2), 1e-9))
		})
	})

	Describe("Prefetching", func() {
		BeforeEach(func() {
			Expect(memory.WriteProgram(0, []string{
				"LOAD R1 40",
				"ADD R1 #1",
				"LOOP 3",
				"ADD R2 #1",
				"MUL R2 #2",
				"SUB R2 #1",
				"L_END",
				"STORE R2 41",
			})).To(Succeed())
		})

		It("should prefetch the next block on a LOAD miss", func() {
			c.Lookup(0, "LOAD R1 40")

			Expect(c.Lookup(1, "ADD R1 #1")).To(BeTrue())
			Expect(c.Entry(1).Prefetched).To(BeTrue())
			Expect(c.Stats().PrefetchHits).To(Equal(uint64(1)))
		})

		It("should prefetch a loop body on a LOOP miss", func() {
			c.Lookup(2, "LOOP 3")

			for a := uint64(3); a <= 5; a++ {
				Expect(c.Entry(int(a)).Valid).To(BeTrue())
			}
			Expect(c.Entry(6).Valid).To(BeFalse())
			Expect(c.Stats().Prefetches).To(Equal(uint64(3)))
		})

		It("should prefetch the minimum for an unterminated loop", func() {
			Expect(memory.WriteProgram(200, []string{
				"LOOP 2",
				"ADD R1 #1",
				"ADD R1 #2",
				"ADD R1 #3",
				"ADD R1 #4",
			})).To(Succeed())

			c.Lookup(200, "LOOP 2")

			Expect(c.Stats().Prefetches).To(Equal(uint64(2)))
			Expect(c.Entry(c.SlotOf(201)).Valid).To(BeTrue())
			Expect(c.Entry(c.SlotOf(202)).Valid).To(BeTrue())
			Expect(c.Entry(c.SlotOf(203)).Valid).To(BeFalse())
		})

		It("should forget prefetch state on invalidate", func() {
			c.Lookup(0, "LOAD R1 40")
			Expect(c.Lookup(1, "ADD R1 #1")).To(BeTrue())

			c.Invalidate(1)

			entry := c.Entry(1)
			Expect(entry.Valid).To(BeFalse())
			Expect(entry.Prefetched).To(BeFalse())
			Expect(entry.PrefetchHits).To(BeZero())
			Expect(entry.Hits).To(BeZero())
			Expect(entry.History).To(BeEmpty())
			Expect(c.Lookup(1, "ADD R1 #1")).To(BeFalse())
		})

		It("should not prefetch for other instructions", func() {
			c.Lookup(1, "ADD R1 #1")
			Expect(c.Stats().Prefetches).To(BeZero())
		})

		Context("when the cache is full", func() {
			BeforeEach(func() {
				Expect(memory.WriteProgram(164, []string{"LOAD R1 40", "ADD R1 #1"})).To(Succeed())
				for a := uint64(0); a < 64; a++ {
					c.Update(a+100, "ADD R1 #1")
				}
			})

			It("should not displace a referenced block that is not LRU", func() {
				c.Lookup(101, "ADD R1 #1")

				c.Lookup(164, "LOAD R1 40")
				Expect(c.Stats().Prefetches).To(BeZero())
				Expect(c.Lookup(101, "ADD R1 #1")).To(BeTrue())
			})

			It("should displace the LRU block", func() {
				c.Lookup(100, "ADD R1 #1")

				c.Lookup(164, "LOAD R1 40")
				Expect(c.Stats().Prefetches).To(Equal(uint64(1)))
				Expect(c.Lookup(101, "ADD R1 #1")).To(BeFalse())
				Expect(c.Lookup(165, "ADD R1 #1")).To(BeTrue())
			})
		})
	})

	Describe("Disabled", func() {
		It("should miss every lookup and reset state", func() {
			c.Update(1, "ADD R1 #1")
			c.SetEnabled(false)

			Expect(c.Enabled()).To(BeFalse())
			Expect(c.Lookup(1, "ADD R1 #1")).To(BeFalse())
			Expect(c.Entry(1).Valid).To(BeFalse())
			Expect(c.Stats()).To(Equal(cache.Statistics{}))

			c.Update(1, "ADD R1 #1")
			Expect(c.Entry(1).Valid).To(BeFalse())
		})

		It("should start fresh when re-enabled", func() {
			c.SetEnabled(false)
			c.SetEnabled(true)
			c.Update(1, "ADD R1 #1")
			Expect(c.Lookup(1, "ADD R1 #1")).To(BeTrue())
		})
	})

	Describe("Probe", func() {
		It("should describe the slot without counting an access", func() {
			c.Update(70, "ADD R1 #1")
			before := c.Clock()

			info := c.Probe(6)
			Expect(info.Slot).To(Equal(6))
			Expect(info.Valid).To(BeTrue())
			Expect(info.Resident).To(BeFalse())
			Expect(info.Tag).To(Equal(uint64(70)))
			Expect(c.Probe(70).Resident).To(BeTrue())
			Expect(c.Probe(70).Recency).To(Equal(1.0))
			Expect(c.Clock()).To(Equal(before))
		})
	})

	Describe("Hooks", func() {
		It("should report hits, misses and evictions", func() {
			rec := display.NewRecorder()
			c.AcceptHook(rec)

			c.Lookup(2, "ADD R1 #1")
			c.Update(2, "ADD R1 #1")
			c.Lookup(2, "ADD R1 #1")
			c.Update(66, "ADD R1 #1")

			Expect(rec.Count(display.HookPosCacheMiss)).To(Equal(1))
			Expect(rec.Count(display.HookPosCacheHit)).To(Equal(1))
			Expect(rec.Count(display.HookPosCacheEvict)).To(Equal(1))
		})
	})
})
