package sched_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/config"
	"github.com/sarchlab/mcsim/process"
	"github.com/sarchlab/mcsim/sched"
	"github.com/sarchlab/mcsim/timing/cache"
)

type fakeCache struct {
	enabled bool
	slots   map[uint64]cache.SlotInfo
}

func (f *fakeCache) Enabled() bool { return f.enabled }

func (f *fakeCache) Probe(addr uint64) cache.SlotInfo {
	return f.slots[addr]
}

type fakeText map[uint64]string

func (f fakeText) InstructionAt(addr uint64) (string, bool) {
	text, ok := f[addr]
	return text, ok
}

var _ = Describe("NewPolicy", func() {
	It("should build every configured policy", func() {
		cfg := sched.PolicyConfig{
			Quantum: 3,
			Seed:    1,
			Cache:   &fakeCache{},
			Text:    fakeText{},
		}
		for _, name := range config.Policies {
			p, err := sched.NewPolicy(name, cfg)
			Expect(err).NotTo(HaveOccurred(), name)
			Expect(p.Quantum()).To(Equal(3))
			Expect(p.Name()).NotTo(BeEmpty())
		}
	})

	It("should reject unknown names", func() {
		_, err := sched.NewPolicy("fifo", sched.PolicyConfig{})
		Expect(err).To(MatchError(sched.ErrUnknownPolicy))
	})

	It("should require a cache for the cache-aware policy", func() {
		_, err := sched.NewPolicy(config.PolicyCacheAware, sched.PolicyConfig{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SJF", func() {
	var m *sched.Manager

	BeforeEach(func() {
		m = sched.NewManager(sched.DefaultConfig(), sched.NewSJF(2))
		_, _ = m.CreateProcess(0, 50, 10)
		_, _ = m.CreateProcess(50, 70, 10)
		_, _ = m.CreateProcess(70, 90, 10)
		_, _ = m.CreateProcess(90, 100, 5)
	})

	It("should pick the smallest footprint first, ties in FIFO order", func() {
		var order []int
		for i := 0; i < 4; i++ {
			p, _ := m.Dispatch(i)
			order = append(order, p.PID)
		}
		Expect(order).To(Equal([]int{4, 2, 3, 1}))
	})

	It("should keep a preempted job ahead of its ties", func() {
		_, _ = m.Dispatch(0)
		p, _ := m.Dispatch(1)
		Expect(p.PID).To(Equal(2))

		Expect(m.Preempt(1, process.Context{PC: 2})).To(Succeed())
		p, _ = m.Dispatch(1)
		Expect(p.PID).To(Equal(2))
	})
})

var _ = Describe("Lottery", func() {
	draw := func(seed uint64, n int) []int {
		m := sched.NewManager(sched.DefaultConfig(), sched.NewLottery(1, seed))
		_, _ = m.CreateProcess(0, 10, 100)
		_, _ = m.CreateProcess(10, 20, 100)
		Expect(m.SetTickets(1, 90)).To(Succeed())
		Expect(m.SetTickets(2, 10)).To(Succeed())

		var pids []int
		for i := 0; i < n; i++ {
			p, _ := m.Dispatch(0)
			pids = append(pids, p.PID)
			Expect(m.Preempt(0, p.Context)).To(Succeed())
		}
		return pids
	}

	It("should be reproducible for a seed", func() {
		Expect(draw(7, 50)).To(Equal(draw(7, 50)))
	})

	It("should favor the process holding more tickets", func() {
		wins := 0
		for _, pid := range draw(3, 1000) {
			if pid == 1 {
				wins++
			}
		}
		Expect(wins).To(BeNumerically(">", 800))
		Expect(wins).To(BeNumerically("<", 980))
	})

	It("should keep tickets across preemption", func() {
		m := sched.NewManager(sched.DefaultConfig(), sched.NewLottery(1, 1))
		p, _ := m.CreateProcess(0, 10, 100)
		Expect(m.SetTickets(1, 42)).To(Succeed())
		_, _ = m.Dispatch(0)
		Expect(m.Preempt(0, process.Context{})).To(Succeed())
		Expect(p.Tickets).To(Equal(42))
	})
})

var _ = Describe("CacheAware", func() {
	var (
		fc     *fakeCache
		text   fakeText
		policy *sched.CacheAware
		m      *sched.Manager
	)

	load := func(base uint64, lines ...string) {
		for i, l := range lines {
			text[base+uint64(i)] = l
		}
		_, err := m.CreateProcess(base, base+10, len(lines))
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		fc = &fakeCache{enabled: true, slots: map[uint64]cache.SlotInfo{}}
		text = fakeText{}
		policy = sched.NewCacheAware(4, sched.DefaultCacheAwareConfig(), fc, text)
		m = sched.NewManager(sched.DefaultConfig(), policy)
	})

	It("should group identical processes into one cluster", func() {
		for _, base := range []uint64{0, 10, 20} {
			load(base, "ADD R1 #1", "LOAD R2 5", "SUB R1 #1")
		}
		fc.slots[10] = cache.SlotInfo{Slot: 10, Valid: true, Resident: true, HitRatio: 1, Recency: 1}

		p, err := m.Dispatch(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.PID).To(Equal(2))

		clusters := policy.LastClusters()
		Expect(clusters).To(HaveLen(1))
		Expect(clusters[0].PIDs).To(Equal([]int{1, 2, 3}))
		Expect(clusters[0].Similarity).To(Equal(1.0))

		p, _ = m.Dispatch(1)
		Expect(p.PID).To(Equal(1))
		clusters = policy.LastClusters()
		Expect(clusters).To(HaveLen(1))
		Expect(clusters[0].PIDs).To(Equal([]int{1, 3}))

		Expect(m.Preempt(0, process.Context{})).To(Succeed())
		p, _ = m.Dispatch(0)
		Expect(p.PID).To(Equal(2))

		for _, cl := range policy.LastClusters() {
			Expect(cl.PIDs).NotTo(BeEmpty())
		}
	})

	It("should separate dissimilar processes", func() {
		load(0, "ADD R1 #1", "ADD R1 #1")
		load(10, "LOOP 3", "L_END")
		load(20, "ADD R1 #1", "ADD R1 #1")

		_, _ = m.Dispatch(0)
		clusters := policy.LastClusters()
		Expect(clusters).To(HaveLen(2))
		Expect(clusters[0].PIDs).To(Equal([]int{1, 3}))
		Expect(clusters[1].PIDs).To(Equal([]int{2}))
	})

	It("should rank a real cluster above an unrelated process", func() {
		load(0, "ADD R1 #1", "ADD R1 #2", "ADD R1 #3")
		load(10, "ADD R2 #4", "ADD R2 #5", "ADD R2 #6")
		load(20, "LOOP 3", "L_END", "LOOP 1")

		_, err := m.Dispatch(0)
		Expect(err).NotTo(HaveOccurred())

		clusters := policy.LastClusters()
		Expect(clusters).To(HaveLen(2))
		Expect(clusters[0].PIDs).To(Equal([]int{1, 2}))
		Expect(clusters[0].Similarity).To(BeNumerically("~", 0.8, 1e-9))
		Expect(clusters[1].PIDs).To(Equal([]int{3}))
		Expect(clusters[1].Similarity).To(BeZero())
		Expect(m.Running(0).PID).To(Equal(1))

		p, _ := m.Dispatch(1)
		Expect(p.PID).To(Equal(2))
	})

	It("should put everything in one cluster with a zero threshold", func() {
		cfg := sched.CacheAwareConfig{LookAhead: 3, SimilarityThreshold: 0, MaxClusters: 4}
		policy = sched.NewCacheAware(4, cfg, fc, text)
		m = sched.NewManager(sched.DefaultConfig(), policy)

		load(0, "ADD R1 #1")
		load(10, "LOOP 3")

		_, _ = m.Dispatch(0)
		clusters := policy.LastClusters()
		Expect(clusters).To(HaveLen(1))
		Expect(clusters[0].PIDs).To(Equal([]int{1, 2}))
	})

	It("should prefer the previously chosen cluster", func() {
		load(0, "LOOP 3", "L_END")
		load(10, "ADD R1 #1", "ADD R1 #1")
		load(20, "ADD R1 #1", "ADD R1 #1")
		fc.slots[10] = cache.SlotInfo{Resident: true, HitRatio: 1, Recency: 1}

		p, _ := m.Dispatch(0)
		Expect(p.PID).To(Equal(2))

		fc.slots[0] = cache.SlotInfo{Resident: true, HitRatio: 1, Recency: 1}
		p, _ = m.Dispatch(1)
		Expect(p.PID).To(Equal(3))
	})

	It("should cap the number of clusters", func() {
		cfg := sched.CacheAwareConfig{LookAhead: 3, SimilarityThreshold: 0.65, MaxClusters: 2}
		policy = sched.NewCacheAware(4, cfg, fc, text)
		m = sched.NewManager(sched.DefaultConfig(), policy)

		load(0, "ADD R1 #1")
		load(10, "LOOP 3")
		load(20, "STORE R1 5")

		_, _ = m.Dispatch(0)
		Expect(policy.LastClusters()).To(HaveLen(2))
	})

	It("should fall back to FIFO when the cache is disabled", func() {
		fc.enabled = false
		load(0, "ADD R1 #1")
		load(10, "ADD R1 #1")
		fc.slots[10] = cache.SlotInfo{Resident: true, HitRatio: 1, Recency: 1}

		p, _ := m.Dispatch(0)
		Expect(p.PID).To(Equal(1))
		Expect(policy.LastClusters()).To(BeEmpty())
	})

	DescribeTable("InstructionSimilarity",
		func(a, b string, want float64) {
			Expect(sched.InstructionSimilarity(a, b)).To(Equal(want))
		},
		Entry("identical", "ADD R1 #1", "add R1 #1", 1.0),
		Entry("same opcode", "ADD R1 #1", "ADD R2 R3", 0.8),
		Entry("same class", "ADD R1 #1", "MUL R1 #2", 0.5),
		Entry("memory class", "LOAD R1 5", "STORE R1 5", 0.5),
		Entry("different", "ADD R1 #1", "LOOP 3", 0.0),
	)
})
