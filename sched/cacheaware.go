package sched

import (
	"github.com/sarchlab/mcsim/insts"
	"github.com/sarchlab/mcsim/process"
)

// CacheAwareConfig tunes the cache-aware policy.
type CacheAwareConfig struct {
	// LookAhead is how many upcoming instructions are compared.
	LookAhead int
	// SimilarityThreshold is the minimum similarity to join a cluster.
	SimilarityThreshold float64
	// MaxClusters caps the number of clusters.
	MaxClusters int
}

// DefaultCacheAwareConfig returns the default cache-aware tuning.
func DefaultCacheAwareConfig() CacheAwareConfig {
	return CacheAwareConfig{
		LookAhead:           3,
		SimilarityThreshold: 0.65,
		MaxClusters:         4,
	}
}

// Cluster is a group of ready processes with similar upcoming instructions.
type Cluster struct {
	PIDs []int
	// Similarity is the mean pairwise similarity of the members. A single
	// member cluster has similarity 0.
	Similarity float64
}

// CacheAware groups ready processes whose next instructions look alike and
// prefers the one most likely to hit the cache. Without a cache it falls
// back to FIFO.
type CacheAware struct {
	basePolicy

	config CacheAwareConfig
	cache  CacheProbe
	text   InstructionSource

	clusters []Cluster
	// affinity holds the members of the last chosen cluster.
	affinity map[int]bool
}

// NewCacheAware creates a cache-aware policy.
func NewCacheAware(
	quantum int,
	config CacheAwareConfig,
	cache CacheProbe,
	text InstructionSource,
) *CacheAware {
	def := DefaultCacheAwareConfig()
	if config.LookAhead <= 0 {
		config.LookAhead = def.LookAhead
	}
	if config.SimilarityThreshold < 0 {
		config.SimilarityThreshold = def.SimilarityThreshold
	}
	if config.MaxClusters <= 0 {
		config.MaxClusters = def.MaxClusters
	}

	return &CacheAware{
		basePolicy: basePolicy{quantum: quantum},
		config:     config,
		cache:      cache,
		text:       text,
	}
}

// Name returns the policy name.
func (c *CacheAware) Name() string { return "Cache-Aware" }

// LastClusters returns the clustering computed by the last SelectNext.
func (c *CacheAware) LastClusters() []Cluster {
	out := make([]Cluster, len(c.clusters))
	for i, cl := range c.clusters {
		out[i] = Cluster{
			PIDs:       append([]int(nil), cl.PIDs...),
			Similarity: cl.Similarity,
		}
	}
	return out
}

type candidate struct {
	p      *process.PCB
	window []string
}

type cluster struct {
	members    []candidate
	similarity float64
}

// SelectNext clusters the ready queue and returns the best scored process,
// searching the previously chosen cluster first.
func (c *CacheAware) SelectNext(m *Manager) *process.PCB {
	ready := m.ReadyQueue()
	if len(ready) == 0 {
		return nil
	}
	if !c.cache.Enabled() {
		c.clusters = nil
		return fifo(m)
	}

	clusters := c.cluster(ready)
	c.clusters = c.clusters[:0]
	for _, cl := range clusters {
		pids := make([]int, len(cl.members))
		for i, cand := range cl.members {
			pids[i] = cand.p.PID
		}
		c.clusters = append(c.clusters, Cluster{PIDs: pids, Similarity: cl.similarity})
	}

	chosen := c.affine(clusters)
	var best *process.PCB
	if chosen != nil {
		best = c.best(m, chosen)
	} else {
		bestScore := -1.0
		for _, cl := range clusters {
			p := c.best(m, cl)
			if score := c.score(m, p, cl); score > bestScore {
				best, bestScore, chosen = p, score, cl
			}
		}
	}

	c.affinity = make(map[int]bool, len(chosen.members))
	for _, cand := range chosen.members {
		c.affinity[cand.p.PID] = true
	}
	return best
}

// affine returns the cluster sharing the most members with the last chosen
// one, or nil if none does.
func (c *CacheAware) affine(clusters []*cluster) *cluster {
	var (
		chosen *cluster
		most   int
	)
	for _, cl := range clusters {
		n := 0
		for _, cand := range cl.members {
			if c.affinity[cand.p.PID] {
				n++
			}
		}
		if n > most {
			chosen, most = cl, n
		}
	}
	return chosen
}

func (c *CacheAware) best(m *Manager, cl *cluster) *process.PCB {
	var (
		best      *process.PCB
		bestScore = -1.0
	)
	for _, cand := range cl.members {
		if score := c.score(m, cand.p, cl); score > bestScore {
			best, bestScore = cand.p, score
		}
	}
	return best
}

// score is 0.7 cache score + 0.3 cluster similarity, in percent.
func (c *CacheAware) score(m *Manager, p *process.PCB, cl *cluster) float64 {
	info := c.cache.Probe(p.Base + uint64(p.Context.PC))

	hit, recency := 0.0, 0.0
	if info.Resident {
		hit, recency = info.HitRatio, info.Recency
	}

	cacheScore := 100 * (0.4*hit + 0.4*cl.similarity + 0.2*recency)
	return 0.7*cacheScore + 0.3*cl.similarity*100
}

// cluster assigns every ready process, in queue order, to the most similar
// cluster at or above the threshold, opening a new one while under the cap.
func (c *CacheAware) cluster(ready []*process.PCB) []*cluster {
	var clusters []*cluster

	for _, p := range ready {
		cand := candidate{p: p, window: c.window(p)}

		var (
			target  *cluster
			bestSim = -1.0
		)
		for _, cl := range clusters {
			if sim := meanSimilarity(cand, cl.members); sim > bestSim {
				target, bestSim = cl, sim
			}
		}

		if target == nil || (bestSim < c.config.SimilarityThreshold && len(clusters) < c.config.MaxClusters) {
			clusters = append(clusters, &cluster{members: []candidate{cand}})
			continue
		}
		target.members = append(target.members, cand)
	}

	for _, cl := range clusters {
		cl.similarity = pairwise(cl.members)
	}
	return clusters
}

func (c *CacheAware) window(p *process.PCB) []string {
	out := make([]string, 0, c.config.LookAhead)
	for i := 0; i < c.config.LookAhead; i++ {
		pc := p.Context.PC + i
		if pc >= p.InstructionCount {
			break
		}
		text, ok := c.text.InstructionAt(p.Base + uint64(pc))
		if !ok {
			break
		}
		out = append(out, text)
	}
	return out
}

func meanSimilarity(cand candidate, members []candidate) float64 {
	if len(members) == 0 {
		return 0
	}
	sum := 0.0
	for _, other := range members {
		sum += windowSimilarity(cand.window, other.window)
	}
	return sum / float64(len(members))
}

// pairwise is the mean similarity over member pairs. A lone process shares
// locality with nobody and scores 0.
func pairwise(members []candidate) float64 {
	if len(members) < 2 {
		return 0
	}
	sum, n := 0.0, 0
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			sum += windowSimilarity(members[i].window, members[j].window)
			n++
		}
	}
	return sum / float64(n)
}

// windowSimilarity averages InstructionSimilarity position by position. A
// position only one window reaches scores 0.
func windowSimilarity(a, b []string) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < min(len(a), len(b)); i++ {
		sum += InstructionSimilarity(a[i], b[i])
	}
	return sum / float64(n)
}

// InstructionSimilarity is 1 for identical instructions, 0.8 for the same
// opcode, 0.5 for the same class of operation and 0 otherwise.
func InstructionSimilarity(a, b string) float64 {
	if insts.Normalize(a) == insts.Normalize(b) {
		return 1
	}

	opA, opB := insts.Classify(a), insts.Classify(b)
	switch {
	case opA == insts.OpUnknown || opB == insts.OpUnknown:
		return 0
	case opA == opB:
		return 0.8
	case opA.Class() == opB.Class():
		return 0.5
	default:
		return 0
	}
}
