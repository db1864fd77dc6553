package cache

import (
	"github.com/sarchlab/mcsim/display"
	"github.com/sarchlab/mcsim/insts"
)

// loopMinPrefetch is the smallest window a LOOP miss prefetches.
const loopMinPrefetch = 2

// prefetch brings in the blocks that inst, missing at addr, is likely to
// need next. It must be called with the lock held.
func (c *Cache) prefetch(addr uint64, inst string) {
	if c.backing == nil {
		return
	}

	var n int
	switch insts.Classify(inst) {
	case insts.OpLOAD:
		n = 1
	case insts.OpLOOP:
		n = c.loopSpan(addr)
	default:
		return
	}

	for i := 1; i <= n; i++ {
		if !c.prefetchOne(addr + uint64(i)) {
			return
		}
	}
}

// loopSpan counts the lines between the LOOP at addr and its matching
// L_END, clamped to [loopMinPrefetch, MaxPrefetch]. A LOOP with no
// terminator within MaxPrefetch+1 lines spans loopMinPrefetch.
func (c *Cache) loopSpan(addr uint64) int {
	limit := c.config.MaxPrefetch
	if limit <= 0 {
		return 0
	}
	floor := loopMinPrefetch
	if floor > limit {
		floor = limit
	}

	depth := 1
	for i := 1; i <= limit+1; i++ {
		text, ok := c.backing.InstructionAt(addr + uint64(i))
		if !ok {
			return floor
		}

		switch insts.Classify(text) {
		case insts.OpLOOP:
			depth++
		case insts.OpLEND:
			depth--
		}
		if depth > 0 {
			continue
		}

		n := i - 1
		if n < floor {
			n = floor
		}
		if n > limit {
			n = limit
		}
		return n
	}

	return floor
}

// prefetchOne installs addr if its slot may be displaced. It returns false
// once the backing store runs out of instructions.
func (c *Cache) prefetchOne(addr uint64) bool {
	text, ok := c.backing.InstructionAt(addr)
	if !ok {
		return false
	}

	idx := c.SlotOf(addr)
	block := c.block(idx)
	s := &c.slots[idx]

	if block.IsValid {
		if block.Tag == addr {
			return true
		}
		cold := s.prefetched && s.prefetchHits == 0
		if !cold && c.findLRU() != idx {
			return true
		}
	}

	c.install(addr, text, true)
	c.stats.Prefetches++
	c.emit(display.HookPosCachePrefetch, "cache prefetch", "addr", addr, "slot", idx)

	return true
}
