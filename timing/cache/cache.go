// Package cache provides the shared direct-mapped instruction cache, built on
// the Akita cache directory.
package cache

import (
	"sync"

	"github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mcsim/display"
)

// sharedPID tags every block. The cache is shared by all processes and keyed
// by address only.
const sharedPID = vm.PID(0)

// Config holds cache configuration parameters.
type Config struct {
	// Size is the number of slots. Address a maps to slot a mod Size.
	Size int
	// HistoryCap is the length of each slot's instruction history ring.
	HistoryCap int
	// MaxPrefetch caps the number of blocks a single miss may prefetch.
	MaxPrefetch int
	// Enabled turns the cache on. A disabled cache misses every lookup.
	Enabled bool
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Size:        64,
		HistoryCap:  8,
		MaxPrefetch: 16,
		Enabled:     true,
	}
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Lookups      uint64
	Hits         uint64
	Misses       uint64
	Updates      uint64
	Evictions    uint64
	Prefetches   uint64
	PrefetchHits uint64
}

// HitRatio returns hits over lookups.
func (s Statistics) HitRatio() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

// slot is the per-slot metadata kept beside the Akita block.
type slot struct {
	data         string
	hits         uint64
	misses       uint64
	lastUsed     uint64
	age          uint64
	prefetched   bool
	prefetchHits uint64

	history []string
	head    int
}

func (s *slot) record(cap int, inst string) {
	if cap == 0 {
		return
	}
	if len(s.history) < cap {
		s.history = append(s.history, inst)
		return
	}
	s.history[s.head] = inst
	s.head = (s.head + 1) % cap
}

// Entry is a snapshot of one cache slot.
type Entry struct {
	Slot         int
	Tag          uint64
	Valid        bool
	Dirty        bool
	Data         string
	Hits         uint64
	Misses       uint64
	LastUsed     uint64
	Age          uint64
	Prefetched   bool
	PrefetchHits uint64
	// History holds the slot's recent instruction texts, oldest first.
	History []string
}

// SlotInfo describes the slot an address maps to.
type SlotInfo struct {
	Slot int
	// Resident is true if the slot currently holds the probed address.
	Resident   bool
	Valid      bool
	Tag        uint64
	HitRatio   float64
	Age        uint64
	Recency    float64
	Efficiency float64
}

// Cache is a fixed-capacity direct-mapped cache. All operations are
// serialized by one lock and never fail.
type Cache struct {
	sim.HookableBase

	mu sync.Mutex

	config    Config
	directory *cache.DirectoryImpl
	slots     []slot
	backing   BackingStore
	enabled   bool

	// clock advances on every lookup and update and orders slots for LRU.
	clock uint64

	stats Statistics
}

// New creates a new cache. backing supplies the data for prefetched blocks
// and may be nil, which disables prefetching.
func New(config Config, backing BackingStore) *Cache {
	if config.Size <= 0 {
		config.Size = DefaultConfig().Size
	}

	c := &Cache{
		config:  config,
		backing: backing,
		enabled: config.Enabled,
	}
	c.reset()

	return c
}

func (c *Cache) reset() {
	if c.directory == nil {
		c.directory = cache.NewDirectory(c.config.Size, 1, 1, cache.NewLRUVictimFinder())
	} else {
		c.directory.Reset()
	}
	c.slots = make([]slot, c.config.Size)
	c.clock = 0
	c.stats = Statistics{}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Size returns the number of slots.
func (c *Cache) Size() int {
	return c.config.Size
}

// Enabled reports whether the cache is on.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled turns the cache on or off. Turning it off drops every block and
// resets all statistics.
func (c *Cache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !enabled {
		c.reset()
	}
	c.enabled = enabled
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Clock returns the cache's logical access counter.
func (c *Cache) Clock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// SlotOf returns the slot an address maps to.
func (c *Cache) SlotOf(addr uint64) int {
	return int(addr % uint64(c.config.Size))
}

func (c *Cache) block(slot int) *cache.Block {
	return c.directory.GetSets()[slot].Blocks[0]
}

// Lookup checks whether addr is cached. inst is the instruction text being
// fetched; on a miss it drives pattern prefetching.
func (c *Cache) Lookup(addr uint64, inst string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return false
	}

	c.clock++
	c.stats.Lookups++

	idx := c.SlotOf(addr)
	s := &c.slots[idx]

	if block := c.directory.Lookup(sharedPID, addr); block != nil {
		c.directory.Visit(block)
		s.hits++
		s.lastUsed = c.clock
		s.record(c.config.HistoryCap, inst)
		c.stats.Hits++
		if s.prefetched {
			s.prefetchHits++
			c.stats.PrefetchHits++
		}
		c.emit(display.HookPosCacheHit, "cache hit", "addr", addr, "slot", idx)
		return true
	}

	s.misses++
	c.stats.Misses++
	c.emit(display.HookPosCacheMiss, "cache miss", "addr", addr, "slot", idx)

	c.prefetch(addr, inst)

	return false
}

// Update installs data for addr, evicting whatever else occupies its slot.
func (c *Cache) Update(addr uint64, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	c.install(addr, data, false)
	c.stats.Updates++
}

// install places addr in its slot. It must be called with the lock held.
func (c *Cache) install(addr uint64, data string, prefetched bool) {
	c.clock++

	idx := c.SlotOf(addr)
	block := c.block(idx)
	s := &c.slots[idx]

	if block.IsValid && block.Tag != addr {
		c.stats.Evictions++
		s.misses++
		c.emit(display.HookPosCacheEvict, "cache eviction",
			"slot", idx, "evicted", block.Tag, "addr", addr)
	}

	for i := range c.slots {
		if i != idx && c.block(i).IsValid {
			c.slots[i].age++
		}
	}

	if !block.IsValid || block.Tag != addr {
		s.prefetched = prefetched
		s.prefetchHits = 0
	}

	block.Tag = addr
	block.IsValid = true
	block.IsDirty = false
	c.directory.Visit(block)

	s.data = data
	s.age = 0
	s.lastUsed = c.clock
	s.record(c.config.HistoryCap, data)
}

// Invalidate drops addr and its slot metadata from the cache if it is
// resident.
func (c *Cache) Invalidate(addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if block := c.directory.Lookup(sharedPID, addr); block != nil {
		block.IsValid = false
		block.IsDirty = false
		c.slots[c.SlotOf(addr)] = slot{}
	}
}

// FindLRU returns the eviction candidate: the first empty slot, or else the
// valid slot with the oldest last use.
func (c *Cache) FindLRU() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLRU()
}

func (c *Cache) findLRU() int {
	lru := -1
	for i := range c.slots {
		if !c.block(i).IsValid {
			return i
		}
		if lru < 0 || c.slots[i].lastUsed < c.slots[lru].lastUsed {
			lru = i
		}
	}
	return lru
}

// Efficiency returns the weighted score of a slot in percent:
// 50% hit ratio, 30% history fill, 20% freshness.
func (c *Cache) Efficiency(slot int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.efficiency(slot)
}

func (c *Cache) efficiency(idx int) float64 {
	if idx < 0 || idx >= len(c.slots) || !c.block(idx).IsValid {
		return 0
	}

	s := &c.slots[idx]
	access := 0.0
	if c.config.HistoryCap > 0 {
		access = float64(len(s.history)) / float64(c.config.HistoryCap)
	}

	score := 0.5*hitRatio(s) + 0.3*access + 0.2*(1/float64(s.age+1))
	return score * 100
}

func hitRatio(s *slot) float64 {
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total)
}

// Probe describes the slot addr maps to without counting as an access.
func (c *Cache) Probe(addr uint64) SlotInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.SlotOf(addr)
	block := c.block(idx)
	s := &c.slots[idx]

	info := SlotInfo{
		Slot:  idx,
		Valid: block.IsValid,
	}
	if !c.enabled || !block.IsValid {
		return info
	}

	info.Tag = block.Tag
	info.Resident = block.Tag == addr
	info.HitRatio = hitRatio(s)
	info.Age = s.age
	info.Recency = 1 / float64(1+c.clock-s.lastUsed)
	info.Efficiency = c.efficiency(idx)
	return info
}

// Entry returns a snapshot of a slot.
func (c *Cache) Entry(idx int) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	block := c.block(idx)
	s := &c.slots[idx]

	history := make([]string, 0, len(s.history))
	history = append(history, s.history[s.head:]...)
	history = append(history, s.history[:s.head]...)

	return Entry{
		Slot:         idx,
		Tag:          block.Tag,
		Valid:        block.IsValid,
		Dirty:        block.IsDirty,
		Data:         s.data,
		Hits:         s.hits,
		Misses:       s.misses,
		LastUsed:     s.lastUsed,
		Age:          s.age,
		Prefetched:   s.prefetched,
		PrefetchHits: s.prefetchHits,
		History:      history,
	}
}

// Reset drops every block and statistic without changing Enabled.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Cache) emit(pos *sim.HookPos, msg string, args ...any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Detail: display.Event{
			Cycle: c.clock,
			Core:  display.NoCore,
			Msg:   msg,
			Args:  args,
		},
	})
}
