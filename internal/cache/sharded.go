// Package cache implements the sharded DNS response cache: one mutex
// per shard guarding a map plus a strict LRU-by-last-access list,
// mandatory expiry-check-on-read, and TTL capping on insert.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

const shardCount = 256

// Config controls cache sizing and TTL policy.
type Config struct {
	Enabled            bool
	MaxEntries         int
	MaxTTLSeconds      uint32
	NegativeTTLSeconds uint32
	EvictionPolicy     string
}

// DefaultConfig returns the spec's default cache sizing.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		MaxEntries:         65536,
		MaxTTLSeconds:      86400,
		NegativeTTLSeconds: 60,
		EvictionPolicy:     "lru",
	}
}

// Entry is a cached response: the records to replay plus expiry.
type Entry struct {
	Answer     []wire.RR
	Authority  []wire.RR
	Additional []wire.RR
	Rcode      wire.Rcode
	AA         bool
	ExpiresAt  time.Time
}

type entryNode struct {
	key   uint64
	entry Entry
}

type shard struct {
	mu       sync.Mutex
	items    map[uint64]*list.Element
	lru      *list.List
	maxItems int
}

// ShardedCache is a fixed-shard-count, fixed-capacity-per-shard
// response cache with strict LRU-by-last-access eviction.
type ShardedCache struct {
	shards [shardCount]*shard
	cfg    Config

	hits    atomic.Uint64
	misses  atomic.Uint64
	evicted atomic.Uint64

	stopJanitor chan struct{}
}

// NewShardedCache builds a cache per cfg and starts its background
// expiry janitor.
func NewShardedCache(cfg Config) *ShardedCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 65536
	}
	perShard := cfg.MaxEntries / shardCount
	if perShard < 1 {
		perShard = 1
	}

	c := &ShardedCache{cfg: cfg, stopJanitor: make(chan struct{})}
	for i := range c.shards {
		c.shards[i] = &shard{
			items:    make(map[uint64]*list.Element),
			lru:      list.New(),
			maxItems: perShard,
		}
	}

	go c.runJanitor()
	return c
}

// Key hashes (name, type, class) into a cache key with FNV-1a, the
// same hash family the wire-layer query hashing uses.
func Key(name string, t wire.Type, class wire.Class) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{byte(t >> 8), byte(t)})
	h.Write([]byte{byte(class >> 8), byte(class)})
	return h.Sum64()
}

func (c *ShardedCache) shardFor(key uint64) *shard {
	return c.shards[key%shardCount]
}

// Config returns the cache's sizing/TTL configuration, for callers
// (the cache writer stage) that need to compute an entry's expiry
// from the configured positive/negative TTL caps.
func (c *ShardedCache) Config() Config {
	return c.cfg
}

// Get looks up key. Expiry is checked before returning a hit: an
// expired entry is removed in-place and reported as a miss.
func (c *ShardedCache) Get(key uint64) (Entry, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}

	node := el.Value.(*entryNode)
	if !time.Now().Before(node.entry.ExpiresAt) {
		s.lru.Remove(el)
		delete(s.items, key)
		c.misses.Add(1)
		return Entry{}, false
	}

	s.lru.MoveToFront(el)
	c.hits.Add(1)
	return node.entry, true
}

// Set inserts or replaces key, capping the TTL implied by entry's
// expiry against cfg.MaxTTLSeconds and evicting the least-recently-used
// entry if the shard is full.
func (c *ShardedCache) Set(key uint64, entry Entry) {
	maxExpiry := time.Now().Add(time.Duration(c.cfg.MaxTTLSeconds) * time.Second)
	if entry.ExpiresAt.After(maxExpiry) {
		entry.ExpiresAt = maxExpiry
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*entryNode).entry = entry
		s.lru.MoveToFront(el)
		return
	}

	if s.lru.Len() >= s.maxItems {
		back := s.lru.Back()
		if back != nil {
			old := back.Value.(*entryNode)
			s.lru.Remove(back)
			delete(s.items, old.key)
			c.evicted.Add(1)
		}
	}

	node := &entryNode{key: key, entry: entry}
	el := s.lru.PushFront(node)
	s.items[key] = el
}

// Delete removes key if present.
func (c *ShardedCache) Delete(key uint64) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.lru.Remove(el)
		delete(s.items, key)
	}
}

// Flush empties every shard.
func (c *ShardedCache) Flush() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[uint64]*list.Element)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// Close stops the background janitor.
func (c *ShardedCache) Close() error {
	close(c.stopJanitor)
	return nil
}

func (c *ShardedCache) runJanitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopJanitor:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *ShardedCache) sweepExpired() {
	now := time.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for key, el := range s.items {
			node := el.Value.(*entryNode)
			if now.After(node.entry.ExpiresAt) {
				s.lru.Remove(el)
				delete(s.items, key)
			}
		}
		s.mu.Unlock()
	}
}

// Stats summarizes cache hit/miss/eviction counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Evicted uint64
	Size    int
}

// GetStats returns a snapshot of the cache's counters and current size.
func (c *ShardedCache) GetStats() Stats {
	size := 0
	for _, s := range c.shards {
		s.mu.Lock()
		size += len(s.items)
		s.mu.Unlock()
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Evicted: c.evicted.Load(),
		Size:    size,
	}
}
