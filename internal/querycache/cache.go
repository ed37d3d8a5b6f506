package querycache

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"board_query_cache/internal/durable"
	"board_query_cache/internal/obs"
)

const (
	DefaultMaxSize     = 50
	DefaultMaxAge      = 5 * time.Minute
	DefaultManifestKey = "boards_cache_index"
)

// Config controls cache bounds. Zero values select the defaults.
type Config struct {
	Namespace   string
	MaxSize     int
	MaxAge      time.Duration
	ManifestKey string
}

type Options struct {
	Now     func() time.Time
	Logger  *log.Logger
	Metrics *obs.Metrics
	Events  *obs.EventLog
}

// SetOutcome reports what happened to the durable mirror during a Set. The
// in-memory write always happens unless the outcome is SetReset.
type SetOutcome string

const (
	SetStored     SetOutcome = "stored"
	SetMemoryOnly SetOutcome = "memory_only"
	SetReset      SetOutcome = "reset"
)

type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Cache is safe for concurrent use. A nil store runs the cache in memory only.
type Cache struct {
	mu sync.Mutex

	namespace   string
	maxSize     int
	maxAge      time.Duration
	manifestKey string

	store   durable.Store
	entries map[string]Entry
	// order holds the first-insertion sequence of each key in entries.
	order   map[string]uint64
	nextSeq uint64

	now     func() time.Time
	logger  *log.Logger
	metrics *obs.Metrics
	events  *obs.EventLog
}

func New(cfg Config, store durable.Store, opts Options) *Cache {
	c := &Cache{
		namespace:   cfg.Namespace,
		maxSize:     cfg.MaxSize,
		maxAge:      cfg.MaxAge,
		manifestKey: cfg.ManifestKey,
		store:       store,
		entries:     make(map[string]Entry),
		order:       make(map[string]uint64),
		now:         opts.Now,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		events:      opts.Events,
	}
	if c.namespace == "" {
		c.namespace = DefaultNamespace
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMaxAge
	}
	if c.manifestKey == "" {
		c.manifestKey = DefaultManifestKey
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Key returns the cache key params map to in this cache's namespace.
func (c *Cache) Key(params Params) string {
	return BuildKey(c.namespace, params)
}

// Namespace returns the key prefix, without the trailing colon.
func (c *Cache) Namespace() string {
	return c.namespace
}

// Get returns the entry stored for params. A miss never consults the durable
// store. Expired entries are purged from memory and the durable mirror.
func (c *Cache) Get(params Params) (Entry, bool) {
	key := c.Key(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.metrics.RecordLookup("miss")
		return Entry{}, false
	}
	if c.expired(entry, c.now()) {
		c.deleteLocked(key)
		c.dropDurableLocked([]string{key})
		c.metrics.RecordLookup("expired")
		c.metrics.RecordEviction("expired", 1)
		c.metrics.SetEntries(len(c.entries))
		return Entry{}, false
	}
	c.metrics.RecordLookup("hit")
	return cloneEntry(entry), true
}

// Set replaces the entry for params and mirrors it durably.
func (c *Cache) Set(params Params, data []json.RawMessage, pagination *Pagination) SetOutcome {
	key := c.Key(params)
	entry := Entry{
		Data:       cloneData(data),
		Pagination: clonePagination(pagination),
		Timestamp:  c.now(),
		Key:        key,
	}
	if entry.Data == nil {
		entry.Data = []json.RawMessage{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.putLocked(key, entry)
	outcome := c.persistLocked(entry)
	if evicted := c.boundLocked(); len(evicted) > 0 {
		c.dropDurableLocked(evicted)
		c.metrics.RecordEviction("fifo", len(evicted))
	}
	c.metrics.RecordWrite(string(outcome))
	c.metrics.SetEntries(len(c.entries))
	return outcome
}

// Remove drops the entry for params, matching its key exactly.
func (c *Cache) Remove(params Params) bool {
	key := c.Key(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	c.deleteLocked(key)
	c.dropDurableLocked([]string{key})
	if ok {
		c.metrics.RecordEviction("remove", 1)
		c.metrics.SetEntries(len(c.entries))
	}
	return ok
}

// Invalidate removes every entry whose key contains pattern and returns how
// many in-memory entries it dropped. An empty pattern clears the cache.
func (c *Cache) Invalidate(pattern string) int {
	if pattern == "" {
		return c.Clear()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	matched := make([]string, 0)
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			matched = append(matched, key)
			c.deleteLocked(key)
		}
	}
	removed := len(matched)
	if c.store != nil {
		if manifest, state := c.readManifestLocked(); state == manifestOK {
			for _, key := range manifest {
				if strings.Contains(key, pattern) && !containsKey(matched, key) {
					matched = append(matched, key)
				}
			}
		}
		c.dropDurableLocked(matched)
	}

	c.metrics.RecordEviction("invalidate", removed)
	c.metrics.SetEntries(len(c.entries))
	c.events.Log(obs.CacheEvent{Event: "invalidate", Pattern: pattern, Removed: removed, Size: len(c.entries)})
	return removed
}

// Clear drops the in-memory index, every owned durable record and the
// manifest itself. It returns how many in-memory entries were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.clearLocked()
	c.metrics.RecordEviction("clear", removed)
	c.metrics.SetEntries(0)
	c.events.Log(obs.CacheEvent{Event: "clear", Removed: removed})
	return removed
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys}
}

func (c *Cache) putLocked(key string, entry Entry) {
	if _, ok := c.entries[key]; !ok {
		c.nextSeq++
		c.order[key] = c.nextSeq
	}
	c.entries[key] = entry
}

func (c *Cache) deleteLocked(key string) {
	delete(c.entries, key)
	delete(c.order, key)
}

// boundLocked evicts the oldest in-memory entries until at most maxSize
// remain. It holds even when the durable mirror is unavailable.
func (c *Cache) boundLocked() []string {
	var evicted []string
	for len(c.entries) > c.maxSize {
		oldest := ""
		var oldestSeq uint64
		for key, seq := range c.order {
			if oldest == "" || seq < oldestSeq {
				oldest, oldestSeq = key, seq
			}
		}
		c.deleteLocked(oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

func (c *Cache) expired(entry Entry, now time.Time) bool {
	return now.Sub(entry.Timestamp) > c.maxAge
}

func containsKey(keys []string, key string) bool {
	for _, candidate := range keys {
		if candidate == key {
			return true
		}
	}
	return false
}
