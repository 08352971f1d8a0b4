package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// SubscriberCountFunc reports how many live subscriptions a source has.
// Zero makes the source's entry eligible for eviction.
type SubscriberCountFunc func(sourceID string) int

// DurableStore mirrors cache writes to persistent storage so a restart can
// warm-start from last-known payloads.
type DurableStore interface {
	Put(ctx context.Context, entry types.CacheEntry) error
	Delete(ctx context.Context, sourceID string) error
	LoadAll(ctx context.Context) ([]types.CacheEntry, error)
	Close() error
}

// Options configures a Cache
type Options struct {
	// MaxEntries bounds the number of resident entries (0 = default)
	MaxEntries int
	// MaxBytes bounds resident payload bytes (0 = default)
	MaxBytes int64
	// CompressThreshold is the payload size above which entries are held
	// zstd-compressed (0 = default, negative = never compress)
	CompressThreshold int
	// Subscribers decides eviction eligibility; nil treats every source as
	// having zero subscribers
	Subscribers SubscriberCountFunc
	// Store mirrors writes when non-nil
	Store DurableStore

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Bus     *events.Bus
	Clock   clockwork.Clock
}

const (
	DefaultMaxEntries        = 256
	DefaultMaxBytes          = 64 << 20
	DefaultCompressThreshold = 64 << 10
)

// entry wraps the public CacheEntry with its compressed resident form.
// Exactly one of value.Payload or compressed carries the payload.
type entry struct {
	value      types.CacheEntry
	compressed []byte
	weight     int64
}

// Cache is a bounded, TTL-aware payload cache keyed by source ID
type Cache struct {
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
	bus     *events.Bus
	clock   clockwork.Clock

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu            sync.Mutex
	entries       map[string]*entry
	bytes         int64
	hits          uint64
	misses        uint64
	evictions     uint64
	underPressure bool
}

// New creates a cache with the given options
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.CompressThreshold == 0 {
		opts.CompressThreshold = DefaultCompressThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	dec, _ := zstd.NewReader(nil)

	return &Cache{
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		bus:     opts.Bus,
		clock:   opts.Clock,
		enc:     enc,
		dec:     dec,
		entries: make(map[string]*entry),
	}
}

// Put stores a payload under sourceID with the given TTL, stamping the fetch
// time. A zero TTL never expires.
func (c *Cache) Put(sourceID string, payload interface{}, ttl time.Duration) {
	c.PutEntry(types.CacheEntry{
		SourceID:  sourceID,
		Payload:   payload,
		FetchedAt: c.clock.Now(),
		TTL:       types.Duration(ttl),
	})
}

// PutEntry stores a fully populated entry, replacing any previous entry for
// the same source. Over-budget inserts evict idle sources first and are
// accepted under pressure when nothing is evictable.
func (c *Cache) PutEntry(e types.CacheEntry) {
	if e.SourceID == "" {
		return
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = c.clock.Now()
	}

	resident := c.compress(&e)

	c.mu.Lock()
	if old, ok := c.entries[e.SourceID]; ok {
		c.bytes -= old.weight
	}
	c.entries[e.SourceID] = resident
	c.bytes += resident.weight

	c.evictLocked(e.SourceID)
	c.publishOccupancyLocked()
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Put(context.Background(), e); err != nil {
			c.logger.Warn("durable cache write failed",
				zap.String("source_id", e.SourceID),
				zap.Error(err))
		}
	}
}

// Get returns the entry for sourceID. An entry past its TTL is removed and
// reported as a miss.
func (c *Cache) Get(sourceID string) (types.CacheEntry, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	ent, ok := c.entries[sourceID]
	if ok && ent.value.Expired(now) {
		c.removeLocked(sourceID)
		ok = false
	}
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.metrics.RecordCacheHit(false)
		return types.CacheEntry{}, false
	}
	c.hits++
	value := ent.value
	compressed := ent.compressed
	c.mu.Unlock()

	c.metrics.RecordCacheHit(true)

	if compressed != nil {
		payload, err := c.inflate(compressed)
		if err != nil {
			c.logger.Error("cached payload inflate failed, dropping entry",
				zap.String("source_id", sourceID),
				zap.Error(err))
			c.Invalidate(sourceID)
			return types.CacheEntry{}, false
		}
		value.Payload = payload
	}
	return value, true
}

// Lookup implements the read handle handed to widgets
func (c *Cache) Lookup(sourceID string) (types.CacheEntry, bool) {
	return c.Get(sourceID)
}

// Invalidate removes the entry for sourceID, in memory and durably
func (c *Cache) Invalidate(sourceID string) {
	c.mu.Lock()
	c.removeLocked(sourceID)
	c.publishOccupancyLocked()
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Delete(context.Background(), sourceID); err != nil {
			c.logger.Warn("durable cache delete failed",
				zap.String("source_id", sourceID),
				zap.Error(err))
		}
	}
}

// Sweep reclaims expired entries and entries whose source has no remaining
// subscribers. Returns the IDs it removed. Meant to run on a schedule.
func (c *Cache) Sweep() []string {
	now := c.clock.Now()

	c.mu.Lock()
	var removed []string
	for sourceID, ent := range c.entries {
		if ent.value.Expired(now) || c.subscriberCount(sourceID) == 0 {
			c.removeLocked(sourceID)
			removed = append(removed, sourceID)
		}
	}
	c.publishOccupancyLocked()
	c.mu.Unlock()

	if c.opts.Store != nil {
		for _, sourceID := range removed {
			if err := c.opts.Store.Delete(context.Background(), sourceID); err != nil {
				c.logger.Warn("durable cache prune failed",
					zap.String("source_id", sourceID),
					zap.Error(err))
			}
		}
	}

	if len(removed) > 0 {
		c.logger.Debug("cache sweep", zap.Int("removed", len(removed)))
	}
	return removed
}

// WarmStart loads all durable entries into memory. Call once at boot,
// before pollers start.
func (c *Cache) WarmStart(ctx context.Context) (int, error) {
	if c.opts.Store == nil {
		return 0, nil
	}
	entries, err := c.opts.Store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	for _, e := range entries {
		resident := c.compress(&e)
		if old, ok := c.entries[e.SourceID]; ok {
			c.bytes -= old.weight
		}
		c.entries[e.SourceID] = resident
		c.bytes += resident.weight
	}
	c.publishOccupancyLocked()
	c.mu.Unlock()

	return len(entries), nil
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a point-in-time view of occupancy and counters
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CacheStats{
		Entries:     len(c.entries),
		Bytes:       c.bytes,
		EntryBudget: c.opts.MaxEntries,
		ByteBudget:  c.opts.MaxBytes,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
}

// Close releases the compression codecs and the durable store
func (c *Cache) Close() error {
	c.enc.Close()
	c.dec.Close()
	if c.opts.Store != nil {
		return c.opts.Store.Close()
	}
	return nil
}

// compress builds the resident form of an entry. Once a payload parsed, the
// raw bytes are not retained; payloads at or above the threshold are held
// zstd-compressed. Failures fall back to the widest uncompressed form.
func (c *Cache) compress(e *types.CacheEntry) *entry {
	if e.Size == 0 && e.Raw != nil {
		e.Size = int64(len(e.Raw))
	}

	resident := &entry{value: *e}
	if e.Payload == nil {
		resident.weight = e.Size
		return resident
	}

	raw, err := sonic.Marshal(e.Payload)
	if err != nil {
		resident.weight = e.Size
		return resident
	}
	resident.value.Raw = nil
	resident.weight = int64(len(raw))
	if resident.value.Size == 0 {
		resident.value.Size = resident.weight
	}

	if c.opts.CompressThreshold < 0 || len(raw) < c.opts.CompressThreshold {
		return resident
	}
	resident.compressed = c.enc.EncodeAll(raw, nil)
	resident.value.Payload = nil
	resident.weight = int64(len(resident.compressed))
	return resident
}

// inflate reverses compress for a Get
func (c *Cache) inflate(compressed []byte) (interface{}, error) {
	raw, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, err
	}
	var payload interface{}
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Cache) subscriberCount(sourceID string) int {
	if c.opts.Subscribers == nil {
		return 0
	}
	return c.opts.Subscribers(sourceID)
}

// evictLocked enforces the budgets after an insert. keep is the source just
// written; it is never its own eviction victim. Callers hold c.mu.
func (c *Cache) evictLocked(keep string) {
	for c.overBudgetLocked() {
		victim := ""
		var victimFetched time.Time
		for sourceID, ent := range c.entries {
			if sourceID == keep || c.subscriberCount(sourceID) > 0 {
				continue
			}
			if victim == "" || ent.value.FetchedAt.Before(victimFetched) {
				victim = sourceID
				victimFetched = ent.value.FetchedAt
			}
		}
		if victim == "" {
			c.pressureLocked()
			return
		}
		c.removeLocked(victim)
		c.evictions++
		c.metrics.RecordCacheEviction()
		c.logger.Debug("cache eviction",
			zap.String("source_id", victim),
			zap.Time("fetched_at", victimFetched))
	}
	c.underPressure = false
}

func (c *Cache) overBudgetLocked() bool {
	return len(c.entries) > c.opts.MaxEntries || c.bytes > c.opts.MaxBytes
}

// pressureLocked latches the over-budget condition, announcing it once per
// episode. Callers hold c.mu.
func (c *Cache) pressureLocked() {
	c.metrics.RecordCachePressure()
	if c.underPressure {
		return
	}
	c.underPressure = true

	warning := types.CachePressure{
		Entries:     len(c.entries),
		Bytes:       c.bytes,
		EntryBudget: c.opts.MaxEntries,
		ByteBudget:  c.opts.MaxBytes,
	}
	c.logger.Warn("cache over budget with no evictable entries",
		zap.Int("entries", warning.Entries),
		zap.Int64("bytes", warning.Bytes),
		zap.Int("entry_budget", warning.EntryBudget),
		zap.Int64("byte_budget", warning.ByteBudget))
	if c.bus != nil {
		c.bus.Publish(types.TopicCache, events.TypeCachePressure, warning)
	}
}

// removeLocked deletes an entry and adjusts accounting. Callers hold c.mu.
func (c *Cache) removeLocked(sourceID string) {
	if ent, ok := c.entries[sourceID]; ok {
		c.bytes -= ent.weight
		delete(c.entries, sourceID)
	}
	if !c.overBudgetLocked() {
		c.underPressure = false
	}
}

func (c *Cache) publishOccupancyLocked() {
	c.metrics.SetCacheOccupancy(len(c.entries), c.bytes)
}
