package signals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JohnPlummer/priority-scorer/scorer"
)

// DefaultCacheTTL is how long extracted signals are reused
const DefaultCacheTTL = 24 * time.Hour

// Cache stores extracted signals by key
type Cache interface {
	Get(ctx context.Context, key string) ([]scorer.UrgencySignal, bool, error)
	Set(ctx context.Context, key string, signals []scorer.UrgencySignal) error
}

// CacheKey derives a stable key from the extractor name and the message text
func CacheKey(extractor string, msg Message) string {
	sum := sha256.Sum256([]byte(msg.Subject + "\x00" + msg.Body))
	return "signals:" + extractor + ":" + hex.EncodeToString(sum[:])
}

// CachedExtractor reuses earlier extractions of identical message text by the
// same extractor. A failing cache never fails an extraction, and results a
// FallbackExtractor served from its fallback are not stored.
type CachedExtractor struct {
	next    Extractor
	name    string
	cache   Cache
	metrics *MetricsRecorder
}

// NewCachedExtractor wraps next with cache, keyed by NameOf(next)
func NewCachedExtractor(next Extractor, cache Cache, metrics *MetricsRecorder) *CachedExtractor {
	return &CachedExtractor{next: next, name: NameOf(next), cache: cache, metrics: metrics}
}

// Name implements Named
func (c *CachedExtractor) Name() string {
	return c.name
}

// Extract implements Extractor
func (c *CachedExtractor) Extract(ctx context.Context, msg Message) ([]scorer.UrgencySignal, error) {
	key := CacheKey(c.name, msg)

	cached, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("signal cache lookup failed", "key", key, "error", err)
		c.metrics.RecordCacheLookup("error")
	case ok:
		c.metrics.RecordCacheLookup("hit")
		return cached, nil
	default:
		c.metrics.RecordCacheLookup("miss")
	}

	var out []scorer.UrgencySignal
	var fellBack bool
	if fb, isFallback := c.next.(*FallbackExtractor); isFallback {
		out, fellBack, err = fb.extract(ctx, msg)
	} else {
		out, err = c.next.Extract(ctx, msg)
	}
	if err != nil {
		return nil, err
	}

	if fellBack {
		slog.Debug("not caching fallback signals", "key", key)
		return out, nil
	}

	if err := c.cache.Set(ctx, key, out); err != nil {
		slog.Warn("signal cache store failed", "key", key, "error", err)
	}

	return out, nil
}

// RedisCache stores signals as JSON in Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on an existing client. A zero ttl uses DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]scorer.UrgencySignal, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var out []scorer.UrgencySignal
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached signals: %w", err)
	}
	return out, true, nil
}

// Set implements Cache
func (r *RedisCache) Set(ctx context.Context, key string, signals []scorer.UrgencySignal) error {
	if signals == nil {
		signals = []scorer.UrgencySignal{}
	}
	b, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

type memoryEntry struct {
	signals []scorer.UrgencySignal
	expires time.Time
}

// MemoryCache is an in-process Cache with expiry
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache. A zero ttl uses DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Get implements Cache
func (m *MemoryCache) Get(_ context.Context, key string) ([]scorer.UrgencySignal, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.now().After(e.expires) {
		return nil, false, nil
	}
	return append([]scorer.UrgencySignal(nil), e.signals...), true, nil
}

// Set implements Cache
func (m *MemoryCache) Set(_ context.Context, key string, signals []scorer.UrgencySignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		signals: append([]scorer.UrgencySignal(nil), signals...),
		expires: m.now().Add(m.ttl),
	}
	return nil
}
