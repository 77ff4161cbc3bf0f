package videos

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	preview Preview
	expires time.Time
}

// CachingProber wraps another Prober with a TTL-based in-memory cache.
// Degraded previews are not cached so a later paste retries the lookup.
type CachingProber struct {
	base Prober
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingProber returns a Prober that caches successful previews for ttl.
func NewCachingProber(base Prober, ttl time.Duration) *CachingProber {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingProber{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// Probe returns a cached preview when available, otherwise it delegates to
// the underlying prober and stores a successful result.
func (c *CachingProber) Probe(ctx context.Context, rawURL string) Preview {
	if c == nil || c.base == nil {
		return Preview{}
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[rawURL]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		meta := *entry.preview.Metadata
		return Preview{Metadata: &meta}
	}

	preview := c.base.Probe(ctx, rawURL)
	if preview.Metadata == nil || preview.Degraded() {
		return preview
	}

	c.mu.Lock()
	c.items[rawURL] = cacheEntry{preview: preview, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return preview
}
