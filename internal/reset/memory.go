package reset

import (
	"context"
	"time"

	"fintrack/internal/cache"
)

// MemoryBackend keeps tokens in process. It is only correct for a single
// instance; run several replicas against the SQLite backend instead.
type MemoryBackend struct {
	entries *cache.LRUCache[Record]
}

// NewMemoryBackend builds a backend whose entries expire after ttl as seen
// by now. Pass the same ttl and clock as the Store.
func NewMemoryBackend(ttl time.Duration, now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{entries: cache.NewLRUCache[Record](0, ttl, cache.WithClock(now))}
}

func (b *MemoryBackend) Put(_ context.Context, rec Record, _ time.Time) error {
	b.entries.Set(rec.Key, rec)
	return nil
}

func (b *MemoryBackend) Take(_ context.Context, key string, now time.Time) (Record, bool, error) {
	rec, ok := b.entries.Take(key)
	if !ok || !now.Before(rec.ExpiresAt) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// CleanExpired drops expired entries. It lets a cache.Manager sweep the
// backend; lookups never depend on it.
func (b *MemoryBackend) CleanExpired() int {
	return b.entries.CleanExpired()
}

func (b *MemoryBackend) Len() int {
	return b.entries.Size()
}
