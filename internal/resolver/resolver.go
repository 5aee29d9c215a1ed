// Package resolver looks up chat display names for log lines and outcome
// events. Lookups are best-effort: callers substitute a placeholder on error.
package resolver

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Placeholder is used when a chat name cannot be resolved.
const Placeholder = "Unknown Source"

type Resolver interface {
	Resolve(ctx context.Context, chatID int64) (string, error)
}

// Cache stores resolved names. A miss is ("", false, nil).
type Cache interface {
	GetName(ctx context.Context, chatID int64) (string, bool, error)
	SetName(ctx context.Context, chatID int64, name string, ttl time.Duration) error
}

// Cached wraps a Resolver with a Cache. Cache errors are logged and treated as
// misses so a broken cache never fails a lookup on its own.
type Cached struct {
	next  Resolver
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCached(next Resolver, cache Cache, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "resolver").Logger(),
	}
}

func (c *Cached) Resolve(ctx context.Context, chatID int64) (string, error) {
	name, ok, err := c.cache.GetName(ctx, chatID)
	if err != nil {
		c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("name cache read failed")
	}
	if ok {
		return name, nil
	}

	name, err = c.next.Resolve(ctx, chatID)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetName(ctx, chatID, name, c.ttl); err != nil {
		c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("name cache write failed")
	}
	return name, nil
}

type entry struct {
	name    string
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[int64]entry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[int64]entry), now: time.Now}
}

func (m *MemoryCache) GetName(_ context.Context, chatID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[chatID]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, chatID)
		return "", false, nil
	}
	return e.name, true, nil
}

func (m *MemoryCache) SetName(_ context.Context, chatID int64, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{name: name}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[chatID] = e
	return nil
}

// Key formats the cache key used by shared caches.
func Key(chatID int64) string {
	return "chatname:" + strconv.FormatInt(chatID, 10)
}
