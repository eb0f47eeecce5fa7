package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process LRU with per-entry expiry. Entries hold the
// encoded bytes so callers never share mutable values.
type MemoryCache struct {
	mu         sync.Mutex
	ll         *list.List
	items      map[string]*list.Element
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
}

type memEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

var _ Service = (*MemoryCache)(nil)

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration.
type MemoryConfig struct {
	MaxSize    int
	DefaultTTL time.Duration
	Now        func() time.Time
}

// WithMemoryMaxSize bounds the number of entries; the least recently used
// entry is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxSize = size }
}

// WithMemoryTTL sets the expiration used when Set is called without one.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.DefaultTTL = ttl }
}

// WithMemoryClock replaces time.Now, for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryConfig) { c.Now = now }
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		Now:     time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}

	return &MemoryCache{
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = mc.now().Add(expiration)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memEntry)
		e.data = data
		e.expiresAt = expiresAt
		mc.ll.MoveToFront(el)
		return nil
	}

	mc.items[key] = mc.ll.PushFront(&memEntry{key: key, data: data, expiresAt: expiresAt})
	for mc.ll.Len() > mc.maxSize {
		mc.removeElement(mc.ll.Back())
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.items[key]
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if mc.expired(e) {
		mc.removeElement(el)
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.ll.MoveToFront(el)
	data := e.data
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		el, ok := mc.items[key]
		if !ok || mc.expired(el.Value.(*memEntry)) {
			return false, nil
		}
	}
	return true, nil
}

// Len reports the number of entries, expired ones included until touched.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.ll.Len()
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.ll.Init()
	mc.items = make(map[string]*list.Element)
	return nil
}

func (mc *MemoryCache) expired(e *memEntry) bool {
	return !e.expiresAt.IsZero() && !mc.now().Before(e.expiresAt)
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	mc.ll.Remove(el)
	delete(mc.items, el.Value.(*memEntry).key)
}
