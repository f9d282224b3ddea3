package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
	written   time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxEntries bounds the cache; the oldest write is evicted first.
func WithMemoryMaxEntries(n int) MemoryOption {
	return func(m *MemoryCache) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithMemorySweep sets how often expired entries are removed.
func WithMemorySweep(every time.Duration) MemoryOption {
	return func(m *MemoryCache) {
		if every > 0 {
			m.sweepEvery = every
		}
	}
}

// MemoryCache is the in-process Service used when Redis is disabled.
// Contents are lost on restart.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	sweepEvery time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: 1024,
		sweepEvery: time.Minute,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweep()
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !e.live(time.Now()) {
		return ErrCacheMiss
	}
	return unmarshal(e.data, dest)
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	now := time.Now()
	e := entry{data: append([]byte(nil), data...), written: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }
func (m *MemoryCache) Backend() string            { return "memory" }

// Len counts live entries.
func (m *MemoryCache) Len() int {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if e.live(now) {
			n++
		}
	}
	return n
}

func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// evictOldest must be called with mu held.
func (m *MemoryCache) evictOldest() {
	var victim string
	var oldest time.Time
	for k, e := range m.entries {
		if victim == "" || e.written.Before(oldest) {
			victim, oldest = k, e.written
		}
	}
	delete(m.entries, victim)
}

func (m *MemoryCache) sweep() {
	t := time.NewTicker(m.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.live(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
