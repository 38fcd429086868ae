package facetcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// Memory is a bounded in-process byte store with per-entry TTL.
// When full, the entry written longest ago is evicted.
type Memory struct {
	mu         sync.Mutex
	items      map[string]memItem
	maxEntries int
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type memItem struct {
	value     []byte
	writtenAt time.Time
	expiresAt time.Time
}

// NewMemory creates a store holding at most maxEntries values.
// A positive cleanupInterval starts a goroutine that drops expired entries; stop it with Close.
func NewMemory(maxEntries int, cleanupInterval time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	m := &Memory{
		items:      make(map[string]memItem),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanup(cleanupInterval)
	}
	return m
}

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Get returns a copy of the stored value or db.ErrKeyNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

// SetWithTTL stores a copy of value. The lifetime restarts on every write.
func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.evictLocked(now)
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	m.items[key] = memItem{value: cp, writtenAt: now, expiresAt: now.Add(ttl)}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// evictLocked drops expired entries, then the oldest write if still full.
func (m *Memory) evictLocked(now time.Time) {
	for k, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, k)
		}
	}
	if len(m.items) < m.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, it := range m.items {
		if oldestKey == "" || it.writtenAt.Before(oldest) {
			oldestKey, oldest = k, it.writtenAt
		}
	}
	delete(m.items, oldestKey)
}

func (m *Memory) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for k, it := range m.items {
				if !now.Before(it.expiresAt) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
