package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache guarded by a single mutex. Entries are
// small and operations O(1), so a coarse lock is sufficient. Expired
// entries are removed lazily on read and by a periodic sweep that bounds
// growth from keys never read again after expiry.
type Memory struct {
	mu      sync.Mutex
	items   map[string]entry
	logger  *zap.Logger
	stop    chan struct{}
	stopped sync.Once
}

// NewMemory creates a memory cache and starts its sweep loop. Close stops
// the sweeper.
func NewMemory(sweepInterval time.Duration, logger *zap.Logger) *Memory {
	m := &Memory{
		items:  make(map[string]entry),
		logger: logger,
		stop:   make(chan struct{}),
	}
	go m.sweepLoop(sweepInterval)
	return m
}

// Get returns the value for key if present and unexpired. An expired
// entry is deleted on the spot.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !time.Now().Before(e.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key with the given ttl, overwriting any
// existing entry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Invalidate removes key regardless of expiry.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Close stops the background sweep loop.
func (m *Memory) Close() error {
	m.stopped.Do(func() { close(m.stop) })
	return nil
}

// Len reports the number of physically stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep evicts every entry whose expiry has passed.
func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	removed := 0
	for key, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 && m.logger != nil {
		m.logger.Debug("cache sweep removed expired entries", zap.Int("count", removed))
	}
}
