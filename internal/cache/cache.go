// Package cache holds the in-process caches that sit in front of the
// aggregation engine.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is a keyed store of computed values.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)

	// DeletePrefix drops every key starting with prefix and reports how many went.
	DeletePrefix(prefix string) int

	// Purge empties the cache.
	Purge()

	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries out of registered caches.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner
}

func NewManager() *Manager {
	return &Manager{caches: make(map[string]Cleaner)}
}

// Register adds a cache under name; the name only shows up in logs.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Sweep runs one cleanup pass and returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		n := c.CleanExpired()
		if n > 0 {
			slog.Debug("Expired cache entries removed", "cache", name, "count", n)
		}
		total += n
	}
	return total
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}
