// Package cache provides an in-process LRU cache with TTL expiry, and a
// manager that sweeps expired entries out of several caches on a timer.
package cache

import (
	"context"
	"sync"
	"time"

	"timetracker/internal/log"
)

// Cleaner is a cache that can drop its expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

type registered struct {
	name string
	c    Cleaner
}

// Manager sweeps every registered cache until stopped.
type Manager struct {
	mu     sync.Mutex
	caches []registered
	logger *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds c to every following sweep; name only labels log records.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, registered{name: name, c: c})
}

// StartCleanup sweeps every interval until ctx ends or Stop is called.
// Calling it again while running does nothing.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanNow()
			}
		}
	}(m.done)
}

// CleanNow runs one sweep and returns how many entries it removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]registered(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, r := range caches {
		if n := r.c.CleanExpired(); n > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", r.name, "count", n)
			total += n
		}
	}
	return total
}

// Stop ends the sweep loop and waits for it. It is safe to call more than
// once, or without StartCleanup.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
