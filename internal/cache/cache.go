package cache

import (
	"context"
	"sync"
	"time"

	"budget/internal/log"
)

// Cache is a keyed store with expiry. Misses and backend failures both
// report ok=false; callers fall back to the source of truth.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Delete(ctx context.Context, key string)
}

// Stats are hit/miss counters exposed on /metrics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// StatsReporter is implemented by caches that count their traffic.
type StatsReporter interface {
	Stats() Stats
}

// Cleaner is implemented by caches that need expired items swept.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval.
type Manager struct {
	caches   []Cleaner
	logger   *log.Logger
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup runs the sweeper until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cleaned := 0
				for _, c := range m.caches {
					cleaned += c.CleanExpired()
				}
				if cleaned > 0 {
					m.logger.Debug("Expired cache items removed", "count", cleaned)
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sweeper. Safe to call more than once, and before StartCleanup.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	select {
	case <-m.done:
	case <-time.After(time.Second):
	}
}
