package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the per-client token bucket.
type Config struct {
	RequestsPerMinute int
	Burst             int
	// CleanupInterval is how often idle clients are evicted.
	CleanupInterval time.Duration
	// IdleTTL is how long a client may stay silent before eviction.
	IdleTTL time.Duration
}

// DefaultConfig matches the auth endpoint defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 20,
		Burst:             5,
		CleanupInterval:   time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	hits    atomic.Int64
	allowed atomic.Int64

	stop         chan struct{}
	shutdownOnce sync.Once
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	TotalHits    int64
	TotalAllowed int64
	ClientCount  int64
}

// NewLimiter starts a limiter and its cleanup loop. Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

// Allow reports whether a request from ip may proceed.
func (rl *Limiter) Allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	ok = c.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	if !ok {
		rl.hits.Add(1)
		return false
	}
	rl.allowed.Add(1)
	return true
}

func (rl *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Cleanup evicts clients idle for longer than the configured TTL.
func (rl *Limiter) Cleanup() {
	cutoff := rl.now().Add(-rl.idleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// ActiveClients returns the number of tracked clients.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() { close(rl.stop) })
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:    rl.hits.Load(),
		TotalAllowed: rl.allowed.Load(),
		ClientCount:  int64(rl.ActiveClients()),
	}
}

// retryAfter is the wait for one token, rounded up to whole seconds.
func (rl *Limiter) retryAfter() string {
	secs := int((time.Duration(float64(time.Second) / float64(rl.limit)) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Middleware rejects requests over the limit. onLimit may be nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", rl.retryAfter())
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Too many requests", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
