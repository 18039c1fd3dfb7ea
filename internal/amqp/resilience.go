package amqp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

// ErrCircuitOpen is returned by publish calls while the broker is considered down.
var ErrCircuitOpen = errors.New("amqp circuit breaker is open")

// breaker stops publishers from waiting on a broker that keeps failing.
type breaker struct {
	failureCount int64
	state        int32
	mu           sync.Mutex
	lastFailure  time.Time
}

func (b *breaker) isCircuitOpen() bool {
	if atomic.LoadInt32(&b.state) != StateOpen {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if time.Since(b.lastFailure) > openTimeout {
		atomic.StoreInt32(&b.state, StateHalfOpen)
		return false
	}
	return true
}

func (b *breaker) recordSuccess() {
	atomic.StoreInt64(&b.failureCount, 0)
	atomic.StoreInt32(&b.state, StateClosed)
}

func (b *breaker) recordFailure() {
	n := atomic.AddInt64(&b.failureCount, 1)
	b.mu.Lock()
	b.lastFailure = time.Now()
	b.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&b.state) == StateHalfOpen {
		atomic.StoreInt32(&b.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "use of closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Dialer opens a fresh client.
type Dialer func() (*Client, error)

// ConsumeWithReconnect keeps a consumer running across broker restarts,
// backing off between failed dials. It returns when ctx is done or on an
// error that is not connection related.
func ConsumeWithReconnect(ctx context.Context, dial Dialer, handler Handler, logger *log.Logger) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)

	attempt := 0
	for {
		client, err := dial()
		if err != nil {
			wait := exponentialBackoff(attempt)
			attempt++
			logger.WarnContext(ctx, "AMQP dial failed, retrying", log.FieldError, err, "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0

		err = client.ConsumeEntriesReplaced(ctx, handler)
		_ = client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}
		logger.WarnContext(ctx, "AMQP connection lost, reconnecting", log.FieldError, err)
	}
}
