package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{fmt.Errorf("consume: %w", ErrChannelClosed), true},
		{errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isConnectionError(tt.err), "%v", tt.err)
	}
}

func TestBreaker(t *testing.T) {
	var b breaker
	assert.False(t, b.isCircuitOpen())

	for i := 0; i < maxFailures; i++ {
		b.recordFailure()
	}
	assert.True(t, b.isCircuitOpen())

	b.lastFailure = time.Now().Add(-openTimeout - time.Second)
	assert.False(t, b.isCircuitOpen())
	assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&b.state))

	// a failure while half-open reopens immediately
	b.recordFailure()
	assert.True(t, b.isCircuitOpen())

	b.recordSuccess()
	assert.False(t, b.isCircuitOpen())
	assert.Zero(t, atomic.LoadInt64(&b.failureCount))
}

func TestPublish_FailsFast(t *testing.T) {
	client := &Client{exchangeName: "x", queueName: "q"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.PublishEntriesReplaced(ctx, NewEntriesReplacedMessage(1, "alice"))
	assert.ErrorIs(t, err, context.Canceled)

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err = client.PublishEntriesReplaced(context.Background(), NewEntriesReplacedMessage(1, "alice"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

type fakeAck struct {
	acked, nacked int
	requeue       bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func delivery(ack *fakeAck, body string, redelivered bool) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: ack, Body: []byte(body), Redelivered: redelivered}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	logger := log.Discard()
	ok := func(context.Context, *EntriesReplacedMessage) error { return nil }
	fail := func(context.Context, *EntriesReplacedMessage) error { return errors.New("sheets down") }

	t.Run("success acks", func(t *testing.T) {
		ack := &fakeAck{}
		var got *EntriesReplacedMessage
		dispatch(ctx, delivery(ack, `{"count":3,"replacedBy":"alice"}`, false),
			func(_ context.Context, m *EntriesReplacedMessage) error { got = m; return nil }, logger)
		assert.Equal(t, 1, ack.acked)
		require.NotNil(t, got)
		assert.Equal(t, 3, got.Count)
		assert.Equal(t, "alice", got.ReplacedBy)
	})

	t.Run("bad body dropped", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, delivery(ack, `{"count":"many"}`, false), ok, logger)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("first failure requeued", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, delivery(ack, `{"count":1}`, false), fail, logger)
		assert.Equal(t, 1, ack.nacked)
		assert.True(t, ack.requeue)
	})

	t.Run("redelivered failure dropped", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(ctx, delivery(ack, `{"count":1}`, true), fail, logger)
		assert.Equal(t, 1, ack.nacked)
		assert.False(t, ack.requeue)
	})
}

func TestConsume_StopsOnClosedChannelAndContext(t *testing.T) {
	logger := log.Discard()
	handler := func(context.Context, *EntriesReplacedMessage) error { return nil }

	ch := make(chan amqp091.Delivery)
	close(ch)
	assert.ErrorIs(t, consume(context.Background(), ch, handler, logger), ErrChannelClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, consume(ctx, make(chan amqp091.Delivery), handler, logger), context.Canceled)
}

func TestConsumeWithReconnect_HonoursContextWhileBackingOff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var dials int32
	err := ConsumeWithReconnect(ctx, func() (*Client, error) {
		atomic.AddInt32(&dials, 1)
		return nil, errors.New("connection refused")
	}, func(context.Context, *EntriesReplacedMessage) error { return nil }, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestEntriesReplacedMessage(t *testing.T) {
	msg := NewEntriesReplacedMessage(2, "bob")
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	_, err := EntriesReplacedMessageFromJSON([]byte(`{"count":-1}`))
	assert.Error(t, err)
}
