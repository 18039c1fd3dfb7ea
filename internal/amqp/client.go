package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"budget/internal/log"
)

const publishTimeout = 5 * time.Second

// ErrChannelClosed is returned by Consume when the broker closes the delivery channel.
var ErrChannelClosed = errors.New("amqp delivery channel closed")

type Client struct {
	breaker
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *log.Logger
}

// NewClient dials the broker and declares a durable direct exchange with
// one queue bound under its own name.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return client, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	// one export at a time
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishEntriesReplaced sends a persistent entries-replaced event.
// Calls fail fast with ErrCircuitOpen after repeated broker failures.
func (c *Client) PublishEntriesReplaced(ctx context.Context, msg *EntriesReplacedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}
	if c.channel == nil {
		c.recordFailure()
		return errors.New("amqp channel not open")
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.InfoContext(ctx, "Published entries replaced message",
		log.NewFields().WithEntriesCount(msg.Count).WithOperation(log.OpPublish).
			WithUser("", msg.ReplacedBy).ToSlice()...)
	return nil
}

// Handler processes one decoded message.
type Handler func(context.Context, *EntriesReplacedMessage) error

// ConsumeEntriesReplaced blocks delivering messages to handler until ctx is
// done or the broker closes the channel.
func (c *Client) ConsumeEntriesReplaced(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming entries replaced messages", "queue", c.queueName)
	return consume(ctx, deliveries, handler, c.logger)
}

func consume(ctx context.Context, deliveries <-chan amqp091.Delivery, handler Handler, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrChannelClosed
			}
			dispatch(ctx, d, handler, logger)
		}
	}
}

// dispatch acks on success. A failed handler is requeued once; a second
// failure, or an undecodable body, drops the message.
func dispatch(ctx context.Context, d amqp091.Delivery, handler Handler, logger *log.Logger) {
	msg, err := EntriesReplacedMessageFromJSON(d.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping undecodable message", log.FieldError, err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !d.Redelivered
		fields := log.NewFields().WithError(err).WithOperation(log.OpConsume).WithEntriesCount(msg.Count)
		fields["requeue"] = requeue
		logger.ErrorContext(ctx, "Failed to handle message", fields.ToSlice()...)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
	logger.InfoContext(ctx, "Processed entries replaced message",
		log.NewFields().WithOperation(log.OpConsume).WithEntriesCount(msg.Count).ToSlice()...)
}

func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
