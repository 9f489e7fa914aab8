package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/logger"
)

const (
	prefetchCount = 50
	maxBackoff    = 30 * time.Second
)

// Consumer reads booking events from the queue and hands each one to a sink,
// normally the local websocket hub.
type Consumer struct {
	url   string
	queue string
	sink  booking.Publisher
	log   *logger.Logger
}

func NewConsumer(url, queue string, sink booking.Publisher, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{url: url, queue: queue, sink: sink, log: log}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting with
// exponential backoff. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = c.log.WithField(ctx, "queue", c.queue)
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn(ctx, fmt.Sprintf("booking consumer: dial failed, retrying in %s", backoff), err)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn(ctx, "booking consumer: consume loop ended, reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		c.log.Warn(ctx, "booking consumer: set qos failed", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.log.Info(ctx, "booking consumer: listening")
	for d := range msgs {
		if err := c.handleMessage(ctx, d.Type, d.Body); err != nil {
			c.log.Warn(ctx, "booking consumer: message rejected", err)
			// never requeue a poison message
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handleMessage(ctx context.Context, msgType string, body []byte) error {
	ev, err := decodeBookingCreated(msgType, body)
	if err != nil {
		return err
	}
	if err := c.sink.PublishBookingCreated(ctx, ev); err != nil {
		return fmt.Errorf("deliver booking %d: %w", ev.BookingID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
