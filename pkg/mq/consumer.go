package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handle processes one delivery. A nil return acks the message; an error
// wrapped with Temporary nacks it back onto the queue, anything else drops it.
type Handle func(ctx context.Context, body []byte) error

type Consumer interface {
	Consume(ctx context.Context, prefetch int, queue string, handler Handle) error
}

type channelConsumer struct {
	ch *amqp.Channel
}

func (c *channelConsumer) Consume(ctx context.Context, prefetch int, queue string, handler Handle) error {
	if prefetch < 1 {
		prefetch = 1
	}

	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	tag := "gateway-" + queue
	deliveries, err := c.ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.ch.Cancel(tag, false)
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			settle(d, handler(ctx, d.Body))
		}
	}
}

func settle(d amqp.Delivery, err error) {
	if err == nil {
		_ = d.Ack(false)
		return
	}

	var te TempError
	requeue := errors.As(err, &te) && te.Temporary()
	_ = d.Nack(false, requeue)
}
