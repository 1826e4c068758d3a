package mq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Config struct {
	URL string `mapstructure:"url"`
}

const (
	dialAttempts = 3
	dialBackoff  = 2 * time.Second
)

// Broker owns the AMQP connection. Publishers and consumers each get their
// own channel; channels are not safe for concurrent use.
type Broker struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

func Connect(cfg Config, logger *zap.Logger) (*Broker, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; ; attempt++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			return &Broker{conn: conn, logger: logger}, nil
		}

		if attempt == dialAttempts {
			break
		}

		logger.Warn("Broker dial failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(dialBackoff)
	}

	return nil, fmt.Errorf("connect to broker: %w", err)
}

// DeclareQueues declares every queue as durable. Declaration is idempotent,
// so each binary declares the queues it touches on startup.
func (b *Broker) DeclareQueues(names ...string) error {
	ch, err := b.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, name := range names {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	b.logger.Info("Queues declared", zap.Strings("queues", names))

	return nil
}

func (b *Broker) Publisher() (Publisher, error) {
	ch, err := b.channel()
	if err != nil {
		return nil, err
	}

	return &channelPublisher{ch: ch}, nil
}

func (b *Broker) Consumer() (Consumer, error) {
	ch, err := b.channel()
	if err != nil {
		return nil, err
	}

	return &channelConsumer{ch: ch}, nil
}

func (b *Broker) Close() error {
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}

	return b.conn.Close()
}

func (b *Broker) channel() (*amqp.Channel, error) {
	if b.conn == nil || b.conn.IsClosed() {
		return nil, fmt.Errorf("broker connection is closed")
	}

	return b.conn.Channel()
}
