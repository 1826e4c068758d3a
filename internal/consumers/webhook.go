package consumers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/pkg/mq"
	"go.uber.org/zap"
)

type WebhookConsumer interface {
	Consume(ctx context.Context) error
}

type webhookConsumer struct {
	service   service.WebhookService
	consumer  mq.Consumer
	publisher mq.Publisher
	logger    *zap.Logger
}

func NewWebhookConsumer(svc service.WebhookService, consumer mq.Consumer, publisher mq.Publisher,
	logger *zap.Logger) WebhookConsumer {
	return &webhookConsumer{service: svc, consumer: consumer, publisher: publisher, logger: logger}
}

func (w *webhookConsumer) Consume(ctx context.Context) error {
	return w.consumer.Consume(ctx, 1, model.QueueWebhookIn, w.handleMessage)
}

// handleMessage applies one webhook event. Transient failures are republished
// with a bumped attempt counter instead of nacked, so the retry budget is
// enforced even across broker redeliveries.
func (w *webhookConsumer) handleMessage(ctx context.Context, body []byte) error {
	var cmd service.WebhookCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		w.logger.Warn("invalid webhook command", zap.Error(err))
		return nil
	}

	err := w.service.Process(ctx, cmd)
	if err == nil {
		return nil
	}

	var te mq.TempError
	if !errors.As(err, &te) {
		w.logger.Warn("Dropping webhook event after permanent failure",
			zap.String("type", cmd.Type),
			zap.String("provider", cmd.Provider),
			zap.Error(err))
		return nil
	}

	return w.retry(ctx, cmd, err)
}

func (w *webhookConsumer) retry(ctx context.Context, cmd service.WebhookCommand, cause error) error {
	cmd.Attempt++
	if cmd.Attempt >= model.WebhookMaxAttempts {
		w.logger.Error("Dropping webhook event after exhausting retries",
			zap.String("type", cmd.Type),
			zap.String("provider", cmd.Provider),
			zap.Int("attempts", cmd.Attempt),
			zap.Error(cause))
		return nil
	}

	body, _ := json.Marshal(cmd)
	if err := w.publisher.Publish(ctx, "", model.QueueWebhookIn, body); err != nil {
		w.logger.Error("Failed to republish webhook event", zap.Error(err))
		return mq.Temporary(err)
	}

	w.logger.Warn("Webhook event republished for retry",
		zap.String("type", cmd.Type),
		zap.String("provider", cmd.Provider),
		zap.Int("attempt", cmd.Attempt),
		zap.Error(cause))

	return nil
}
