package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/mq"
	"go.uber.org/zap"
)

const (
	WebhookTypeDeliveryStatus = "delivery_status"
	WebhookTypeInboundMessage = "inbound_message"
	WebhookTypeBounce         = "bounce_notification"
)

const (
	WebhookProviderTwilio   = "twilio"
	WebhookProviderSendgrid = "sendgrid"
)

// DedupFilter remembers already-applied webhook events; provider redelivery
// of the same payload becomes a no-op. Forget releases a key whose event
// could not be applied, so the retry is not mistaken for a duplicate.
type DedupFilter interface {
	IsNew(ctx context.Context, eventKey string) (bool, error)
	Forget(ctx context.Context, eventKey string) error
}

type WebhookService interface {
	Process(ctx context.Context, cmd WebhookCommand) error
}

type webhook struct {
	messages MessageService
	dedup    DedupFilter
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

func NewWebhookService(messages MessageService, dedup DedupFilter, metrics *telemetry.Metrics,
	logger *zap.Logger) WebhookService {
	return &webhook{messages: messages, dedup: dedup, metrics: metrics, logger: logger}
}

// Process normalizes one provider webhook payload and applies it. Temporary
// errors are wrapped with mq.Temporary so the consumer can republish within
// the webhook attempt budget; everything else is permanent and acked.
func (w *webhook) Process(ctx context.Context, cmd WebhookCommand) error {
	err := w.process(ctx, cmd)

	if w.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		w.metrics.WebhooksTotal.WithLabelValues(cmd.Provider, cmd.Type, outcome).Inc()
	}

	return err
}

func (w *webhook) process(ctx context.Context, cmd WebhookCommand) error {
	switch cmd.Type {
	case WebhookTypeDeliveryStatus:
		return w.processDeliveryStatus(ctx, cmd)
	case WebhookTypeInboundMessage:
		return w.processInboundMessage(ctx, cmd)
	case WebhookTypeBounce:
		return w.processBounce(cmd)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownWebhookType, cmd.Type)
	}
}

func (w *webhook) processDeliveryStatus(ctx context.Context, cmd WebhookCommand) error {
	report, err := parseDeliveryStatus(cmd.Provider, cmd.Payload)
	if err != nil {
		return err
	}

	status, reason := normalizeDeliveryStatus(cmd.Provider, report.Status)
	if status == "" {
		w.logger.Debug("Ignoring intermediate delivery status",
			zap.String("provider", cmd.Provider),
			zap.String("providerMessageID", report.ProviderMessageID),
			zap.String("status", report.Status))
		return nil
	}

	eventKey := fmt.Sprintf("status:%s:%s", report.ProviderMessageID, status)

	fresh, err := w.dedup.IsNew(ctx, eventKey)
	if err != nil {
		return mq.Temporary(err)
	}
	if !fresh {
		w.logger.Debug("Duplicate delivery status webhook, skipping",
			zap.String("providerMessageID", report.ProviderMessageID))
		return nil
	}

	err = w.messages.ApplyDeliveryStatus(ctx, report.ProviderMessageID, status, reason)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			w.logger.Warn("Delivery status for unknown provider message id",
				zap.String("provider", cmd.Provider),
				zap.String("providerMessageID", report.ProviderMessageID))
			return nil
		}

		// the event was not applied: release the key or the retry is
		// dropped as a duplicate
		w.releaseEvent(ctx, eventKey)
		return mq.Temporary(err)
	}

	return nil
}

func (w *webhook) processInboundMessage(ctx context.Context, cmd WebhookCommand) error {
	inbound, err := parseInboundMessage(cmd.Provider, cmd.Payload)
	if err != nil {
		return err
	}

	eventKey := "inbound:" + inbound.ProviderMessageID

	fresh, err := w.dedup.IsNew(ctx, eventKey)
	if err != nil {
		return mq.Temporary(err)
	}
	if !fresh {
		w.logger.Debug("Duplicate inbound webhook, skipping",
			zap.String("providerMessageID", inbound.ProviderMessageID))
		return nil
	}

	messageID, err := w.messages.CreateInbound(ctx, inbound)
	if err != nil {
		w.releaseEvent(ctx, eventKey)
		return mq.Temporary(err)
	}

	w.logger.Info("Inbound message created from webhook",
		zap.String("messageID", messageID),
		zap.String("provider", cmd.Provider),
		zap.String("type", string(inbound.Type)))

	return nil
}

// releaseEvent undoes the seen marker for an event that failed to apply.
// If the release itself fails the retry will be dropped as a duplicate, so
// that is logged loudly.
func (w *webhook) releaseEvent(ctx context.Context, eventKey string) {
	if err := w.dedup.Forget(ctx, eventKey); err != nil {
		w.logger.Error("Failed to release dedup key, retry may be dropped as duplicate",
			zap.String("eventKey", eventKey),
			zap.Error(err))
	}
}

// Bounces are logged, not fatal: there is no bounce suppression list yet.
func (w *webhook) processBounce(cmd WebhookCommand) error {
	bounce, err := parseBounce(cmd.Provider, cmd.Payload)
	if err != nil {
		return err
	}

	w.logger.Warn("Bounce notification received",
		zap.String("provider", cmd.Provider),
		zap.String("providerMessageID", bounce.ProviderMessageID),
		zap.String("reason", bounce.Reason))

	return nil
}

// normalizeDeliveryStatus maps a provider status vocabulary onto the
// canonical set. An empty status means the report carries no terminal
// information and is ignored.
func normalizeDeliveryStatus(providerName, status string) (model.MessageStatus, string) {
	switch providerName {
	case WebhookProviderTwilio:
		switch status {
		case "delivered", "sent":
			return model.MessageStatusSent, ""
		case "undelivered", "failed":
			return model.MessageStatusFailed, "provider reported " + status
		}
	case WebhookProviderSendgrid:
		switch status {
		case "delivered":
			return model.MessageStatusSent, ""
		case "bounce", "dropped":
			return model.MessageStatusFailed, "provider reported " + status
		}
	}

	return "", ""
}
