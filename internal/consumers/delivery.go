package consumers

import (
	"context"
	"encoding/json"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/pkg/mq"
	"go.uber.org/zap"
)

type DeliveryConsumer interface {
	Consume(ctx context.Context) error
}

type deliveryConsumer struct {
	service  service.DeliveryService
	consumer mq.Consumer
	logger   *zap.Logger
}

func NewDeliveryConsumer(svc service.DeliveryService, consumer mq.Consumer, logger *zap.Logger) DeliveryConsumer {
	return &deliveryConsumer{service: svc, consumer: consumer, logger: logger}
}

func (d *deliveryConsumer) Consume(ctx context.Context) error {
	return d.consumer.Consume(ctx, 1, model.QueueDeliverySend, d.handleMessage)
}

func (d *deliveryConsumer) handleMessage(ctx context.Context, body []byte) error {
	d.logger.Info("received delivery command", zap.ByteString("body", body))

	var cmd service.SendMessageCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		d.logger.Warn("invalid delivery command", zap.Error(err))
		return err
	}

	return d.service.ProcessDelivery(ctx, cmd)
}
