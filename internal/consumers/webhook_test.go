package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaymsg/gateway/internal/mocks"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/pkg/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func webhookBody(t *testing.T, cmd service.WebhookCommand) []byte {
	t.Helper()

	body, err := json.Marshal(cmd)
	assert.NoError(t, err)

	return body
}

func TestWebhookConsumer_HandleMessage(t *testing.T) {
	ctx := context.Background()

	cmd := service.WebhookCommand{
		Type:     service.WebhookTypeDeliveryStatus,
		Provider: "twilio",
		Payload:  json.RawMessage(`{"MessageSid":"SM1","MessageStatus":"delivered"}`),
	}

	t.Run("successful processing acks", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		publisher := &mocks.Publisher{}
		consumer := &webhookConsumer{service: svc, publisher: publisher, logger: zap.NewNop()}

		svc.On("Process", ctx, mock.Anything).Return(nil)

		err := consumer.handleMessage(ctx, webhookBody(t, cmd))

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		consumer := &webhookConsumer{service: svc, publisher: &mocks.Publisher{}, logger: zap.NewNop()}

		err := consumer.handleMessage(ctx, []byte("{not json"))

		assert.NoError(t, err)
		svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})

	t.Run("permanent failure is dropped without republish", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		publisher := &mocks.Publisher{}
		consumer := &webhookConsumer{service: svc, publisher: publisher, logger: zap.NewNop()}

		svc.On("Process", ctx, mock.Anything).Return(service.ErrUnknownWebhookType)

		err := consumer.handleMessage(ctx, webhookBody(t, cmd))

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("temporary failure republishes with bumped attempt", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		publisher := &mocks.Publisher{}
		consumer := &webhookConsumer{service: svc, publisher: publisher, logger: zap.NewNop()}

		svc.On("Process", ctx, mock.Anything).Return(mq.Temporary(errors.New("db down")))

		publisher.On("Publish", ctx, "", model.QueueWebhookIn,
			mock.MatchedBy(func(body []byte) bool {
				var republished service.WebhookCommand
				return json.Unmarshal(body, &republished) == nil && republished.Attempt == 1
			})).Return(nil)

		err := consumer.handleMessage(ctx, webhookBody(t, cmd))

		assert.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("attempt budget exhausted drops the event", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		publisher := &mocks.Publisher{}
		consumer := &webhookConsumer{service: svc, publisher: publisher, logger: zap.NewNop()}

		exhausted := cmd
		exhausted.Attempt = model.WebhookMaxAttempts - 1

		svc.On("Process", ctx, mock.Anything).Return(mq.Temporary(errors.New("db down")))

		err := consumer.handleMessage(ctx, webhookBody(t, exhausted))

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("republish failure requeues the original", func(t *testing.T) {
		svc := &mocks.WebhookService{}
		publisher := &mocks.Publisher{}
		consumer := &webhookConsumer{service: svc, publisher: publisher, logger: zap.NewNop()}

		svc.On("Process", ctx, mock.Anything).Return(mq.Temporary(errors.New("db down")))
		publisher.On("Publish", ctx, "", model.QueueWebhookIn, mock.Anything).
			Return(errors.New("broker down"))

		err := consumer.handleMessage(ctx, webhookBody(t, cmd))

		var te mq.TempError
		assert.ErrorAs(t, err, &te)
	})
}
