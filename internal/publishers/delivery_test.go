package publishers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaymsg/gateway/internal/mocks"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/publishers"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func dueJob(id int64, messageID string) model.DeliveryJob {
	return model.DeliveryJob{ID: id, MessageID: messageID, Queue: model.QueueDeliverySend}
}

func TestDeliveryPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes due jobs and marks them", func(t *testing.T) {
		jobRepo := &mocks.DeliveryJobRepository{}
		publisher := &mocks.Publisher{}

		p := publishers.NewDeliveryPublisher(jobRepo, publisher, 100, zap.NewNop())

		jobRepo.On("FindDue", mock.AnythingOfType("time.Time"), 100).
			Return([]model.DeliveryJob{dueJob(1, "msg-a"), dueJob(2, "msg-b")}, nil)

		publisher.On("Publish", ctx, "", model.QueueDeliverySend,
			mock.MatchedBy(func(body []byte) bool {
				var cmd service.SendMessageCommand
				return json.Unmarshal(body, &cmd) == nil && cmd.MessageID != ""
			})).Return(nil).Twice()

		jobRepo.On("MarkPublished", ctx, int64(1), mock.AnythingOfType("time.Time")).Return(nil)
		jobRepo.On("MarkPublished", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(nil)

		err := p.Publish(ctx)

		assert.NoError(t, err)
		jobRepo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("nothing due is a no-op", func(t *testing.T) {
		jobRepo := &mocks.DeliveryJobRepository{}
		publisher := &mocks.Publisher{}

		p := publishers.NewDeliveryPublisher(jobRepo, publisher, 100, zap.NewNop())

		jobRepo.On("FindDue", mock.AnythingOfType("time.Time"), 100).
			Return([]model.DeliveryJob{}, nil)

		err := p.Publish(ctx)

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure leaves the job unmarked", func(t *testing.T) {
		jobRepo := &mocks.DeliveryJobRepository{}
		publisher := &mocks.Publisher{}

		p := publishers.NewDeliveryPublisher(jobRepo, publisher, 100, zap.NewNop())

		jobRepo.On("FindDue", mock.AnythingOfType("time.Time"), 100).
			Return([]model.DeliveryJob{dueJob(1, "msg-a")}, nil)

		publisher.On("Publish", ctx, "", model.QueueDeliverySend, mock.Anything).
			Return(errors.New("broker down"))

		err := p.Publish(ctx)

		assert.NoError(t, err)
		jobRepo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repository error surfaces", func(t *testing.T) {
		jobRepo := &mocks.DeliveryJobRepository{}

		p := publishers.NewDeliveryPublisher(jobRepo, &mocks.Publisher{}, 100, zap.NewNop())

		jobRepo.On("FindDue", mock.AnythingOfType("time.Time"), 100).
			Return(nil, errors.New("connection refused"))

		err := p.Publish(ctx)

		assert.Error(t, err)
	})
}
