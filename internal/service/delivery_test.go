package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaymsg/gateway/internal/mocks"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func queuedMessage(id string) *model.Message {
	queuedAt := time.Now().Add(-time.Second)
	return &model.Message{
		ID:          id,
		Type:        model.MessageTypeSMS,
		Direction:   model.DirectionOutbound,
		ToAddress:   "+15551234567",
		FromAddress: "+15557654321",
		Body:        "hello",
		Status:      model.MessageStatusQueued,
		QueuedAt:    &queuedAt,
		CreatedAt:   time.Now().Add(-2 * time.Second),
	}
}

func newDeliveryService(msgRepo *mocks.MessageRepository, attRepo *mocks.AttachmentRepository,
	jobRepo *mocks.DeliveryJobRepository, prov *mocks.ProviderService) service.DeliveryService {
	return service.NewDeliveryService(msgRepo, attRepo, jobRepo, prov,
		telemetry.NewAggregator(nil), zap.NewNop())
}

func TestDelivery_ProcessDelivery(t *testing.T) {
	cmd := service.SendMessageCommand{MessageID: "msg-1", JobID: 7}

	t.Run("successful delivery marks message sent", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, attRepo, jobRepo, prov)

		msg := queuedMessage("msg-1")

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)

		msgRepo.On("UpdateForProcessing", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.ID == "msg-1" &&
					m.Status == model.MessageStatusProcessing &&
					m.AttemptCount == 1 &&
					m.LastAttemptAt != nil
			}), mock.AnythingOfType("time.Time")).Return(nil)

		prov.On("SendWithRetry", mock.Anything, mock.MatchedBy(func(req provider.Request) bool {
			return req.Type == provider.TypeSMS &&
				len(req.To) == 1 && req.To[0] == "+15551234567" &&
				req.Body == "hello"
		})).Return(provider.Result{MessageID: "SM123", Provider: "twilio"}, nil)

		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.ID == "msg-1" &&
					m.Status == model.MessageStatusSent &&
					m.SentAt != nil &&
					*m.ProviderMessageID == "SM123" &&
					*m.Provider == "twilio"
			}), model.MessageStatusProcessing).Return(nil)

		jobRepo.On("Update", mock.Anything, mock.MatchedBy(func(job *model.DeliveryJob) bool {
			return job.ID == 7 && job.LastError == nil
		})).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		msgRepo.AssertExpectations(t)
		prov.AssertExpectations(t)
		jobRepo.AssertExpectations(t)
	})

	t.Run("provider failure marks message failed", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, attRepo, jobRepo, prov)

		msg := queuedMessage("msg-1")
		processing := queuedMessage("msg-1")
		processing.Status = model.MessageStatusProcessing
		processing.AttemptCount = 1

		msgRepo.On("GetByID", "msg-1").Return(msg, nil).Once()
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(nil)

		prov.On("SendWithRetry", mock.Anything, mock.Anything).
			Return(provider.Result{}, errors.New("REJECTED"))

		msgRepo.On("GetByID", "msg-1").Return(processing, nil).Once()
		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.Status == model.MessageStatusFailed &&
					m.FailedAt != nil &&
					*m.FailureReason == "REJECTED"
			}), model.MessageStatusProcessing).Return(nil)

		jobRepo.On("Update", mock.Anything, mock.MatchedBy(func(job *model.DeliveryJob) bool {
			return job.ID == 7 && job.LastError != nil && *job.LastError == "REJECTED"
		})).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		msgRepo.AssertExpectations(t)
		jobRepo.AssertExpectations(t)
	})

	t.Run("terminal message is acked without side effects", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{}, &mocks.DeliveryJobRepository{}, prov)

		msg := queuedMessage("msg-1")
		msg.Status = model.MessageStatusSent

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("message claimed by another worker is acked", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{}, &mocks.DeliveryJobRepository{}, prov)

		msgRepo.On("GetByID", "msg-1").Return(queuedMessage("msg-1"), nil)
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(repository.ErrNoRowsAffected)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("fresh processing message is left to its worker", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{}, &mocks.DeliveryJobRepository{}, prov)

		msg := queuedMessage("msg-1")
		msg.Status = model.MessageStatusProcessing
		recent := time.Now().Add(-time.Second)
		msg.LastAttemptAt = &recent

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("stale processing message is reclaimed", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, attRepo, jobRepo, prov)

		msg := queuedMessage("msg-1")
		msg.Status = model.MessageStatusProcessing
		msg.AttemptCount = 1
		stale := time.Now().Add(-10 * time.Minute)
		msg.LastAttemptAt = &stale

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)

		// reclaim keeps the attempt count: the crashed attempt already burned it
		msgRepo.On("UpdateForProcessing", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool { return m.AttemptCount == 1 }),
			mock.AnythingOfType("time.Time")).Return(nil)

		prov.On("SendWithRetry", mock.Anything, mock.Anything).
			Return(provider.Result{MessageID: "SM9", Provider: "twilio"}, nil)

		msgRepo.On("UpdateFromStatus", mock.Anything, mock.Anything,
			model.MessageStatusProcessing).Return(nil)
		jobRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		msgRepo.AssertExpectations(t)
	})

	t.Run("attempt budget exhausted fails the message", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{}, jobRepo, prov)

		msg := queuedMessage("msg-1")
		msg.AttemptCount = model.DeliveryMaxAttempts

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(nil)

		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.Status == model.MessageStatusFailed &&
					*m.FailureReason == "exceeded max delivery attempts"
			}), mock.Anything).Return(nil)

		jobRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("validation failure fails the message without a provider call", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{}, jobRepo, prov)

		msg := queuedMessage("msg-1")
		msg.ToAddress = "not-a-number"

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(nil)

		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.Status == model.MessageStatusFailed
			}), mock.Anything).Return(nil)

		jobRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("database error on load requeues the job", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}

		svc := newDeliveryService(msgRepo, &mocks.AttachmentRepository{},
			&mocks.DeliveryJobRepository{}, &mocks.ProviderService{})

		msgRepo.On("GetByID", "msg-1").Return(nil, errors.New("connection refused"))

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.Error(t, err)
	})

	t.Run("attachment load failure releases the claim before requeue", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, attRepo, &mocks.DeliveryJobRepository{}, prov)

		msg := queuedMessage("msg-1")
		msg.Type = model.MessageTypeMMS

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(nil)

		attRepo.On("GetByMessageID", "msg-1").Return(nil, errors.New("connection refused"))

		// the revert lets the requeued job claim the message again instead
		// of being acked against a fresh processing row
		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.ID == "msg-1" && m.Status == model.MessageStatusQueued
			}), model.MessageStatusProcessing).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.Error(t, err)
		msgRepo.AssertExpectations(t)
		prov.AssertNotCalled(t, "SendWithRetry", mock.Anything, mock.Anything)
	})

	t.Run("mms delivery forwards attachments", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		jobRepo := &mocks.DeliveryJobRepository{}
		prov := &mocks.ProviderService{}

		svc := newDeliveryService(msgRepo, attRepo, jobRepo, prov)

		msg := queuedMessage("msg-1")
		msg.Type = model.MessageTypeMMS

		url := "https://cdn.example.com/pic.jpg"
		attRepo.On("GetByMessageID", "msg-1").Return([]model.Attachment{
			{ID: "att-1", URL: &url, ContentType: "image/jpeg", Filename: "pic.jpg"},
		}, nil)

		msgRepo.On("GetByID", "msg-1").Return(msg, nil)
		msgRepo.On("UpdateForProcessing", mock.Anything, mock.Anything,
			mock.AnythingOfType("time.Time")).Return(nil)

		prov.On("SendWithRetry", mock.Anything, mock.MatchedBy(func(req provider.Request) bool {
			return req.Type == provider.TypeMMS &&
				len(req.Attachments) == 1 &&
				req.Attachments[0].URL == url
		})).Return(provider.Result{MessageID: "SM55", Provider: "twilio"}, nil)

		msgRepo.On("UpdateFromStatus", mock.Anything, mock.Anything,
			model.MessageStatusProcessing).Return(nil)
		jobRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

		err := svc.ProcessDelivery(context.Background(), cmd)

		assert.NoError(t, err)
		attRepo.AssertExpectations(t)
		prov.AssertExpectations(t)
	})
}
