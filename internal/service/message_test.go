package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaymsg/gateway/internal/constants"
	"github.com/relaymsg/gateway/internal/mocks"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newMessageService(msgRepo *mocks.MessageRepository, attRepo *mocks.AttachmentRepository,
	txManager *mocks.TxManager) service.MessageService {
	return service.NewMessageService(msgRepo, attRepo, txManager, zap.NewNop())
}

func TestMessage_CreateMessage(t *testing.T) {
	ctx := context.Background()

	smsCmd := service.CreateMessageCommand{
		Type: "sms",
		To:   []string{"+15551234567"},
		From: "+15557654321",
		Body: "hello",
	}

	t.Run("creates pending sms", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		txManager := &mocks.TxManager{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, txManager)

		txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *model.Message) bool {
			return m.ID != "" &&
				m.Type == model.MessageTypeSMS &&
				m.Direction == model.DirectionOutbound &&
				m.Status == model.MessageStatusPending &&
				m.ToAddress == "+15551234567"
		})).Return(nil)

		resp, err := svc.CreateMessage(ctx, smsCmd)

		assert.NoError(t, err)
		assert.NotEmpty(t, resp.MessageID)
		assert.Equal(t, string(model.MessageStatusPending), resp.Status)
	})

	t.Run("validation failure carries the validation code", func(t *testing.T) {
		svc := newMessageService(&mocks.MessageRepository{}, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		cmd := smsCmd
		cmd.To = []string{"bogus"}

		_, err := svc.CreateMessage(ctx, cmd)

		var svcErr service.Error
		assert.ErrorAs(t, err, &svcErr)
		assert.Equal(t, constants.ErrCodeValidation, svcErr.Code)
	})

	t.Run("attachments on sms are rejected", func(t *testing.T) {
		svc := newMessageService(&mocks.MessageRepository{}, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		cmd := smsCmd
		cmd.Attachments = []service.AttachmentInput{{URL: "https://cdn.example.com/a.png", ContentType: "image/png"}}

		_, err := svc.CreateMessage(ctx, cmd)

		var svcErr service.Error
		assert.ErrorAs(t, err, &svcErr)
		assert.Equal(t, constants.ErrCodeValidation, svcErr.Code)
	})

	t.Run("email with blob attachment persists both rows", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		attRepo := &mocks.AttachmentRepository{}
		txManager := &mocks.TxManager{}
		svc := newMessageService(msgRepo, attRepo, txManager)

		cmd := service.CreateMessageCommand{
			Type: "email",
			To:   []string{"a@example.com"},
			From: "noreply@example.com",
			Body: "report attached",
			Attachments: []service.AttachmentInput{{
				Blob:        []byte("%PDF-1.4"),
				Type:        "document",
				ContentType: "application/pdf",
				Filename:    "report.pdf",
			}},
		}

		txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		msgRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		attRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *model.Attachment) bool {
			return a.MessageID != nil &&
				a.Size == int64(len("%PDF-1.4")) &&
				a.Checksum != "" &&
				a.Filename == "report.pdf"
		})).Return(nil)

		_, err := svc.CreateMessage(ctx, cmd)

		assert.NoError(t, err)
		attRepo.AssertExpectations(t)
	})

	t.Run("duplicate message", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		txManager := &mocks.TxManager{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, txManager)

		txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		msgRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrMessageDuplicate)

		_, err := svc.CreateMessage(ctx, smsCmd)

		var svcErr service.Error
		assert.ErrorAs(t, err, &svcErr)
		assert.Equal(t, constants.ErrCodeDuplicateMessage, svcErr.Code)
	})
}

func TestMessage_CreateInbound(t *testing.T) {
	msgRepo := &mocks.MessageRepository{}
	svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

	msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *model.Message) bool {
		return m.Direction == model.DirectionInbound &&
			m.Status == model.MessageStatusReceived &&
			*m.Provider == "twilio" &&
			*m.ProviderMessageID == "SM777"
	})).Return(nil)

	id, err := svc.CreateInbound(context.Background(), service.CreateInboundCommand{
		Type:              model.MessageTypeSMS,
		From:              "+15551230000",
		To:                "+15550001111",
		Body:              "reply",
		Provider:          "twilio",
		ProviderMessageID: "SM777",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, id)
	msgRepo.AssertExpectations(t)
}

func TestMessage_ApplyDeliveryStatus(t *testing.T) {
	ctx := context.Background()

	sentMessage := func() *model.Message {
		sentAt := time.Now().Add(-time.Minute)
		pmid := "SM123"
		return &model.Message{
			ID:                "msg-1",
			Status:            model.MessageStatusSent,
			SentAt:            &sentAt,
			ProviderMessageID: &pmid,
		}
	}

	t.Run("failed report overrides sent without touching sent_at", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msgRepo.On("GetByProviderMessageID", "SM123").Return(sentMessage(), nil)
		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.Status == model.MessageStatusFailed &&
					*m.FailureReason == "provider reported undelivered" &&
					m.FailedAt == nil &&
					m.SentAt == nil
			}), model.MessageStatusSent).Return(nil)

		err := svc.ApplyDeliveryStatus(ctx, "SM123", model.MessageStatusFailed,
			"provider reported undelivered")

		assert.NoError(t, err)
		msgRepo.AssertExpectations(t)
	})

	t.Run("failed report on processing message stamps failed_at", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msg := sentMessage()
		msg.Status = model.MessageStatusProcessing
		msg.SentAt = nil

		msgRepo.On("GetByProviderMessageID", "SM123").Return(msg, nil)
		msgRepo.On("UpdateFromStatus", mock.Anything,
			mock.MatchedBy(func(m *model.Message) bool {
				return m.Status == model.MessageStatusFailed &&
					m.FailedAt != nil &&
					*m.FailureReason == "provider reported undelivered"
			}), model.MessageStatusProcessing).Return(nil)

		err := svc.ApplyDeliveryStatus(ctx, "SM123", model.MessageStatusFailed,
			"provider reported undelivered")

		assert.NoError(t, err)
		msgRepo.AssertExpectations(t)
	})

	t.Run("sent report on sent message is a no-op", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msgRepo.On("GetByProviderMessageID", "SM123").Return(sentMessage(), nil)

		err := svc.ApplyDeliveryStatus(ctx, "SM123", model.MessageStatusSent, "")

		assert.NoError(t, err)
		msgRepo.AssertNotCalled(t, "UpdateFromStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed message never reopens to sent", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msg := sentMessage()
		msg.Status = model.MessageStatusFailed

		msgRepo.On("GetByProviderMessageID", "SM123").Return(msg, nil)

		err := svc.ApplyDeliveryStatus(ctx, "SM123", model.MessageStatusSent, "")

		assert.NoError(t, err)
		msgRepo.AssertNotCalled(t, "UpdateFromStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown provider message id", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msgRepo.On("GetByProviderMessageID", "SM404").Return(nil, repository.ErrMessageNotFound)

		err := svc.ApplyDeliveryStatus(ctx, "SM404", model.MessageStatusFailed, "x")

		assert.ErrorIs(t, err, service.ErrMessageNotFound)
	})

	t.Run("raced update is swallowed", func(t *testing.T) {
		msgRepo := &mocks.MessageRepository{}
		svc := newMessageService(msgRepo, &mocks.AttachmentRepository{}, &mocks.TxManager{})

		msgRepo.On("GetByProviderMessageID", "SM123").Return(sentMessage(), nil)
		msgRepo.On("UpdateFromStatus", mock.Anything, mock.Anything, model.MessageStatusSent).
			Return(repository.ErrNoRowsAffected)

		err := svc.ApplyDeliveryStatus(ctx, "SM123", model.MessageStatusFailed, "bounced")

		assert.NoError(t, err)
	})
}
