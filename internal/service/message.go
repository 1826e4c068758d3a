package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relaymsg/gateway/internal/constants"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"go.uber.org/zap"
)

type CreateInboundCommand struct {
	Type              model.MessageType
	From              string
	To                string
	Body              string
	Provider          string
	ProviderMessageID string
	ReceivedAt        *time.Time
}

type MessageService interface {
	CreateMessage(ctx context.Context, cmd CreateMessageCommand) (CreateMessageResponse, error)
	GetMessage(id string) (*model.Message, error)
	CreateInbound(ctx context.Context, cmd CreateInboundCommand) (string, error)
	ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, reason string) error
}

type message struct {
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	txManager      repository.TxManager
	logger         *zap.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, attachmentRepo repository.AttachmentRepository,
	txManager repository.TxManager, logger *zap.Logger) MessageService {
	return &message{messageRepo: messageRepo, attachmentRepo: attachmentRepo, txManager: txManager, logger: logger}
}

func (m *message) CreateMessage(ctx context.Context, cmd CreateMessageCommand) (CreateMessageResponse, error) {
	msg := model.Message{
		ID:          uuid.NewString(),
		Type:        model.MessageType(cmd.Type),
		Direction:   model.DirectionOutbound,
		ToAddress:   strings.Join(cmd.To, ","),
		FromAddress: cmd.From,
		Body:        cmd.Body,
		Status:      model.MessageStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := ValidateForDelivery(&msg); err != nil {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeValidation, err)
	}

	if len(cmd.Attachments) > 0 && !msg.CarriesAttachments() {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeValidation,
			errors.New("attachments are only supported for mms and email"))
	}

	attachments, err := buildAttachments(msg.ID, cmd.Attachments)
	if err != nil {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeValidation, err)
	}

	err = m.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := m.messageRepo.Create(ctx, &msg); err != nil {
			if errors.Is(err, repository.ErrMessageDuplicate) {
				return NewServiceError(constants.ErrCodeDuplicateMessage, err)
			}
			return NewServiceError(constants.ErrCodeInternalError, err)
		}

		for i := range attachments {
			if err := m.attachmentRepo.Create(ctx, &attachments[i]); err != nil {
				return NewServiceError(constants.ErrCodeInternalError, err)
			}
		}

		return nil
	})

	if err != nil {
		m.logger.Error("Failed to create message",
			zap.String("type", cmd.Type),
			zap.Error(err))
		return CreateMessageResponse{}, err
	}

	return CreateMessageResponse{MessageID: msg.ID, Status: string(msg.Status)}, nil
}

func buildAttachments(messageID string, inputs []AttachmentInput) ([]model.Attachment, error) {
	attachments := make([]model.Attachment, 0, len(inputs))

	for _, in := range inputs {
		att := model.Attachment{
			ID:             uuid.NewString(),
			MessageID:      &messageID,
			AttachmentType: model.AttachmentType(in.Type),
			ContentType:    in.ContentType,
			Filename:       in.Filename,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}

		if att.AttachmentType == "" {
			att.AttachmentType = model.AttachmentTypeOther
		}

		if in.URL != "" {
			url := in.URL
			att.URL = &url
		}

		if len(in.Blob) > 0 {
			att.SetBlob(in.Blob)
		}

		if err := att.Validate(); err != nil {
			return nil, err
		}

		attachments = append(attachments, att)
	}

	return attachments, nil
}

func (m *message) GetMessage(id string) (*model.Message, error) {
	msg, err := m.messageRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, ErrDatabase
	}

	return msg, nil
}

func (m *message) CreateInbound(ctx context.Context, cmd CreateInboundCommand) (string, error) {
	receivedAt := time.Now()
	if cmd.ReceivedAt != nil {
		receivedAt = *cmd.ReceivedAt
	}

	providerName := cmd.Provider
	providerMessageID := cmd.ProviderMessageID

	msg := model.Message{
		ID:                uuid.NewString(),
		Type:              cmd.Type,
		Direction:         model.DirectionInbound,
		ToAddress:         cmd.To,
		FromAddress:       cmd.From,
		Body:              cmd.Body,
		Status:            model.MessageStatusReceived,
		Provider:          &providerName,
		ProviderMessageID: &providerMessageID,
		CreatedAt:         receivedAt,
		UpdatedAt:         time.Now(),
	}

	if err := m.messageRepo.Create(ctx, &msg); err != nil {
		m.logger.Error("Failed to create inbound message",
			zap.String("provider", cmd.Provider),
			zap.String("providerMessageID", cmd.ProviderMessageID),
			zap.Error(err))
		return "", ErrDatabase
	}

	m.logger.Info("Inbound message recorded",
		zap.String("messageID", msg.ID),
		zap.String("provider", cmd.Provider),
		zap.String("type", string(cmd.Type)))

	return msg.ID, nil
}

// ApplyDeliveryStatus applies a provider delivery report to the message that
// carries the provider message id. A failure report may override a previously
// accepted (sent) message; the reverse never happens, and sent_at keeps the
// original submission time.
func (m *message) ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, reason string) error {
	msg, err := m.messageRepo.GetByProviderMessageID(providerMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return ErrDatabase
	}

	if msg.Status == status {
		return nil
	}

	if status != model.MessageStatusFailed {
		// delivery confirmations beyond "sent" carry no extra canonical state
		return nil
	}

	if msg.Status == model.MessageStatusFailed {
		return nil
	}

	from := msg.Status
	now := time.Now()

	update := model.Message{ID: msg.ID, UpdatedAt: now}
	if err := msg.MarkFailed(reason, now); err == nil {
		update.Status = msg.Status
		update.FailedAt = msg.FailedAt
		update.FailureReason = msg.FailureReason
		update.UpdatedAt = msg.UpdatedAt
	} else {
		// late failure report after accept: sent_at keeps the original
		// submission time and failed_at stays unset
		update.Status = model.MessageStatusFailed
		update.FailureReason = &reason
	}

	err = m.messageRepo.UpdateFromStatus(ctx, &update, from)
	if err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			m.logger.Info("Delivery status already applied by another worker",
				zap.String("messageID", msg.ID),
				zap.String("providerMessageID", providerMessageID))
			return nil
		}

		m.logger.Error("Failed to apply delivery status",
			zap.String("messageID", msg.ID),
			zap.String("providerMessageID", providerMessageID),
			zap.Error(err))
		return ErrDatabase
	}

	m.logger.Info("Delivery status applied",
		zap.String("messageID", msg.ID),
		zap.String("status", string(status)),
		zap.String("reason", reason))

	return nil
}
