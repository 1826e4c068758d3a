package repository

import (
	"context"
	"errors"

	"github.com/relaymsg/gateway/internal/model"
	"gorm.io/gorm"
)

var ErrAttachmentNotFound = errors.New("ATTACHMENT_NOT_FOUND")

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	GetByID(id string) (*model.Attachment, error)
	GetByMessageID(messageID string) ([]model.Attachment, error)
}

type Attachment struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &Attachment{db: db}
}

func (a *Attachment) Create(ctx context.Context, attachment *model.Attachment) error {
	db := GetTx(ctx, a.db)
	return db.Create(attachment).Error
}

func (a *Attachment) GetByID(id string) (*model.Attachment, error) {
	var attachment model.Attachment

	err := a.db.Where("id = ?", id).First(&attachment).Error
	if err == nil {
		return &attachment, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}

	return nil, err
}

func (a *Attachment) GetByMessageID(messageID string) ([]model.Attachment, error) {
	var attachments []model.Attachment

	err := a.db.Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	return attachments, nil
}
