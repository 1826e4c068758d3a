package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/relaymsg/gateway/internal/model"
	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("MESSAGE_NOT_FOUND")
var ErrMessageDuplicate = errors.New("MESSAGE_DUPLICATE")
var ErrNoRowsAffected = errors.New("NO_ROWS_AFFECTED")

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	Update(ctx context.Context, message *model.Message) error
	UpdateFromStatus(ctx context.Context, message *model.Message, expected model.MessageStatus) error
	UpdateForProcessing(ctx context.Context, message *model.Message, staleThreshold time.Time) error
	GetByID(id string) (*model.Message, error)
	GetByProviderMessageID(providerMessageID string) (*model.Message, error)
	ListRecent(limit, offset int) ([]model.Message, error)
}

type Message struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &Message{db: db}
}

func (m *Message) Create(ctx context.Context, message *model.Message) error {
	db := GetTx(ctx, m.db)
	err := db.Create(message).Error
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrMessageDuplicate
	}

	return err
}

func (m *Message) Update(ctx context.Context, message *model.Message) error {
	db := GetTx(ctx, m.db)
	return db.Model(message).Where("id = ?", message.ID).Updates(message).Error
}

// UpdateFromStatus applies the update only when the row still holds the
// expected status. A zero rows-affected result means another worker got there
// first; the caller must treat it as a rejected transition, never overwrite.
func (m *Message) UpdateFromStatus(ctx context.Context, message *model.Message, expected model.MessageStatus) error {
	db := GetTx(ctx, m.db)
	result := db.Model(message).
		Where("id = ? AND status = ?", message.ID, expected).
		Updates(message)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

// UpdateForProcessing claims a queued message for one worker. A message stuck
// in processing longer than the stale threshold may be reclaimed.
func (m *Message) UpdateForProcessing(ctx context.Context, message *model.Message, staleThreshold time.Time) error {
	db := GetTx(ctx, m.db)
	result := db.Model(message).
		Where("id = ? AND (status = ? OR (status = ? AND last_attempt_at < ?))",
			message.ID,
			model.MessageStatusQueued,
			model.MessageStatusProcessing,
			staleThreshold).
		Updates(message)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) GetByID(id string) (*model.Message, error) {
	var message model.Message

	err := m.db.Where("id = ?", id).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (m *Message) GetByProviderMessageID(providerMessageID string) (*model.Message, error) {
	var message model.Message

	err := m.db.Where("provider_message_id = ?", providerMessageID).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (m *Message) ListRecent(limit, offset int) ([]model.Message, error) {
	var messages []model.Message

	err := m.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}
