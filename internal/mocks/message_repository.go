package mocks

import (
	"context"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) Update(ctx context.Context, message *model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) UpdateFromStatus(ctx context.Context, message *model.Message, expected model.MessageStatus) error {
	args := m.Called(ctx, message, expected)
	return args.Error(0)
}

func (m *MessageRepository) UpdateForProcessing(ctx context.Context, message *model.Message, staleThreshold time.Time) error {
	args := m.Called(ctx, message, staleThreshold)
	return args.Error(0)
}

func (m *MessageRepository) GetByID(id string) (*model.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MessageRepository) GetByProviderMessageID(providerMessageID string) (*model.Message, error) {
	args := m.Called(providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MessageRepository) ListRecent(limit, offset int) ([]model.Message, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}
