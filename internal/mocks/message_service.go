package mocks

import (
	"context"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type MessageService struct {
	mock.Mock
}

func (m *MessageService) CreateMessage(ctx context.Context, cmd service.CreateMessageCommand) (service.CreateMessageResponse, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(service.CreateMessageResponse), args.Error(1)
}

func (m *MessageService) GetMessage(id string) (*model.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MessageService) CreateInbound(ctx context.Context, cmd service.CreateInboundCommand) (string, error) {
	args := m.Called(ctx, cmd)
	return args.String(0), args.Error(1)
}

func (m *MessageService) ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.MessageStatus, reason string) error {
	args := m.Called(ctx, providerMessageID, status, reason)
	return args.Error(0)
}
