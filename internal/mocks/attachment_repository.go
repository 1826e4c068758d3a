package mocks

import (
	"context"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type AttachmentRepository struct {
	mock.Mock
}

func (a *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	args := a.Called(ctx, attachment)
	return args.Error(0)
}

func (a *AttachmentRepository) GetByID(id string) (*model.Attachment, error) {
	args := a.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (a *AttachmentRepository) GetByMessageID(messageID string) ([]model.Attachment, error) {
	args := a.Called(messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Attachment), args.Error(1)
}
