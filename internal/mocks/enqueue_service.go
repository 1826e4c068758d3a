package mocks

import (
	"context"
	"time"

	"github.com/relaymsg/gateway/internal/service"
	"github.com/stretchr/testify/mock"
)

type EnqueueService struct {
	mock.Mock
}

func (e *EnqueueService) Enqueue(ctx context.Context, messageID string, opts service.EnqueueOptions) (service.EnqueueResponse, error) {
	args := e.Called(ctx, messageID, opts)
	return args.Get(0).(service.EnqueueResponse), args.Error(1)
}

func (e *EnqueueService) EnqueueScheduled(ctx context.Context, messageID string, at time.Time) (service.EnqueueResponse, error) {
	args := e.Called(ctx, messageID, at)
	return args.Get(0).(service.EnqueueResponse), args.Error(1)
}

func (e *EnqueueService) EnqueueBatch(ctx context.Context, messageIDs []string) ([]service.EnqueueResponse, error) {
	args := e.Called(ctx, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.EnqueueResponse), args.Error(1)
}
