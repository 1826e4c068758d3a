package mocks

import (
	"context"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type DeliveryJobRepository struct {
	mock.Mock
}

func (d *DeliveryJobRepository) Create(ctx context.Context, job *model.DeliveryJob) error {
	args := d.Called(ctx, job)
	return args.Error(0)
}

func (d *DeliveryJobRepository) Update(ctx context.Context, job *model.DeliveryJob) error {
	args := d.Called(ctx, job)
	return args.Error(0)
}

func (d *DeliveryJobRepository) MarkPublished(ctx context.Context, jobID int64, publishedAt time.Time) error {
	args := d.Called(ctx, jobID, publishedAt)
	return args.Error(0)
}

func (d *DeliveryJobRepository) FindDue(now time.Time, limit int) ([]model.DeliveryJob, error) {
	args := d.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeliveryJob), args.Error(1)
}

func (d *DeliveryJobRepository) GetByMessageID(messageID string) (*model.DeliveryJob, error) {
	args := d.Called(messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryJob), args.Error(1)
}
