package repository

import (
	"context"
	"errors"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("JOB_NOT_FOUND")

type DeliveryJobRepository interface {
	Create(ctx context.Context, job *model.DeliveryJob) error
	Update(ctx context.Context, job *model.DeliveryJob) error
	MarkPublished(ctx context.Context, jobID int64, publishedAt time.Time) error
	FindDue(now time.Time, limit int) ([]model.DeliveryJob, error)
	GetByMessageID(messageID string) (*model.DeliveryJob, error)
}

type DeliveryJob struct {
	db *gorm.DB
}

func NewDeliveryJobRepository(db *gorm.DB) DeliveryJobRepository {
	return &DeliveryJob{db: db}
}

func (r *DeliveryJob) Create(ctx context.Context, job *model.DeliveryJob) error {
	db := GetTx(ctx, r.db)
	return db.Create(job).Error
}

func (r *DeliveryJob) Update(ctx context.Context, job *model.DeliveryJob) error {
	db := GetTx(ctx, r.db)
	return db.Model(job).Where("id = ?", job.ID).Updates(job).Error
}

func (r *DeliveryJob) MarkPublished(ctx context.Context, jobID int64, publishedAt time.Time) error {
	db := GetTx(ctx, r.db)
	return db.Model(&model.DeliveryJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"published":    true,
			"published_at": publishedAt,
			"updated_at":   time.Now(),
		}).Error
}

// FindDue returns unpublished jobs whose scheduled time has passed (or that
// were never scheduled), oldest first, with the owning message preloaded.
func (r *DeliveryJob) FindDue(now time.Time, limit int) ([]model.DeliveryJob, error) {
	var jobs []model.DeliveryJob

	err := r.db.Preload("Message").
		Where("published = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)", false, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *DeliveryJob) GetByMessageID(messageID string) (*model.DeliveryJob, error) {
	var job model.DeliveryJob

	err := r.db.Where("message_id = ?", messageID).
		Order("created_at DESC").
		First(&job).Error
	if err == nil {
		return &job, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}

	return nil, err
}
