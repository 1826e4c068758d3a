package publishers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/pkg/mq"
	"go.uber.org/zap"
)

// DeliveryPublisher drains due delivery jobs onto the send queue. It backs
// the scheduler process and doubles as recovery for jobs whose synchronous
// publish failed at enqueue time.
type DeliveryPublisher interface {
	Publish(ctx context.Context) error
}

type deliveryPublisher struct {
	jobRepo   repository.DeliveryJobRepository
	publisher mq.Publisher
	batchSize int
	logger    *zap.Logger
}

func NewDeliveryPublisher(jobRepo repository.DeliveryJobRepository, publisher mq.Publisher, batchSize int,
	logger *zap.Logger) DeliveryPublisher {
	if batchSize <= 0 {
		batchSize = 100
	}

	return &deliveryPublisher{jobRepo: jobRepo, publisher: publisher, batchSize: batchSize, logger: logger}
}

func (d *deliveryPublisher) Publish(ctx context.Context) error {
	jobs, err := d.jobRepo.FindDue(time.Now(), d.batchSize)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		return nil
	}

	d.logger.Info("Publishing due delivery jobs", zap.Int("count", len(jobs)))

	successCount := 0
	for _, job := range jobs {
		body, _ := json.Marshal(service.SendMessageCommand{MessageID: job.MessageID, JobID: job.ID})
		if err := d.publisher.Publish(ctx, "", job.Queue, body); err != nil {
			d.logger.Error("Failed to publish delivery job",
				zap.Error(err),
				zap.Int64("jobID", job.ID),
				zap.String("messageID", job.MessageID))
			continue
		}

		if err := d.jobRepo.MarkPublished(ctx, job.ID, time.Now()); err != nil {
			d.logger.Error("Failed to mark job as published",
				zap.Error(err),
				zap.Int64("jobID", job.ID))
			continue
		}

		successCount++
	}

	if successCount > 0 {
		d.logger.Info("Successfully published delivery jobs",
			zap.Int("published", successCount),
			zap.Int("total", len(jobs)))
	}

	return nil
}
