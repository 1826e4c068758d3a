package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/mq"
	"go.uber.org/zap"
)

type EnqueueService interface {
	Enqueue(ctx context.Context, messageID string, opts EnqueueOptions) (EnqueueResponse, error)
	EnqueueScheduled(ctx context.Context, messageID string, at time.Time) (EnqueueResponse, error)
	EnqueueBatch(ctx context.Context, messageIDs []string) ([]EnqueueResponse, error)
}

type enqueue struct {
	messageRepo repository.MessageRepository
	jobRepo     repository.DeliveryJobRepository
	txManager   repository.TxManager
	publisher   mq.Publisher
	aggregator  *telemetry.Aggregator
	logger      *zap.Logger
}

func NewEnqueueService(messageRepo repository.MessageRepository, jobRepo repository.DeliveryJobRepository,
	txManager repository.TxManager, publisher mq.Publisher, aggregator *telemetry.Aggregator,
	logger *zap.Logger) EnqueueService {
	return &enqueue{
		messageRepo: messageRepo,
		jobRepo:     jobRepo,
		txManager:   txManager,
		publisher:   publisher,
		aggregator:  aggregator,
		logger:      logger,
	}
}

func (e *enqueue) Enqueue(ctx context.Context, messageID string, opts EnqueueOptions) (EnqueueResponse, error) {
	job, err := e.transitionAndCreateJob(ctx, messageID, opts)
	if err != nil {
		return EnqueueResponse{}, err
	}

	if opts.ScheduledAt == nil {
		e.publishJob(ctx, job)
	}

	return EnqueueResponse{JobID: job.ID, MessageID: messageID}, nil
}

func (e *enqueue) EnqueueScheduled(ctx context.Context, messageID string, at time.Time) (EnqueueResponse, error) {
	return e.Enqueue(ctx, messageID, EnqueueOptions{ScheduledAt: &at})
}

// EnqueueBatch transitions every listed message to queued before publishing
// any of the jobs. Missing ids are skipped; they never fail the batch.
func (e *enqueue) EnqueueBatch(ctx context.Context, messageIDs []string) ([]EnqueueResponse, error) {
	jobs := make([]*model.DeliveryJob, 0, len(messageIDs))
	responses := make([]EnqueueResponse, 0, len(messageIDs))

	for _, id := range messageIDs {
		job, err := e.transitionAndCreateJob(ctx, id, EnqueueOptions{})
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				e.logger.Warn("Skipping unknown message in batch enqueue", zap.String("messageID", id))
				continue
			}
			return nil, err
		}

		jobs = append(jobs, job)
		responses = append(responses, EnqueueResponse{JobID: job.ID, MessageID: id})
	}

	for _, job := range jobs {
		e.publishJob(ctx, job)
	}

	if len(jobs) > 0 {
		e.aggregator.RecordBatchEnqueued(len(jobs))
	}

	return responses, nil
}

func (e *enqueue) transitionAndCreateJob(ctx context.Context, messageID string, opts EnqueueOptions) (*model.DeliveryJob, error) {
	msg, err := e.messageRepo.GetByID(messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, ErrDatabase
	}

	now := time.Now()
	if err := msg.Transition(model.MessageStatusQueued, now); err != nil {
		e.logger.Warn("Message not in pending status, refusing enqueue",
			zap.String("messageID", messageID),
			zap.String("status", string(msg.Status)))
		return nil, ErrMessageAlreadyProcessed
	}

	queue := opts.Queue
	if queue == "" {
		queue = model.QueueDeliverySend
	}

	update := model.Message{
		ID:        messageID,
		Status:    msg.Status,
		QueuedAt:  msg.QueuedAt,
		UpdatedAt: msg.UpdatedAt,
	}

	job := &model.DeliveryJob{
		MessageID:   messageID,
		Queue:       queue,
		ScheduledAt: opts.ScheduledAt,
		MaxAttempts: model.DeliveryMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = e.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := e.messageRepo.UpdateFromStatus(ctx, &update, model.MessageStatusPending); err != nil {
			if errors.Is(err, repository.ErrNoRowsAffected) {
				return ErrMessageAlreadyProcessed
			}
			return ErrDatabase
		}

		return e.jobRepo.Create(ctx, job)
	})

	if err != nil {
		e.logger.Error("Failed to enqueue message",
			zap.String("messageID", messageID),
			zap.Error(err))
		return nil, err
	}

	e.aggregator.RecordTransition(string(msg.Type),
		string(model.MessageStatusPending), string(model.MessageStatusQueued),
		string(msg.Direction), now.Sub(msg.CreatedAt))

	return job, nil
}

// publishJob pushes the job to the delivery queue. Publish failures are not
// fatal: the job row stays unpublished and the scheduler picks it up later.
func (e *enqueue) publishJob(ctx context.Context, job *model.DeliveryJob) {
	body, _ := json.Marshal(SendMessageCommand{MessageID: job.MessageID, JobID: job.ID})

	if err := e.publisher.Publish(ctx, "", job.Queue, body); err != nil {
		e.logger.Warn("Failed to publish delivery job, deferring to scheduler",
			zap.Int64("jobID", job.ID),
			zap.String("messageID", job.MessageID),
			zap.Error(err))
		return
	}

	if err := e.jobRepo.MarkPublished(ctx, job.ID, time.Now()); err != nil {
		e.logger.Error("Failed to mark delivery job as published",
			zap.Int64("jobID", job.ID),
			zap.Error(err))
	}
}
