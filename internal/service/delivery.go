package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/repository"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/mq"
	"github.com/relaymsg/gateway/pkg/provider"
	"go.uber.org/zap"
)

// staleProcessingAfter is how long a message may sit in processing before
// another worker is allowed to reclaim it (crashed-worker recovery).
const staleProcessingAfter = 5 * time.Minute

type DeliveryService interface {
	ProcessDelivery(ctx context.Context, cmd SendMessageCommand) error
}

type delivery struct {
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	jobRepo        repository.DeliveryJobRepository
	provider       ProviderService
	aggregator     *telemetry.Aggregator
	logger         *zap.Logger
}

func NewDeliveryService(messageRepo repository.MessageRepository, attachmentRepo repository.AttachmentRepository,
	jobRepo repository.DeliveryJobRepository, providerSvc ProviderService, aggregator *telemetry.Aggregator,
	logger *zap.Logger) DeliveryService {
	return &delivery{
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		jobRepo:        jobRepo,
		provider:       providerSvc,
		aggregator:     aggregator,
		logger:         logger,
	}
}

// ProcessDelivery drives one queued message to a terminal status. The return
// value carries queue semantics: nil acks the job, mq.Temporary requeues it.
// No fault may escape this boundary and crash the worker loop.
func (d *delivery) ProcessDelivery(ctx context.Context, cmd SendMessageCommand) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered from panic during delivery",
				zap.String("messageID", cmd.MessageID),
				zap.Any("panic", r))
			d.failMessage(ctx, cmd, fmt.Sprintf("internal fault during delivery: %v", r), "", start)
			err = nil
		}
	}()

	msg, err := d.getMessageForProcessing(cmd.MessageID)
	if err != nil {
		d.logger.Debug("Message not processable",
			zap.String("messageID", cmd.MessageID),
			zap.Error(err))

		if errors.Is(err, ErrDatabase) {
			return mq.Temporary(err)
		}

		return nil
	}

	attemptCount := msg.AttemptCount
	if msg.Status != model.MessageStatusProcessing {
		attemptCount++
	}

	claimed, err := d.claimMessage(ctx, msg, attemptCount)
	if err != nil {
		return mq.Temporary(err)
	}
	if !claimed {
		return nil
	}

	if msg.QueuedAt != nil {
		d.aggregator.RecordTransition(string(msg.Type),
			string(model.MessageStatusQueued), string(model.MessageStatusProcessing),
			string(msg.Direction), time.Since(*msg.QueuedAt))
	}

	if attemptCount > model.DeliveryMaxAttempts {
		d.logger.Warn("Message exceeded max delivery attempts",
			zap.String("messageID", cmd.MessageID),
			zap.Int("attempts", attemptCount))

		d.failMessage(ctx, cmd, "exceeded max delivery attempts", "", start)
		return nil
	}

	if verr := ValidateForDelivery(msg); verr != nil {
		d.logger.Warn("Message failed validation, no delivery attempted",
			zap.String("messageID", cmd.MessageID),
			zap.Error(verr))

		d.failMessage(ctx, cmd, verr.Error(), "", start)
		return nil
	}

	req, err := d.buildRequest(msg)
	if err != nil {
		// the claim must not outlive this attempt: a redelivery against a
		// fresh processing row would be acked and strand the message
		d.releaseClaim(ctx, msg)
		return mq.Temporary(err)
	}

	d.logger.Debug("Dispatching message to provider",
		zap.String("messageID", cmd.MessageID),
		zap.String("type", string(msg.Type)),
		zap.Int("attempt", attemptCount))

	result, sendErr := d.provider.SendWithRetry(ctx, req)
	if sendErr == nil {
		d.markSent(ctx, cmd, msg, result, start)
		return nil
	}

	// every send failure reaching this point is terminal for the message:
	// either the provider rejected it or the retry budget is spent
	d.logger.Warn("Delivery failed",
		zap.String("messageID", cmd.MessageID),
		zap.Int("attempt", attemptCount),
		zap.Error(sendErr))

	d.failMessage(ctx, cmd, sendErr.Error(), result.Provider, start)
	return nil
}

func (d *delivery) getMessageForProcessing(messageID string) (*model.Message, error) {
	msg, err := d.messageRepo.GetByID(messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, ErrDatabase
	}

	switch msg.Status {
	case model.MessageStatusQueued:
		return msg, nil

	case model.MessageStatusProcessing:
		if msg.LastAttemptAt != nil && time.Since(*msg.LastAttemptAt) < staleProcessingAfter {
			d.logger.Warn("Message being processed by another worker",
				zap.String("messageID", messageID),
				zap.Time("lastAttempt", *msg.LastAttemptAt))
			return nil, ErrMessageBeingProcessed
		}

		return msg, nil

	case model.MessageStatusSent, model.MessageStatusFailed:
		d.logger.Info("Message already in terminal status",
			zap.String("messageID", messageID),
			zap.String("status", string(msg.Status)))
		return nil, ErrMessageAlreadyProcessed

	case model.MessageStatusPending:
		d.logger.Error("Delivery job references a message that was never enqueued",
			zap.String("messageID", messageID))
		return nil, ErrMessageNotEnqueued

	default:
		d.logger.Error("Unknown message status",
			zap.String("messageID", messageID),
			zap.String("status", string(msg.Status)))
		return nil, ErrUnknownMessageStatus
	}
}

func (d *delivery) claimMessage(ctx context.Context, msg *model.Message, attemptCount int) (bool, error) {
	now := time.Now()

	// stale reclaim finds the message already in processing; the transition
	// only applies on the queued path
	if msg.Status.CanTransitionTo(model.MessageStatusProcessing) {
		if err := msg.Transition(model.MessageStatusProcessing, now); err != nil {
			return false, nil
		}
	}
	msg.AttemptCount = attemptCount
	msg.LastAttemptAt = &now
	msg.UpdatedAt = now

	update := model.Message{
		ID:            msg.ID,
		Status:        model.MessageStatusProcessing,
		AttemptCount:  msg.AttemptCount,
		LastAttemptAt: msg.LastAttemptAt,
		UpdatedAt:     msg.UpdatedAt,
	}

	err := d.messageRepo.UpdateForProcessing(ctx, &update, now.Add(-staleProcessingAfter))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, repository.ErrNoRowsAffected) {
		d.logger.Info("Message claimed by another worker",
			zap.String("messageID", msg.ID))
		return false, nil
	}

	d.logger.Error("Failed to claim message for processing",
		zap.String("messageID", msg.ID),
		zap.Error(err))

	return false, ErrDatabase
}

// releaseClaim reverts a claimed message to queued so the requeued job can
// pick it up again without waiting out the stale-processing window.
func (d *delivery) releaseClaim(ctx context.Context, msg *model.Message) {
	update := model.Message{
		ID:        msg.ID,
		Status:    model.MessageStatusQueued,
		UpdatedAt: time.Now(),
	}

	if err := d.messageRepo.UpdateFromStatus(ctx, &update, model.MessageStatusProcessing); err != nil {
		d.logger.Error("Failed to release claim back to queued",
			zap.String("messageID", msg.ID),
			zap.Error(err))
	}
}

func (d *delivery) buildRequest(msg *model.Message) (provider.Request, error) {
	req := provider.Request{
		Type: provider.MessageType(msg.Type),
		To:   msg.Recipients(),
		From: msg.FromAddress,
		Body: msg.Body,
	}

	if !msg.CarriesAttachments() {
		return req, nil
	}

	attachments, err := d.attachmentRepo.GetByMessageID(msg.ID)
	if err != nil {
		d.logger.Error("Failed to load attachments",
			zap.String("messageID", msg.ID),
			zap.Error(err))
		return provider.Request{}, ErrDatabase
	}

	for _, att := range attachments {
		ref := provider.AttachmentRef{
			ContentType: att.ContentType,
			Filename:    att.Filename,
		}

		if att.URL != nil {
			ref.URL = *att.URL
		} else {
			ref.Data = att.Blob
		}

		req.Attachments = append(req.Attachments, ref)
	}

	return req, nil
}

func (d *delivery) markSent(ctx context.Context, cmd SendMessageCommand, msg *model.Message,
	result provider.Result, start time.Time) {
	if err := msg.MarkSent(result.MessageID, result.Provider, time.Now()); err != nil {
		d.logger.Error("Sent transition rejected by lifecycle",
			zap.String("messageID", msg.ID),
			zap.String("status", string(msg.Status)),
			zap.Error(err))
		return
	}

	update := model.Message{
		ID:                msg.ID,
		Status:            msg.Status,
		SentAt:            msg.SentAt,
		Provider:          msg.Provider,
		ProviderMessageID: msg.ProviderMessageID,
		UpdatedAt:         msg.UpdatedAt,
	}

	err := d.messageRepo.UpdateFromStatus(ctx, &update, model.MessageStatusProcessing)
	if err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			d.logger.Error("Sent transition rejected: message left processing unexpectedly",
				zap.String("messageID", msg.ID))
		} else {
			d.logger.Error("Failed to persist sent status",
				zap.String("messageID", msg.ID),
				zap.String("providerMessageID", result.MessageID),
				zap.Error(err))
		}
	}

	duration := time.Since(start)

	d.logger.Info("Message sent",
		zap.String("messageID", msg.ID),
		zap.String("provider", result.Provider),
		zap.String("providerMessageID", result.MessageID),
		zap.Duration("duration", duration))

	d.aggregator.RecordTransition(string(msg.Type),
		string(model.MessageStatusProcessing), string(model.MessageStatusSent),
		string(msg.Direction), duration)
	d.aggregator.RecordCompleted(string(msg.Type), telemetry.ResultSuccess,
		string(msg.Direction), result.Provider, duration)

	d.updateJob(ctx, cmd.JobID, msg.AttemptCount, nil)
}

// failMessage flattens the reason to a string and drives the terminal failed
// transition. It never returns an error: failure bookkeeping is best-effort
// and losing it must not requeue an already-decided message.
func (d *delivery) failMessage(ctx context.Context, cmd SendMessageCommand, reason, providerName string, start time.Time) {
	msg, err := d.messageRepo.GetByID(cmd.MessageID)
	if err != nil {
		d.logger.Error("Failed to load message for failure bookkeeping",
			zap.String("messageID", cmd.MessageID),
			zap.Error(err))
		return
	}

	if msg.Status.Terminal() {
		return
	}

	from := msg.Status
	if err := msg.MarkFailed(reason, time.Now()); err != nil {
		d.logger.Error("Failed transition rejected by lifecycle",
			zap.String("messageID", msg.ID),
			zap.String("status", string(from)),
			zap.Error(err))
		return
	}

	update := model.Message{
		ID:            msg.ID,
		Status:        msg.Status,
		FailedAt:      msg.FailedAt,
		FailureReason: msg.FailureReason,
		UpdatedAt:     msg.UpdatedAt,
	}

	if err := d.messageRepo.UpdateFromStatus(ctx, &update, from); err != nil {
		d.logger.Error("Failed to persist failed status",
			zap.String("messageID", msg.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}

	duration := time.Since(start)

	d.aggregator.RecordTransition(string(msg.Type),
		string(from), string(model.MessageStatusFailed),
		string(msg.Direction), duration)
	d.aggregator.RecordCompleted(string(msg.Type), telemetry.ResultFailure,
		string(msg.Direction), providerName, duration)

	d.updateJob(ctx, cmd.JobID, msg.AttemptCount, &reason)
}

func (d *delivery) updateJob(ctx context.Context, jobID int64, attempts int, lastError *string) {
	if jobID == 0 {
		return
	}

	job := &model.DeliveryJob{
		ID:        jobID,
		Attempts:  attempts,
		LastError: lastError,
		UpdatedAt: time.Now(),
	}

	if err := d.jobRepo.Update(ctx, job); err != nil {
		d.logger.Warn("Failed to update delivery job bookkeeping",
			zap.Int64("jobID", jobID),
			zap.Error(err))
	}
}
