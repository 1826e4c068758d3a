package v1

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/relaymsg/gateway/internal/constants"
	"github.com/relaymsg/gateway/internal/model"
	"github.com/relaymsg/gateway/internal/service"
	"github.com/relaymsg/gateway/internal/telemetry"
	"github.com/relaymsg/gateway/pkg/mq"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	logger     *zap.Logger
	messages   service.MessageService
	enqueue    service.EnqueueService
	publisher  mq.Publisher
	aggregator *telemetry.Aggregator
}

func NewHandler(logger *zap.Logger, messages service.MessageService, enqueue service.EnqueueService,
	publisher mq.Publisher, aggregator *telemetry.Aggregator) *Handler {
	return &Handler{
		logger:     logger,
		messages:   messages,
		enqueue:    enqueue,
		publisher:  publisher,
		aggregator: aggregator,
	}
}

func (h *Handler) Pong(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (h *Handler) CreateMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var request CreateMessageRequest
	if err := c.BodyParser(&request); err != nil {
		h.logger.Warn("Failed to parse body", zap.Error(err))
		return badRequestBody(c)
	}

	created, err := h.messages.CreateMessage(ctx, toCreateCommand(request))
	if err != nil {
		h.logger.Error("Failed to create message",
			zap.Error(err),
			zap.String("type", request.Type))
		return err
	}

	var enq service.EnqueueResponse
	if request.ScheduledAt != nil {
		enq, err = h.enqueue.EnqueueScheduled(ctx, created.MessageID, *request.ScheduledAt)
	} else {
		enq, err = h.enqueue.Enqueue(ctx, created.MessageID, service.EnqueueOptions{})
	}
	if err != nil {
		h.logger.Error("Failed to enqueue message",
			zap.Error(err),
			zap.String("messageID", created.MessageID))
		return err
	}

	h.logger.Info("Message accepted",
		zap.String("messageID", created.MessageID),
		zap.String("type", request.Type),
		zap.Bool("scheduled", request.ScheduledAt != nil))

	return c.Status(fiber.StatusCreated).JSON(CreateMessageResponse{
		MessageID: created.MessageID,
		Status:    string(model.MessageStatusQueued),
		JobID:     enq.JobID,
	})
}

// CreateBatch creates every message first, then enqueues the whole set in one
// batch so the queued transitions land before any job publishes.
func (h *Handler) CreateBatch(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var request CreateBatchRequest
	if err := c.BodyParser(&request); err != nil {
		h.logger.Warn("Failed to parse body", zap.Error(err))
		return badRequestBody(c)
	}

	if len(request.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    constants.ErrCodeValidation,
			"message": "batch contains no messages",
		})
	}

	ids := make([]string, 0, len(request.Messages))
	responses := make([]CreateMessageResponse, 0, len(request.Messages))

	for _, msg := range request.Messages {
		created, err := h.messages.CreateMessage(ctx, toCreateCommand(msg))
		if err != nil {
			h.logger.Error("Failed to create message in batch", zap.Error(err))
			return err
		}

		ids = append(ids, created.MessageID)
		responses = append(responses, CreateMessageResponse{
			MessageID: created.MessageID,
			Status:    string(model.MessageStatusQueued),
		})
	}

	enqueued, err := h.enqueue.EnqueueBatch(ctx, ids)
	if err != nil {
		h.logger.Error("Failed to enqueue batch", zap.Error(err))
		return err
	}

	jobsByMessage := make(map[string]int64, len(enqueued))
	for _, e := range enqueued {
		jobsByMessage[e.MessageID] = e.JobID
	}
	for i := range responses {
		responses[i].JobID = jobsByMessage[responses[i].MessageID]
	}

	return c.Status(fiber.StatusCreated).JSON(CreateBatchResponse{
		Messages: responses,
		Total:    len(responses),
	})
}

func (h *Handler) GetMessage(c *fiber.Ctx) error {
	msg, err := h.messages.GetMessage(c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(MessageResponse{
		MessageID:         msg.ID,
		Type:              string(msg.Type),
		Direction:         string(msg.Direction),
		To:                msg.Recipients(),
		From:              msg.FromAddress,
		Body:              msg.Body,
		Status:            string(msg.Status),
		Provider:          msg.Provider,
		ProviderMessageID: msg.ProviderMessageID,
		FailureReason:     msg.FailureReason,
		AttemptCount:      msg.AttemptCount,
		CreatedAt:         msg.CreatedAt,
		QueuedAt:          msg.QueuedAt,
		SentAt:            msg.SentAt,
		FailedAt:          msg.FailedAt,
	})
}

// IngestWebhook accepts raw provider callbacks, normalizes them into webhook
// commands and hands them to the ingest queue. The provider gets a 202 as
// soon as the events are on the queue; all real processing is asynchronous.
func (h *Handler) IngestWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	providerName := c.Params("provider")

	events, err := h.normalizeWebhookBody(c)
	if err != nil {
		h.logger.Warn("Failed to parse webhook payload",
			zap.String("provider", providerName),
			zap.Error(err))
		return badRequestBody(c)
	}

	accepted := 0
	for _, event := range events {
		for _, cmd := range classifyWebhookEvent(providerName, event) {
			body, _ := json.Marshal(cmd)
			if err := h.publisher.Publish(ctx, "", model.QueueWebhookIn, body); err != nil {
				h.logger.Error("Failed to publish webhook event",
					zap.String("provider", providerName),
					zap.String("type", cmd.Type),
					zap.Error(err))
				return fiber.NewError(fiber.StatusServiceUnavailable, "webhook queue unavailable")
			}
			accepted++
		}
	}

	h.logger.Info("Webhook events accepted",
		zap.String("provider", providerName),
		zap.Int("accepted", accepted))

	return c.Status(fiber.StatusAccepted).JSON(WebhookAcceptedResponse{Accepted: accepted})
}

func (h *Handler) MetricsSummary(c *fiber.Ctx) error {
	byType := make(map[string]telemetry.TypeMetrics, 3)
	for _, t := range []model.MessageType{model.MessageTypeSMS, model.MessageTypeMMS, model.MessageTypeEmail} {
		byType[string(t)] = h.aggregator.MetricsByType(string(t))
	}

	return c.JSON(fiber.Map{
		"success_rate":    h.aggregator.SuccessRate(),
		"avg_duration_ms": h.aggregator.AverageDuration(),
		"by_type":         byType,
		"transitions": fiber.Map{
			"queued_to_processing": h.aggregator.TransitionMetrics(
				string(model.MessageStatusQueued), string(model.MessageStatusProcessing)),
			"processing_to_sent": h.aggregator.TransitionMetrics(
				string(model.MessageStatusProcessing), string(model.MessageStatusSent)),
		},
		"recent_activity": h.aggregator.RecentActivity(),
	})
}

// normalizeWebhookBody flattens the callback body into JSON objects: form
// posts (Twilio) become a single object, JSON arrays (SendGrid event batches)
// become one object per element.
func (h *Handler) normalizeWebhookBody(c *fiber.Ctx) ([]json.RawMessage, error) {
	body := c.Body()

	if strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationForm) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}

		fields := make(map[string]string, len(values))
		for k := range values {
			fields[k] = values.Get(k)
		}

		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}

		return []json.RawMessage{raw}, nil
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var events []json.RawMessage
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}

	return []json.RawMessage{single}, nil
}

// classifyWebhookEvent decides which webhook command types one raw event
// produces. A SendGrid bounce yields both the terminal status update and the
// bounce notification.
func classifyWebhookEvent(providerName string, event json.RawMessage) []service.WebhookCommand {
	var probe struct {
		MessageStatus string `json:"MessageStatus"`
		MessageSid    string `json:"MessageSid"`
		Event         string `json:"event"`
	}
	_ = json.Unmarshal(event, &probe)

	var types []string

	switch providerName {
	case service.WebhookProviderTwilio:
		if probe.MessageStatus != "" {
			types = append(types, service.WebhookTypeDeliveryStatus)
		} else {
			types = append(types, service.WebhookTypeInboundMessage)
		}

	case service.WebhookProviderSendgrid:
		if probe.Event != "" {
			types = append(types, service.WebhookTypeDeliveryStatus)
			if probe.Event == "bounce" {
				types = append(types, service.WebhookTypeBounce)
			}
		} else {
			types = append(types, service.WebhookTypeInboundMessage)
		}

	default:
		// let the worker reject it with the provider name in the log
		types = append(types, service.WebhookTypeDeliveryStatus)
	}

	commands := make([]service.WebhookCommand, 0, len(types))
	for _, t := range types {
		commands = append(commands, service.WebhookCommand{
			Type:     t,
			Provider: providerName,
			Payload:  event,
		})
	}

	return commands
}

func toCreateCommand(req CreateMessageRequest) service.CreateMessageCommand {
	cmd := service.CreateMessageCommand{
		Type: req.Type,
		To:   req.To,
		From: req.From,
		Body: req.Body,
	}

	for _, att := range req.Attachments {
		cmd.Attachments = append(cmd.Attachments, service.AttachmentInput{
			URL:         att.URL,
			Blob:        att.Blob,
			Type:        att.Type,
			ContentType: att.ContentType,
			Filename:    att.Filename,
		})
	}

	return cmd
}

func badRequestBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"code":    constants.ErrCodeInvalidRequestBody,
		"message": constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody),
	})
}
