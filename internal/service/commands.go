package service

import (
	"encoding/json"
	"time"
)

// AttachmentInput is one attachment supplied at message creation. Exactly one
// of URL or Blob must be set.
type AttachmentInput struct {
	URL         string
	Blob        []byte
	Type        string
	ContentType string
	Filename    string
}

type CreateMessageCommand struct {
	Type        string
	To          []string
	From        string
	Body        string
	Attachments []AttachmentInput
}

type CreateMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SendMessageCommand is the delivery queue payload.
type SendMessageCommand struct {
	MessageID string `json:"message_id"`
	JobID     int64  `json:"job_id"`
}

// WebhookCommand is the webhook ingestion queue payload. Attempt counts
// re-publications after transient failures.
type WebhookCommand struct {
	Type     string          `json:"type"`
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload"`
	Attempt  int             `json:"attempt"`
}

type EnqueueOptions struct {
	ScheduledAt *time.Time
	Queue       string
}

type EnqueueResponse struct {
	JobID     int64  `json:"job_id"`
	MessageID string `json:"message_id"`
}
