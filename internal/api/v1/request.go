package v1

import "time"

type AttachmentRequest struct {
	URL         string `json:"url"`
	Blob        []byte `json:"blob"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

type CreateMessageRequest struct {
	Type        string              `json:"type"`
	To          []string            `json:"to"`
	From        string              `json:"from"`
	Body        string              `json:"body"`
	Attachments []AttachmentRequest `json:"attachments"`
	ScheduledAt *time.Time          `json:"scheduled_at"`
}

type CreateBatchRequest struct {
	Messages []CreateMessageRequest `json:"messages"`
}
