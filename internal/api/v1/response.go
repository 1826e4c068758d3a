package v1

import "time"

type CreateMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	JobID     int64  `json:"job_id,omitempty"`
}

type CreateBatchResponse struct {
	Messages []CreateMessageResponse `json:"messages"`
	Total    int                     `json:"total"`
}

type MessageResponse struct {
	MessageID         string     `json:"message_id"`
	Type              string     `json:"type"`
	Direction         string     `json:"direction"`
	To                []string   `json:"to"`
	From              string     `json:"from"`
	Body              string     `json:"body"`
	Status            string     `json:"status"`
	Provider          *string    `json:"provider,omitempty"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	AttemptCount      int        `json:"attempt_count"`
	CreatedAt         time.Time  `json:"created_at"`
	QueuedAt          *time.Time `json:"queued_at,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
}

type WebhookAcceptedResponse struct {
	Accepted int `json:"accepted"`
}
