package model

import "time"

const (
	QueueDeliverySend = "delivery.send"
	QueueWebhookIn    = "webhook.ingest"
)

const (
	// DeliveryMaxAttempts bounds retries of transient infrastructure failures
	// while driving one message to a terminal status.
	DeliveryMaxAttempts = 3
	// WebhookMaxAttempts is higher since providers re-deliver webhooks and
	// ingestion must tolerate being retried.
	WebhookMaxAttempts = 5
)

// DeliveryJob is the durable queue-side record of one enqueue. The scheduler
// publishes unpublished jobs whose ScheduledAt has passed; jobs without a
// ScheduledAt are published immediately at enqueue time.
type DeliveryJob struct {
	ID          int64      `gorm:"primaryKey;autoIncrement;<-:create"`
	MessageID   string     `gorm:"type:varchar(36);not null;index;<-:create"`
	Queue       string     `gorm:"type:varchar(64);not null"`
	ScheduledAt *time.Time `gorm:"type:timestamp;null;index"`
	Published   bool       `gorm:"default:false;not null"`
	PublishedAt *time.Time `gorm:"type:timestamp;null"`
	Attempts    int        `gorm:"default:0;not null"`
	MaxAttempts int        `gorm:"default:3;not null"`
	LastError   *string    `gorm:"type:text;null"`
	CreatedAt   time.Time  `gorm:"type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `gorm:"type:timestamp;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"`

	Message Message `gorm:"foreignKey:MessageID"`
}
