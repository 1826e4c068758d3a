package model

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeSMS   MessageType = "sms"
	MessageTypeMMS   MessageType = "mms"
	MessageTypeEmail MessageType = "email"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "pending"
	MessageStatusQueued     MessageStatus = "queued"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusSent       MessageStatus = "sent"
	MessageStatusFailed     MessageStatus = "failed"

	// MessageStatusReceived marks inbound messages created from provider
	// webhooks; they never enter the outbound delivery lifecycle.
	MessageStatusReceived MessageStatus = "received"
)

// MaxBodyLength caps sms and mms bodies. Email bodies are unconstrained.
const MaxBodyLength = 1600

type Message struct {
	ID                string        `gorm:"primaryKey;type:varchar(36);<-:create"`
	Type              MessageType   `gorm:"type:enum('sms','mms','email');not null"`
	Direction         Direction     `gorm:"type:enum('inbound','outbound');not null"`
	ToAddress         string        `gorm:"column:to_address;type:varchar(1024);not null"`
	FromAddress       string        `gorm:"column:from_address;type:varchar(255);not null"`
	Body              string        `gorm:"type:text"`
	Status            MessageStatus `gorm:"type:enum('pending','queued','processing','sent','failed','received');not null"`
	Provider          *string       `gorm:"type:varchar(64)"`
	ProviderMessageID *string       `gorm:"column:provider_message_id;type:varchar(255);index"`
	QueuedAt          *time.Time    `gorm:"type:timestamp;null"`
	SentAt            *time.Time    `gorm:"type:timestamp;null"`
	FailedAt          *time.Time    `gorm:"type:timestamp;null"`
	FailureReason     *string       `gorm:"type:text;null"`
	AttemptCount      int           `gorm:"default:0;not null"`
	LastAttemptAt     *time.Time    `gorm:"type:timestamp;null"`
	CreatedAt         time.Time     `gorm:"type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time     `gorm:"type:timestamp;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"`

	Attachments []Attachment `gorm:"foreignKey:MessageID"`
}

// Recipients splits the stored address list. Email messages may carry more
// than one recipient; sms and mms always carry exactly one.
func (m *Message) Recipients() []string {
	parts := strings.Split(m.ToAddress, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CarriesAttachments reports whether this message type forwards attachments
// to the provider. Plain sms never does.
func (m *Message) CarriesAttachments() bool {
	return m.Type == MessageTypeMMS || m.Type == MessageTypeEmail
}
