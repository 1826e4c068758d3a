package provider

import (
	"context"
)

type MessageType string

const (
	TypeSMS   MessageType = "sms"
	TypeMMS   MessageType = "mms"
	TypeEmail MessageType = "email"
)

// AttachmentRef is a normalized attachment reference forwarded to a provider.
// Either URL or Data is set, never both.
type AttachmentRef struct {
	URL         string
	ContentType string
	Filename    string
	Data        []byte
}

// Request is the canonical outbound request shared by every provider client.
type Request struct {
	Type        MessageType
	To          []string
	From        string
	Body        string
	Attachments []AttachmentRef
}

// Result is the canonical outcome of a successful provider submission.
type Result struct {
	MessageID string
	Provider  string
}

// Provider is one configured external messaging API. Send performs exactly one
// network call; every failure path resolves to a *SendError, never a panic.
type Provider interface {
	Name() string
	Supports(t MessageType) bool
	Send(ctx context.Context, req Request) (Result, error)
}
