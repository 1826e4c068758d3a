package service

import "errors"

var (
	ErrMessageNotFound         = errors.New("MESSAGE_NOT_FOUND")
	ErrMessageBeingProcessed   = errors.New("MESSAGE_BEING_PROCESSED")
	ErrMessageAlreadyProcessed = errors.New("MESSAGE_ALREADY_PROCESSED")
	ErrMessageNotEnqueued      = errors.New("MESSAGE_NOT_ENQUEUED")
	ErrUnknownMessageStatus    = errors.New("UNKNOWN_MESSAGE_STATUS")
	ErrUnknownWebhookType      = errors.New("UNKNOWN_WEBHOOK_TYPE")
	ErrDatabase                = errors.New("DATABASE_ERROR")
)

// UnsupportedProviderError is returned for webhook payloads from a provider
// this gateway does not integrate; parsing is not attempted.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return "Unsupported provider: " + e.Provider
}

// MissingFieldsError reports webhook payloads lacking their required keys.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	msg := "missing required fields:"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ","
		}
		msg += " " + f
	}
	return msg
}

type Error struct {
	Code  string
	Cause error
}

func NewServiceError(code string, cause error) error {
	return Error{Code: code, Cause: cause}
}

func (e Error) Error() string {
	return e.Cause.Error()
}

func (e Error) Unwrap() error {
	return e.Cause
}
