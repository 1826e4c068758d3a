package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("INVALID_STATUS_TRANSITION")

// Delivery lifecycle: pending -> queued -> processing -> sent | failed.
// sent and failed are terminal; re-delivery is a new message, never a reopened one.
var allowedTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusPending:    {MessageStatusQueued},
	MessageStatusQueued:     {MessageStatusProcessing},
	MessageStatusProcessing: {MessageStatusSent, MessageStatusFailed},
}

func (s MessageStatus) Terminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

func (s MessageStatus) CanTransitionTo(to MessageStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the message to the next status, stamping the matching
// timestamp exactly once. An attempt from an unexpected current state is an
// invariant violation and leaves the message untouched.
func (m *Message) Transition(to MessageStatus, now time.Time) error {
	if !m.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}

	switch to {
	case MessageStatusQueued:
		if m.QueuedAt == nil {
			t := now
			m.QueuedAt = &t
		}
	case MessageStatusSent:
		if m.SentAt == nil {
			t := now
			m.SentAt = &t
		}
	case MessageStatusFailed:
		if m.FailedAt == nil {
			t := now
			m.FailedAt = &t
		}
	}

	m.Status = to
	m.UpdatedAt = now

	return nil
}

// MarkSent records the provider outcome alongside the terminal transition.
func (m *Message) MarkSent(providerMsgID, providerName string, now time.Time) error {
	if err := m.Transition(MessageStatusSent, now); err != nil {
		return err
	}

	m.ProviderMessageID = &providerMsgID
	m.Provider = &providerName

	return nil
}

// MarkFailed records the terminal failure with a flattened reason string.
// Structured errors never cross this boundary.
func (m *Message) MarkFailed(reason string, now time.Time) error {
	if err := m.Transition(MessageStatusFailed, now); err != nil {
		return err
	}

	m.FailureReason = &reason

	return nil
}
