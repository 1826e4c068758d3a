package model_test

import (
	"testing"
	"time"

	"github.com/relaymsg/gateway/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMessageStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    model.MessageStatus
		to      model.MessageStatus
		allowed bool
	}{
		{model.MessageStatusPending, model.MessageStatusQueued, true},
		{model.MessageStatusQueued, model.MessageStatusProcessing, true},
		{model.MessageStatusProcessing, model.MessageStatusSent, true},
		{model.MessageStatusProcessing, model.MessageStatusFailed, true},

		{model.MessageStatusPending, model.MessageStatusProcessing, false},
		{model.MessageStatusPending, model.MessageStatusSent, false},
		{model.MessageStatusQueued, model.MessageStatusSent, false},
		{model.MessageStatusQueued, model.MessageStatusPending, false},
		{model.MessageStatusSent, model.MessageStatusFailed, false},
		{model.MessageStatusSent, model.MessageStatusProcessing, false},
		{model.MessageStatusFailed, model.MessageStatusQueued, false},
		{model.MessageStatusFailed, model.MessageStatusSent, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestMessageStatus_Terminal(t *testing.T) {
	assert.True(t, model.MessageStatusSent.Terminal())
	assert.True(t, model.MessageStatusFailed.Terminal())
	assert.False(t, model.MessageStatusPending.Terminal())
	assert.False(t, model.MessageStatusQueued.Terminal())
	assert.False(t, model.MessageStatusProcessing.Terminal())
}

func TestMessage_Transition(t *testing.T) {
	t.Run("full lifecycle stamps each timestamp once", func(t *testing.T) {
		msg := &model.Message{Status: model.MessageStatusPending}

		t1 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
		t2 := t1.Add(time.Second)
		t3 := t2.Add(time.Second)

		assert.NoError(t, msg.Transition(model.MessageStatusQueued, t1))
		assert.NoError(t, msg.Transition(model.MessageStatusProcessing, t2))
		assert.NoError(t, msg.Transition(model.MessageStatusSent, t3))

		assert.Equal(t, model.MessageStatusSent, msg.Status)
		assert.Equal(t, t1, *msg.QueuedAt)
		assert.Equal(t, t3, *msg.SentAt)
		assert.Nil(t, msg.FailedAt)

		assert.True(t, !msg.SentAt.Before(*msg.QueuedAt))
	})

	t.Run("failure path sets failed_at and not sent_at", func(t *testing.T) {
		msg := &model.Message{Status: model.MessageStatusProcessing}

		now := time.Now()
		assert.NoError(t, msg.Transition(model.MessageStatusFailed, now))

		assert.Equal(t, model.MessageStatusFailed, msg.Status)
		assert.NotNil(t, msg.FailedAt)
		assert.Nil(t, msg.SentAt)
	})

	t.Run("invalid transition leaves message untouched", func(t *testing.T) {
		msg := &model.Message{Status: model.MessageStatusPending}

		err := msg.Transition(model.MessageStatusSent, time.Now())

		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		assert.Equal(t, model.MessageStatusPending, msg.Status)
		assert.Nil(t, msg.SentAt)
	})

	t.Run("terminal statuses reject every transition", func(t *testing.T) {
		for _, from := range []model.MessageStatus{model.MessageStatusSent, model.MessageStatusFailed} {
			for _, to := range []model.MessageStatus{
				model.MessageStatusPending, model.MessageStatusQueued,
				model.MessageStatusProcessing, model.MessageStatusSent, model.MessageStatusFailed,
			} {
				msg := &model.Message{Status: from}
				assert.ErrorIs(t, msg.Transition(to, time.Now()), model.ErrInvalidTransition)
			}
		}
	})
}

func TestMessage_MarkSent(t *testing.T) {
	msg := &model.Message{Status: model.MessageStatusProcessing}

	err := msg.MarkSent("SM123", "twilio", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, msg.Status)
	assert.Equal(t, "SM123", *msg.ProviderMessageID)
	assert.Equal(t, "twilio", *msg.Provider)
}

func TestMessage_MarkFailed(t *testing.T) {
	msg := &model.Message{Status: model.MessageStatusProcessing}

	err := msg.MarkFailed("provider rejected", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, model.MessageStatusFailed, msg.Status)
	assert.Equal(t, "provider rejected", *msg.FailureReason)
	assert.NotNil(t, msg.FailedAt)
	assert.Nil(t, msg.SentAt)
}

func TestMessage_Recipients(t *testing.T) {
	msg := &model.Message{ToAddress: "a@example.com, b@example.com,,c@example.com"}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, msg.Recipients())
}

func TestMessage_CarriesAttachments(t *testing.T) {
	assert.False(t, (&model.Message{Type: model.MessageTypeSMS}).CarriesAttachments())
	assert.True(t, (&model.Message{Type: model.MessageTypeMMS}).CarriesAttachments())
	assert.True(t, (&model.Message{Type: model.MessageTypeEmail}).CarriesAttachments())
}
