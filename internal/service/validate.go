package service

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/relaymsg/gateway/internal/model"
)

var (
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateForDelivery rejects malformed messages before any network attempt.
// Violations are terminal: the message is marked failed, never retried.
func ValidateForDelivery(msg *model.Message) error {
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return errors.New("missing recipient")
	}

	switch msg.Type {
	case model.MessageTypeSMS, model.MessageTypeMMS:
		if len(recipients) > 1 {
			return fmt.Errorf("%s supports a single recipient, got %d", msg.Type, len(recipients))
		}
		for _, to := range recipients {
			if !phonePattern.MatchString(to) {
				return fmt.Errorf("malformed recipient %q", to)
			}
		}
		if msg.FromAddress != "" && !phonePattern.MatchString(msg.FromAddress) {
			return fmt.Errorf("malformed sender %q", msg.FromAddress)
		}
		if utf8.RuneCountInString(msg.Body) > model.MaxBodyLength {
			return fmt.Errorf("body exceeds %d characters", model.MaxBodyLength)
		}
		if msg.Body == "" && msg.Type == model.MessageTypeSMS {
			return errors.New("empty body")
		}

	case model.MessageTypeEmail:
		for _, to := range recipients {
			if !emailPattern.MatchString(to) {
				return fmt.Errorf("malformed recipient %q", to)
			}
		}
		if !emailPattern.MatchString(msg.FromAddress) {
			return fmt.Errorf("malformed sender %q", msg.FromAddress)
		}

	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}

	return nil
}
