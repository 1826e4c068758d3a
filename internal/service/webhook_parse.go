package service

import (
	"encoding/json"
	"strconv"

	"github.com/relaymsg/gateway/internal/constants"
	"github.com/relaymsg/gateway/internal/model"
)

// DeliveryStatusReport is a provider delivery report reduced to the fields
// the pipeline cares about. Status keeps the provider's own vocabulary.
type DeliveryStatusReport struct {
	ProviderMessageID string
	Status            string
}

// BounceReport carries an email bounce notification.
type BounceReport struct {
	ProviderMessageID string
	Recipient         string
	Reason            string
}

func parseDeliveryStatus(providerName string, payload json.RawMessage) (DeliveryStatusReport, error) {
	fields, err := decodeFields(payload)
	if err != nil {
		return DeliveryStatusReport{}, err
	}

	switch providerName {
	case WebhookProviderTwilio:
		if err := requireFields(fields, "MessageSid", "MessageStatus"); err != nil {
			return DeliveryStatusReport{}, err
		}

		return DeliveryStatusReport{
			ProviderMessageID: fields["MessageSid"],
			Status:            fields["MessageStatus"],
		}, nil

	case WebhookProviderSendgrid:
		if err := requireFields(fields, "sg_message_id", "event"); err != nil {
			return DeliveryStatusReport{}, err
		}

		return DeliveryStatusReport{
			ProviderMessageID: fields["sg_message_id"],
			Status:            fields["event"],
		}, nil

	default:
		return DeliveryStatusReport{}, &UnsupportedProviderError{Provider: providerName}
	}
}

func parseInboundMessage(providerName string, payload json.RawMessage) (CreateInboundCommand, error) {
	fields, err := decodeFields(payload)
	if err != nil {
		return CreateInboundCommand{}, err
	}

	switch providerName {
	case WebhookProviderTwilio:
		if err := requireFields(fields, "MessageSid", "From", "To"); err != nil {
			return CreateInboundCommand{}, err
		}

		msgType := model.MessageTypeSMS
		if n, _ := strconv.Atoi(fields["NumMedia"]); n > 0 {
			msgType = model.MessageTypeMMS
		}

		return CreateInboundCommand{
			Type:              msgType,
			From:              fields["From"],
			To:                fields["To"],
			Body:              fields["Body"],
			Provider:          providerName,
			ProviderMessageID: fields["MessageSid"],
		}, nil

	case WebhookProviderSendgrid:
		if err := requireFields(fields, "message_id", "from", "to"); err != nil {
			return CreateInboundCommand{}, err
		}

		body := fields["text"]
		if body == "" {
			body = fields["html"]
		}

		return CreateInboundCommand{
			Type:              model.MessageTypeEmail,
			From:              fields["from"],
			To:                fields["to"],
			Body:              body,
			Provider:          providerName,
			ProviderMessageID: fields["message_id"],
		}, nil

	default:
		return CreateInboundCommand{}, &UnsupportedProviderError{Provider: providerName}
	}
}

func parseBounce(providerName string, payload json.RawMessage) (BounceReport, error) {
	fields, err := decodeFields(payload)
	if err != nil {
		return BounceReport{}, err
	}

	switch providerName {
	case WebhookProviderSendgrid:
		if err := requireFields(fields, "sg_message_id", "email"); err != nil {
			return BounceReport{}, err
		}

		return BounceReport{
			ProviderMessageID: fields["sg_message_id"],
			Recipient:         fields["email"],
			Reason:            fields["reason"],
		}, nil

	default:
		return BounceReport{}, &UnsupportedProviderError{Provider: providerName}
	}
}

// decodeFields flattens a webhook payload object into string values. Numbers
// and booleans are stringified so form-derived and JSON payloads parse alike.
func decodeFields(payload json.RawMessage) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, NewServiceError(constants.ErrCodeInvalidRequestBody, err)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}

	return fields, nil
}

func requireFields(fields map[string]string, names ...string) error {
	var missing []string
	for _, name := range names {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	return nil
}
