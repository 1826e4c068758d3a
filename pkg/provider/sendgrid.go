package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/relaymsg/gateway/pkg/httpclient"
	"go.uber.org/zap"
)

const sendgridDefaultBaseURL = "https://api.sendgrid.com"

// Sendgrid-style email provider. Success is a 202 with the provider message
// id in the X-Message-Id header; failures carry an {"errors":[{"message"}]}
// envelope.
type Sendgrid struct {
	name    string
	apiKey  string
	baseURL string
	client  httpclient.HTTPClient
	logger  *zap.Logger
}

func NewSendgridProvider(entry Entry, client httpclient.HTTPClient, logger *zap.Logger) Provider {
	baseURL := entry.Credentials["base_url"]
	if baseURL == "" {
		baseURL = sendgridDefaultBaseURL
	}

	return &Sendgrid{
		name:    entry.Name,
		apiKey:  entry.Credentials["api_key"],
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

func (s *Sendgrid) Name() string { return s.name }

func (s *Sendgrid) Supports(mt MessageType) bool {
	return mt == TypeEmail
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridAttachment struct {
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type sendgridMail struct {
	Personalizations []struct {
		To []sendgridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendgridAddress `json:"from"`
	Subject string          `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
	Attachments []sendgridAttachment `json:"attachments,omitempty"`
}

func (s *Sendgrid) Send(ctx context.Context, req Request) (Result, error) {
	payload := sendgridMail{
		From:    sendgridAddress{Email: req.From},
		Subject: "Message",
		Content: []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}{{Type: "text/html", Value: req.Body}},
	}

	payload.Personalizations = make([]struct {
		To []sendgridAddress `json:"to"`
	}, 1)
	for _, to := range req.To {
		payload.Personalizations[0].To = append(payload.Personalizations[0].To, sendgridAddress{Email: to})
	}

	for _, att := range req.Attachments {
		if len(att.Data) == 0 {
			continue
		}
		payload.Attachments = append(payload.Attachments, sendgridAttachment{
			Content:  base64.StdEncoding.EncodeToString(att.Data),
			Type:     att.ContentType,
			Filename: att.Filename,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, sendErr(ErrorCodeServerError, "failed to encode mail payload: "+err.Error())
	}

	headers := map[string]string{
		"Authorization": "Bearer " + s.apiKey,
		"Content-Type":  "application/json",
	}

	resp, err := s.client.Post(ctx, s.baseURL+"/v3/mail/send", bytes.NewReader(body), headers)
	if err != nil {
		return Result{}, mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)

		message := ""
		if len(envelope.Errors) > 0 {
			message = envelope.Errors[0].Message
		}

		return Result{}, mapStatusError(resp.StatusCode, message)
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		return Result{}, sendErr(ErrorCodeServerError, "provider response missing message id")
	}

	s.logger.Debug("sendgrid mail accepted",
		zap.String("provider", s.name),
		zap.String("providerMessageID", messageID))

	return Result{MessageID: messageID, Provider: s.name}, nil
}
