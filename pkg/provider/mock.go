package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/relaymsg/gateway/pkg/httpclient"
	"go.uber.org/zap"
)

// Mock is the client for the local mock-provider simulator. It accepts every
// message type, which makes it the default provider in dev and test.
type Mock struct {
	name    string
	baseURL string
	apiKey  string
	client  httpclient.HTTPClient
	logger  *zap.Logger
}

func NewMockProvider(entry Entry, client httpclient.HTTPClient, logger *zap.Logger) Provider {
	baseURL := entry.Credentials["base_url"]
	if baseURL == "" {
		baseURL = "http://localhost:4010"
	}

	return &Mock{
		name:    entry.Name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  entry.Credentials["api_key"],
		client:  client,
		logger:  logger,
	}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Supports(MessageType) bool { return true }

type mockSendRequest struct {
	Type        string           `json:"type"`
	To          []string         `json:"to"`
	From        string           `json:"from"`
	Body        string           `json:"body"`
	Attachments []mockAttachment `json:"attachments,omitempty"`
}

type mockAttachment struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

func (m *Mock) Send(ctx context.Context, req Request) (Result, error) {
	payload := mockSendRequest{
		Type: string(req.Type),
		To:   req.To,
		From: req.From,
		Body: req.Body,
	}

	for _, att := range req.Attachments {
		payload.Attachments = append(payload.Attachments, mockAttachment{
			URL:         att.URL,
			ContentType: att.ContentType,
			Filename:    att.Filename,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, sendErr(ErrorCodeServerError, "failed to encode request: "+err.Error())
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if m.apiKey != "" {
		headers["X-Api-Key"] = m.apiKey
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/v1/messages", bytes.NewReader(body), headers)
	if err != nil {
		return Result{}, mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)

		return Result{}, mapStatusError(resp.StatusCode, envelope.Error)
	}

	var response struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil || response.MessageID == "" {
		return Result{}, sendErr(ErrorCodeServerError, "malformed provider response")
	}

	m.logger.Debug("mock provider accepted message",
		zap.String("provider", m.name),
		zap.String("providerMessageID", response.MessageID))

	return Result{MessageID: response.MessageID, Provider: m.name}, nil
}
