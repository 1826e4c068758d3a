package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/relaymsg/gateway/pkg/httpclient"
	"go.uber.org/zap"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// Twilio-style SMS/MMS provider. Responses carry a message SID on success and
// a {"message": "..."} envelope on failure.
type Twilio struct {
	name       string
	accountSID string
	authToken  string
	baseURL    string
	client     httpclient.HTTPClient
	logger     *zap.Logger
}

func NewTwilioProvider(entry Entry, client httpclient.HTTPClient, logger *zap.Logger) Provider {
	baseURL := entry.Credentials["base_url"]
	if baseURL == "" {
		baseURL = twilioDefaultBaseURL
	}

	return &Twilio{
		name:       entry.Name,
		accountSID: entry.Credentials["account_sid"],
		authToken:  entry.Credentials["auth_token"],
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		logger:     logger,
	}
}

func (t *Twilio) Name() string { return t.name }

func (t *Twilio) Supports(mt MessageType) bool {
	return mt == TypeSMS || mt == TypeMMS
}

func (t *Twilio) Send(ctx context.Context, req Request) (Result, error) {
	if len(req.To) == 0 {
		return Result{}, sendErr(ErrorCodeRejected, "missing recipient")
	}

	form := url.Values{}
	form.Set("To", req.To[0])
	form.Set("From", req.From)
	form.Set("Body", req.Body)

	for _, att := range req.Attachments {
		if att.URL != "" {
			form.Add("MediaUrl", att.URL)
		}
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	headers := map[string]string{"Authorization": basicAuth(t.accountSID, t.authToken)}

	resp, err := t.client.PostForm(ctx, endpoint, form, headers)
	if err != nil {
		return Result{}, mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)

		return Result{}, mapStatusError(resp.StatusCode, envelope.Message)
	}

	var body struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.SID == "" {
		return Result{}, sendErr(ErrorCodeServerError, "malformed provider response")
	}

	t.logger.Debug("twilio message accepted",
		zap.String("provider", t.name),
		zap.String("providerMessageID", body.SID))

	return Result{MessageID: body.SID, Provider: t.name}, nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func mapNetworkError(err error) *SendError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sendErr(ErrorCodeTimeout, "provider request timed out")
	}
	return sendErr(ErrorCodeNetworkError, "provider unreachable: "+err.Error())
}

func mapStatusError(status int, message string) *SendError {
	if message == "" {
		message = fmt.Sprintf("provider returned status %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return sendErr(ErrorCodeAuthFailed, message)
	case status >= 400 && status < 500:
		return sendErr(ErrorCodeRejected, message)
	default:
		return sendErr(ErrorCodeServerError, message)
	}
}
