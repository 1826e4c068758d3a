package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/relaymsg/gateway/pkg/httpclient"
	"go.uber.org/zap"
)

const (
	KindTwilio   = "twilio"
	KindSendgrid = "sendgrid"
	KindMock     = "mock"
)

// Entry is one named provider configuration. Declaration order matters:
// Resolve picks the first enabled entry that supports the message type.
type Entry struct {
	Name        string            `mapstructure:"name"`
	Kind        string            `mapstructure:"kind"`
	Credentials map[string]string `mapstructure:"credentials"`
	Enabled     bool              `mapstructure:"enabled"`
}

// Factory builds a provider client from its configuration entry.
type Factory func(entry Entry, client httpclient.HTTPClient, logger *zap.Logger) Provider

// Builders maps provider kinds to factories. New kinds are added through
// Register without touching the registry itself.
type Builders struct {
	factories map[string]Factory
}

func NewBuilders() *Builders {
	return &Builders{factories: map[string]Factory{}}
}

// DefaultBuilders returns the built-in provider set.
func DefaultBuilders() *Builders {
	b := NewBuilders()
	b.Register(KindTwilio, NewTwilioProvider)
	b.Register(KindSendgrid, NewSendgridProvider)
	b.Register(KindMock, NewMockProvider)
	return b
}

func (b *Builders) Register(kind string, f Factory) {
	b.factories[kind] = f
}

func (b *Builders) kinds() []string {
	out := make([]string, 0, len(b.factories))
	for k := range b.factories {
		out = append(out, k)
	}
	return out
}

// FieldError is one credential-level configuration problem.
type FieldError struct {
	Provider string
	Field    string
	Reason   string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Provider, e.Field, e.Reason)
}

// ValidationError aggregates every violation found, not just the first.
type ValidationError struct {
	Violations []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return "invalid provider configuration: " + strings.Join(msgs, "; ")
}

// Registry holds the configured provider clients. It is immutable after
// construction and safe to share across workers; reconfiguration is a new
// registry, never an in-place edit.
type Registry struct {
	entries   []Entry
	providers map[string]Provider
	logger    *zap.Logger
}

func NewRegistry(entries []Entry, builders *Builders, client httpclient.HTTPClient, logger *zap.Logger) (*Registry, error) {
	if err := Validate(entries, builders); err != nil {
		return nil, err
	}

	providers := make(map[string]Provider, len(entries))
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		providers[entry.Name] = builders.factories[entry.Kind](entry, client, logger)
	}

	return &Registry{entries: entries, providers: providers, logger: logger}, nil
}

// Resolve returns the first enabled provider, in declaration order, whose
// capability set includes the message type.
func (r *Registry) Resolve(t MessageType) (Provider, error) {
	anyEnabled := false
	for _, entry := range r.entries {
		if !entry.Enabled {
			continue
		}
		anyEnabled = true

		p := r.providers[entry.Name]
		if p.Supports(t) {
			return p, nil
		}
	}

	if !anyEnabled {
		return nil, ErrAllProvidersDisabled
	}

	return nil, ErrNoProviderForType
}

var (
	accountSIDPattern = regexp.MustCompile(`^AC[a-zA-Z0-9]{32,}$`)
	authTokenPattern  = regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`)
)

// Validate checks every enabled entry and returns all field-level violations.
// Validation is pure: the same input always yields the same error set.
func Validate(entries []Entry, builders *Builders) error {
	var violations []FieldError

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}

		if _, ok := builders.factories[entry.Kind]; !ok {
			violations = append(violations, FieldError{
				Provider: entry.Name,
				Field:    "kind",
				Reason:   fmt.Sprintf("unknown provider kind %q (known: %s)", entry.Kind, strings.Join(builders.kinds(), ", ")),
			})
			continue
		}

		violations = append(violations, validateCredentials(entry)...)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return nil
}

func validateCredentials(entry Entry) []FieldError {
	var violations []FieldError

	field := func(name, reason string) {
		violations = append(violations, FieldError{Provider: entry.Name, Field: name, Reason: reason})
	}

	switch entry.Kind {
	case KindTwilio:
		sid := entry.Credentials["account_sid"]
		if sid == "" {
			field("account_sid", "is required")
		} else if !accountSIDPattern.MatchString(sid) {
			field("account_sid", "must start with AC followed by at least 32 alphanumeric characters")
		}

		token := entry.Credentials["auth_token"]
		if token == "" {
			field("auth_token", "is required")
		} else if !authTokenPattern.MatchString(token) {
			field("auth_token", "must be at least 32 alphanumeric characters")
		}

	case KindSendgrid:
		key := entry.Credentials["api_key"]
		if key == "" {
			field("api_key", "is required")
		} else if !strings.HasPrefix(key, "SG.") || len(key) < 20 {
			field("api_key", "must start with SG. and be at least 20 characters")
		}

	case KindMock:
		// the mock provider needs no credentials
	}

	return violations
}

// DefaultEntries returns environment-specific built-in configurations.
// Development and test point at the local mock simulator; production has no
// defaults and requires explicit credentials.
func DefaultEntries(environment string) []Entry {
	switch environment {
	case "dev", "test":
		return []Entry{
			{
				Name:        "mock",
				Kind:        KindMock,
				Credentials: map[string]string{"base_url": "http://localhost:4010"},
				Enabled:     true,
			},
		}
	default:
		return nil
	}
}
