package provider_test

import (
	"testing"
	"time"

	"github.com/relaymsg/gateway/pkg/httpclient"
	"github.com/relaymsg/gateway/pkg/provider"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testAccountSID = "AC0123456789abcdef0123456789abcdef"
	testAuthToken  = "0123456789abcdef0123456789abcdef"
	testAPIKey     = "SG.0123456789abcdef.0123456789abcdef"
)

func twilioEntry(enabled bool) provider.Entry {
	return provider.Entry{
		Name: "twilio",
		Kind: provider.KindTwilio,
		Credentials: map[string]string{
			"account_sid": testAccountSID,
			"auth_token":  testAuthToken,
		},
		Enabled: enabled,
	}
}

func sendgridEntry(enabled bool) provider.Entry {
	return provider.Entry{
		Name:        "sendgrid",
		Kind:        provider.KindSendgrid,
		Credentials: map[string]string{"api_key": testAPIKey},
		Enabled:     enabled,
	}
}

func mockEntry(enabled bool) provider.Entry {
	return provider.Entry{
		Name:        "mock",
		Kind:        provider.KindMock,
		Credentials: map[string]string{"base_url": "http://localhost:4010"},
		Enabled:     enabled,
	}
}

func newRegistry(t *testing.T, entries []provider.Entry) *provider.Registry {
	t.Helper()

	client := httpclient.NewHTTPClient(time.Second)
	registry, err := provider.NewRegistry(entries, provider.DefaultBuilders(), client, zap.NewNop())
	assert.NoError(t, err)

	return registry
}

func TestRegistry_Resolve(t *testing.T) {
	t.Run("picks provider by message type", func(t *testing.T) {
		registry := newRegistry(t, []provider.Entry{twilioEntry(true), sendgridEntry(true)})

		sms, err := registry.Resolve(provider.TypeSMS)
		assert.NoError(t, err)
		assert.Equal(t, "twilio", sms.Name())

		email, err := registry.Resolve(provider.TypeEmail)
		assert.NoError(t, err)
		assert.Equal(t, "sendgrid", email.Name())
	})

	t.Run("declaration order wins among capable providers", func(t *testing.T) {
		registry := newRegistry(t, []provider.Entry{mockEntry(true), twilioEntry(true)})

		sms, err := registry.Resolve(provider.TypeSMS)
		assert.NoError(t, err)
		assert.Equal(t, "mock", sms.Name())
	})

	t.Run("skips disabled providers", func(t *testing.T) {
		registry := newRegistry(t, []provider.Entry{twilioEntry(false), mockEntry(true)})

		sms, err := registry.Resolve(provider.TypeSMS)
		assert.NoError(t, err)
		assert.Equal(t, "mock", sms.Name())
	})

	t.Run("no capable provider for type", func(t *testing.T) {
		registry := newRegistry(t, []provider.Entry{sendgridEntry(true)})

		_, err := registry.Resolve(provider.TypeSMS)
		assert.ErrorIs(t, err, provider.ErrNoProviderForType)
	})

	t.Run("all providers disabled", func(t *testing.T) {
		registry := newRegistry(t, []provider.Entry{twilioEntry(false), sendgridEntry(false)})

		_, err := registry.Resolve(provider.TypeSMS)
		assert.ErrorIs(t, err, provider.ErrAllProvidersDisabled)
	})
}

func TestValidate(t *testing.T) {
	builders := provider.DefaultBuilders()

	t.Run("valid configuration passes", func(t *testing.T) {
		entries := []provider.Entry{twilioEntry(true), sendgridEntry(true), mockEntry(true)}
		assert.NoError(t, provider.Validate(entries, builders))
	})

	t.Run("disabled entries are not validated", func(t *testing.T) {
		broken := provider.Entry{Name: "twilio", Kind: provider.KindTwilio, Enabled: false}
		assert.NoError(t, provider.Validate([]provider.Entry{broken}, builders))
	})

	t.Run("collects every violation", func(t *testing.T) {
		entries := []provider.Entry{
			{
				Name:        "twilio",
				Kind:        provider.KindTwilio,
				Credentials: map[string]string{"account_sid": "bogus"},
				Enabled:     true,
			},
			{
				Name:        "sendgrid",
				Kind:        provider.KindSendgrid,
				Credentials: map[string]string{"api_key": "nope"},
				Enabled:     true,
			},
		}

		err := provider.Validate(entries, builders)
		assert.Error(t, err)

		var verr *provider.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Violations, 3)
	})

	t.Run("unknown kind is a violation", func(t *testing.T) {
		entries := []provider.Entry{{Name: "x", Kind: "carrier-pigeon", Enabled: true}}

		var verr *provider.ValidationError
		assert.ErrorAs(t, provider.Validate(entries, builders), &verr)
		assert.Len(t, verr.Violations, 1)
		assert.Equal(t, "kind", verr.Violations[0].Field)
	})

	t.Run("validation is deterministic", func(t *testing.T) {
		entries := []provider.Entry{
			{
				Name:        "twilio",
				Kind:        provider.KindTwilio,
				Credentials: map[string]string{"account_sid": "bogus", "auth_token": "short"},
				Enabled:     true,
			},
		}

		first := provider.Validate(entries, builders)
		second := provider.Validate(entries, builders)

		assert.Error(t, first)
		assert.Equal(t, first.Error(), second.Error())
	})
}

func TestDefaultEntries(t *testing.T) {
	for _, env := range []string{"dev", "test"} {
		entries := provider.DefaultEntries(env)
		assert.Len(t, entries, 1, env)
		assert.Equal(t, provider.KindMock, entries[0].Kind)
		assert.True(t, entries[0].Enabled)
	}

	assert.Empty(t, provider.DefaultEntries("production"))
}
