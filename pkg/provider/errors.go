package provider

import "errors"

const (
	ErrorCodeTimeout      = "TIMEOUT"       // context deadline exceeded
	ErrorCodeNetworkError = "NETWORK_ERROR" // connection failures
	ErrorCodeServerError  = "SERVER_ERROR"  // 5xx or malformed response
	ErrorCodeRejected     = "REJECTED"      // provider refused the message (4xx)
	ErrorCodeAuthFailed   = "AUTH_FAILED"   // credentials rejected (401/403)
)

var (
	ErrNoProviderForType    = errors.New("NO_PROVIDER_FOR_TYPE")
	ErrAllProvidersDisabled = errors.New("ALL_PROVIDERS_DISABLED")
)

// SendError carries a classification code plus the human-readable reason
// extracted from the provider error envelope.
type SendError struct {
	Code   string
	Reason string
}

func (e *SendError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Code
}

// Permanent reports whether retrying the same request is pointless.
func (e *SendError) Permanent() bool {
	return e.Code == ErrorCodeRejected || e.Code == ErrorCodeAuthFailed
}

func sendErr(code, reason string) *SendError {
	return &SendError{Code: code, Reason: reason}
}

// IsPermanent reports whether err is a provider business rejection that must
// not be retried automatically.
func IsPermanent(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Permanent()
	}
	return false
}
