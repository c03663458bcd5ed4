// Package providers holds the error taxonomy shared by every provider client
// and the gateway boundary.
package providers

import (
	"errors"
	"fmt"

	"github.com/example/comms-gateway/internal/models"
)

// Error kinds. Every error returned by a provider client satisfies errors.Is
// against exactly one of these.
var (
	ErrProviderUnreachable    = errors.New("provider unreachable")
	ErrProviderRejected       = errors.New("provider rejected request")
	ErrResponseMalformed      = errors.New("provider response malformed")
	ErrMediaSourceUnavailable = errors.New("media source unavailable")
	ErrMissingCredentials     = errors.New("missing credentials")
	ErrInvalidRequest         = errors.New("invalid request")
)

// Kind labels used in logs, metrics and the error envelope.
const (
	KindProviderUnreachable    = "provider_unreachable"
	KindProviderRejected       = "provider_rejected"
	KindResponseMalformed      = "response_malformed"
	KindMediaSourceUnavailable = "media_source_unavailable"
	KindMissingCredentials     = "missing_credentials"
	KindInvalidRequest         = "invalid_request"
	KindInternal               = "internal"
)

// KindOf classifies err into one of the Kind labels.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrMediaSourceUnavailable):
		return KindMediaSourceUnavailable
	case errors.Is(err, ErrProviderRejected):
		return KindProviderRejected
	case errors.Is(err, ErrProviderUnreachable):
		return KindProviderUnreachable
	case errors.Is(err, ErrResponseMalformed):
		return KindResponseMalformed
	case errors.Is(err, ErrMissingCredentials):
		return KindMissingCredentials
	default:
		return KindInternal
	}
}

// Invalid wraps err as an ErrInvalidRequest.
func Invalid(err error) error {
	if err == nil {
		return ErrInvalidRequest
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// ProviderError describes a failed provider call. Kind is one of the sentinel
// errors above; Body holds whatever the provider returned, so a rejection can
// still forward the provider's own error payload.
type ProviderError struct {
	Kind       error
	Provider   string
	Operation  string
	StatusCode int
	Code       int
	Message    string
	Body       models.Value
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Provider, e.Operation, e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": http %d", e.StatusCode)
	}
	if e.Code > 0 {
		msg += fmt.Sprintf(": error %d", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AsProviderError extracts a *ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
