package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
)

// ErrorEnvelope is the body of every failed request.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure. ProviderResponse carries the provider's
// own error payload when it sent one.
type ErrorBody struct {
	Kind             string       `json:"kind"`
	Message          string       `json:"message"`
	Status           int          `json:"status"`
	CorrelationID    string       `json:"correlation_id"`
	ProviderResponse models.Value `json:"provider_response,omitempty"`
}

// writeResult renders a successful provider call. A value is relayed with
// the provider's status; an empty body becomes 204 for 200 and 204 replies
// and keeps any other 2xx status.
func writeResult(c echo.Context, res models.Result) error {
	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if res.Value.IsEmpty() {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		return c.NoContent(status)
	}
	return c.JSONBlob(status, res.Value)
}

// statusFor maps an error to the HTTP status returned to the caller.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= 400 && he.Code < 500 {
			return he.Code, providers.KindInvalidRequest
		}
		return he.Code, providers.KindInternal
	}

	kind := providers.KindOf(err)
	switch kind {
	case providers.KindInvalidRequest:
		return http.StatusBadRequest, kind
	case providers.KindMediaSourceUnavailable:
		return http.StatusUnprocessableEntity, kind
	case providers.KindProviderRejected:
		if pe, ok := providers.AsProviderError(err); ok && pe.StatusCode >= 400 && pe.StatusCode < 500 {
			return pe.StatusCode, kind
		}
		return http.StatusBadGateway, kind
	case providers.KindProviderUnreachable, providers.KindResponseMalformed:
		return http.StatusBadGateway, kind
	default:
		return http.StatusInternalServerError, providers.KindInternal
	}
}

func envelopeFor(err error, correlationID string) ErrorEnvelope {
	status, kind := statusFor(err)
	body := ErrorBody{
		Kind:          kind,
		Message:       errorMessage(err),
		Status:        status,
		CorrelationID: correlationID,
	}
	if pe, ok := providers.AsProviderError(err); ok && pe.Kind == providers.ErrProviderRejected {
		body.ProviderResponse = pe.Body
	}
	return ErrorEnvelope{Error: body}
}

func errorMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			return fmt.Sprintf("%v: %v", he.Message, he.Internal)
		}
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}

// handleError is installed as echo's HTTPErrorHandler.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	env := envelopeFor(err, requestID(c))
	s.logError(c, err, env.Error)

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(env.Error.Status)
	} else {
		writeErr = c.JSON(env.Error.Status, env)
	}
	if writeErr != nil {
		s.logger.Error().Err(writeErr).Str("request_id", env.Error.CorrelationID).Msg("write error envelope")
	}
}

func (s *Server) logError(c echo.Context, err error, body ErrorBody) {
	evt := s.logger.Warn()
	switch body.Kind {
	case providers.KindProviderUnreachable, providers.KindResponseMalformed, providers.KindInternal:
		evt = s.logger.Error()
	}
	evt = evt.Err(err).
		Str("error_kind", body.Kind).
		Int("status", body.Status).
		Str("route", c.Path()).
		Str("request_id", body.CorrelationID)
	if pe, ok := providers.AsProviderError(err); ok {
		evt = evt.Str("provider", pe.Provider).
			Str("operation", pe.Operation).
			Int("provider_status", pe.StatusCode)
	}
	evt.Msg("request failed")
}
