package gateway

import (
	"encoding/xml"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/comms-gateway/internal/models"
)

// Webhook publish outcomes reported to the observer.
const (
	webhookPublished     = "published"
	webhookSkipped       = "skipped"
	webhookPublishFailed = "publish_failed"
)

// Keys worth lifting into the log line when present in a callback.
var webhookLogKeys = []string{"MessageSid", "MessageStatus", "CallSid", "CallStatus", "ConversationSid", "EventType"}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
}

func (s *Server) receiveWebhook(source string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.acceptWebhook(c, source)
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
}

// receiveVoiceWebhook answers the call with a fixed spoken message.
func (s *Server) receiveVoiceWebhook(c echo.Context) error {
	s.acceptWebhook(c, models.WebhookSourceVoice)

	body, err := xml.Marshal(twimlResponse{Say: s.deps.VoiceMessage})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
}

// acceptWebhook logs the callback and hands it to the publisher. A callback
// is always acknowledged; publish failures are only logged so the provider
// does not redeliver because of a broker outage.
func (s *Server) acceptWebhook(c echo.Context, source string) {
	event := models.WebhookEvent{
		ID:          newID(),
		Source:      source,
		ReceivedAt:  s.now().UTC(),
		ContentType: c.Request().Header.Get(echo.HeaderContentType),
		RequestID:   requestID(c),
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", source).Msg("webhook body unreadable")
	}
	var fields models.Fields
	if len(raw) > 0 {
		if mediaType(c) == echo.MIMEApplicationJSON {
			fields, err = models.FieldsFromJSON(raw)
		} else {
			fields, err = models.FieldsFromForm(string(raw))
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("source", source).Msg("webhook body not decodable")
		}
	}
	if len(fields) > 0 {
		event.Fields = make(map[string]string, len(fields))
		for _, f := range fields {
			if _, seen := event.Fields[f.Name]; !seen {
				event.Fields[f.Name] = f.Value
			}
		}
	}

	logEvt := s.logger.Info().
		Str("event_id", event.ID).
		Str("source", source).
		Str("request_id", event.RequestID).
		Int("fields", len(event.Fields))
	for _, key := range webhookLogKeys {
		if v, ok := event.Fields[key]; ok {
			logEvt = logEvt.Str(key, v)
		}
	}
	logEvt.Msg("webhook received")

	outcome := webhookSkipped
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(c.Request().Context(), event); err != nil {
			outcome = webhookPublishFailed
			s.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("source", source).
				Msg("webhook publish failed")
		} else {
			outcome = webhookPublished
		}
	}
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveWebhook(source, outcome)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Kafka  string `json:"kafka"`
}

// healthz reports liveness and, when a broker is configured, whether it is
// reachable. A broker outage degrades the response to 503.
func (s *Server) healthz(c echo.Context) error {
	resp := healthResponse{Status: "ok", Kafka: "disabled"}
	if s.deps.Broker != nil {
		if s.deps.Broker.IsReady() {
			resp.Kafka = "ready"
		} else {
			resp.Status = "degraded"
			resp.Kafka = "not_ready"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
