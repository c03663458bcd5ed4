package models

import "time"

// Webhook sources.
const (
	WebhookSourceChat  = "chat"
	WebhookSourceSMS   = "sms"
	WebhookSourceVoice = "voice"
)

// WebhookEvent is the record published for each inbound provider callback.
type WebhookEvent struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	ReceivedAt  time.Time         `json:"received_at"`
	ContentType string            `json:"content_type,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
}
