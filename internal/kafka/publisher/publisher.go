// Package publisher forwards inbound provider webhooks to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the
// publisher.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// WebhookPublisher emits webhook events to a Kafka topic using the shared
// producer. Events are keyed by their ID.
type WebhookPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewWebhookPublisher constructs a WebhookPublisher. A nil producer yields a
// nil publisher, whose Publish reports ErrProducerNotInitialised.
func NewWebhookPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *WebhookPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &WebhookPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// Publish writes event to Kafka synchronously. An event without an ID is
// assigned a random one.
func (p *WebhookPublisher) Publish(ctx context.Context, event models.WebhookEvent) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka publisher: %w", err)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal webhook event: %w", err)
	}

	headers := map[string][]byte{
		"content-type":   []byte("application/json"),
		"webhook-source": []byte(event.Source),
	}
	if event.RequestID != "" {
		headers["request-id"] = []byte(event.RequestID)
	}

	if err := p.producer.PublishSync(p.topic, []byte(event.ID), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish webhook event: %w", err)
	}
	p.logger.Debug().
		Str("event_id", event.ID).
		Str("source", event.Source).
		Str("topic", p.topic).
		Msg("webhook event published")
	return nil
}
