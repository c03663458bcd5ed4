package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	kafkapublisher "github.com/example/comms-gateway/internal/kafka/publisher"
	"github.com/example/comms-gateway/internal/models"
)

type fakeSyncProducer struct {
	err     error
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
}

func (f *fakeSyncProducer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	f.topic = topic
	f.key = append([]byte(nil), key...)
	f.headers = headers
	f.payload = append([]byte(nil), payload...)
	return f.err
}

func TestWebhookPublisherPublishesEvent(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewWebhookPublisher(prod, "gateway.webhooks", zerolog.Nop())
	if pub == nil {
		t.Fatalf("expected publisher instance")
	}

	event := models.WebhookEvent{
		ID:          "evt-1",
		Source:      models.WebhookSourceSMS,
		ReceivedAt:  time.Unix(123, 0).UTC(),
		ContentType: "application/x-www-form-urlencoded",
		Fields:      map[string]string{"MessageSid": "SM1", "MessageStatus": "delivered"},
		RequestID:   "req-1",
	}

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if prod.topic != "gateway.webhooks" {
		t.Fatalf("expected topic gateway.webhooks, got %s", prod.topic)
	}
	if string(prod.key) != "evt-1" {
		t.Fatalf("expected key evt-1, got %s", string(prod.key))
	}
	if ct := prod.headers["content-type"]; string(ct) != "application/json" {
		t.Fatalf("expected content-type header, got %s", string(ct))
	}
	if src := prod.headers["webhook-source"]; string(src) != models.WebhookSourceSMS {
		t.Fatalf("expected webhook-source header, got %s", string(src))
	}
	if rid := prod.headers["request-id"]; string(rid) != "req-1" {
		t.Fatalf("expected request-id header, got %s", string(rid))
	}

	var payload models.WebhookEvent
	if err := json.Unmarshal(prod.payload, &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload.Fields["MessageStatus"] != "delivered" || payload.Source != models.WebhookSourceSMS {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestWebhookPublisherAssignsID(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewWebhookPublisher(prod, "gateway.webhooks", zerolog.Nop())

	if err := pub.Publish(context.Background(), models.WebhookEvent{Source: models.WebhookSourceChat}); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if _, err := uuid.ParseBytes(prod.key); err != nil {
		t.Fatalf("expected uuid key, got %q: %v", prod.key, err)
	}
}

func TestWebhookPublisherPropagatesProducerError(t *testing.T) {
	expectedErr := errors.New("broker down")
	prod := &fakeSyncProducer{err: expectedErr}

	pub := kafkapublisher.NewWebhookPublisher(prod, "gateway.webhooks", zerolog.Nop())
	err := pub.Publish(context.Background(), models.WebhookEvent{ID: "id"})
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestWebhookPublisherHonoursCancelledContext(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewWebhookPublisher(prod, "gateway.webhooks", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, models.WebhookEvent{ID: "id"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if prod.topic != "" {
		t.Fatalf("expected no publish after cancellation")
	}
}

func TestWebhookPublisherHandlesNilInstance(t *testing.T) {
	var pub *kafkapublisher.WebhookPublisher
	if err := pub.Publish(context.Background(), models.WebhookEvent{}); !errors.Is(err, kafkapublisher.ErrProducerNotInitialised()) {
		t.Fatalf("expected not initialised error, got %v", err)
	}
	if kafkapublisher.NewWebhookPublisher(nil, "topic", zerolog.Nop()) != nil {
		t.Fatalf("expected nil publisher for nil producer")
	}
}
