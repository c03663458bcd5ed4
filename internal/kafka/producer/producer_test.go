package producer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
)

type fakeCluster struct {
	refreshErr atomic.Value
	refreshes  atomic.Int32
	closed     atomic.Bool
}

func (f *fakeCluster) RefreshMetadata(...string) error {
	f.refreshes.Add(1)
	if err, ok := f.refreshErr.Load().(error); ok {
		return err
	}
	return nil
}

func (f *fakeCluster) Close() error {
	f.closed.Store(true)
	return nil
}

func TestPublishSyncSendsMessage(t *testing.T) {
	cluster := &fakeCluster{}
	syncProd := mocks.NewSyncProducer(t, nil)
	syncProd.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "gateway.webhooks" {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "evt-1" {
			t.Errorf("unexpected key %s", key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != "content-type" {
			t.Errorf("unexpected headers %+v", msg.Headers)
		}
		return nil
	})

	p := start(cluster, syncProd, time.Hour, zerolog.Nop())
	defer p.Close()

	if !p.IsReady() {
		t.Fatalf("expected producer to be ready after initial refresh")
	}
	headers := map[string][]byte{"content-type": []byte("application/json")}
	if err := p.PublishSync("gateway.webhooks", []byte("evt-1"), headers, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
}

func TestPublishSyncFailureClearsReadiness(t *testing.T) {
	cluster := &fakeCluster{}
	syncProd := mocks.NewSyncProducer(t, nil)
	brokerDown := errors.New("broker down")
	syncProd.ExpectSendMessageAndFail(brokerDown)
	syncProd.ExpectSendMessageAndSucceed()

	p := start(cluster, syncProd, time.Hour, zerolog.Nop())
	defer p.Close()

	err := p.PublishSync("topic", nil, nil, []byte("x"))
	if !errors.Is(err, brokerDown) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if p.IsReady() {
		t.Fatalf("expected readiness to drop after failed send")
	}

	if err := p.PublishSync("topic", nil, nil, []byte("x")); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if !p.IsReady() {
		t.Fatalf("expected readiness to recover after successful send")
	}
}

func TestPublishSyncRequiresTopic(t *testing.T) {
	p := start(&fakeCluster{}, mocks.NewSyncProducer(t, nil), time.Hour, zerolog.Nop())
	defer p.Close()

	if err := p.PublishSync("", nil, nil, nil); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected ErrTopicRequired, got %v", err)
	}
}

func TestInitialRefreshFailureStartsNotReady(t *testing.T) {
	cluster := &fakeCluster{}
	cluster.refreshErr.Store(errors.New("no brokers"))

	p := start(cluster, mocks.NewSyncProducer(t, nil), time.Hour, zerolog.Nop())
	defer p.Close()

	if p.IsReady() {
		t.Fatalf("expected producer not ready")
	}
}

func TestWatcherTracksMetadataRefreshes(t *testing.T) {
	cluster := &fakeCluster{}
	p := start(cluster, mocks.NewSyncProducer(t, nil), 5*time.Millisecond, zerolog.Nop())
	defer p.Close()

	cluster.refreshErr.Store(errors.New("lost leader"))
	deadline := time.Now().Add(2 * time.Second)
	for p.IsReady() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.IsReady() {
		t.Fatalf("expected readiness to drop after failed refresh")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cluster := &fakeCluster{}
	p := start(cluster, mocks.NewSyncProducer(t, nil), time.Hour, zerolog.Nop())

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected second close error: %v", err)
	}
	if !cluster.closed.Load() {
		t.Fatalf("expected cluster client to be closed")
	}
}

func TestNewRequiresBrokers(t *testing.T) {
	if _, err := New(nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty broker list")
	}
}
