package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

// stalledWriter blocks until the caller gives up, like a writer whose brokers
// are unreachable.
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

func TestEventBus(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("writes keyed json events to prefixed topics", func(t *testing.T) {
		w := &recordingWriter{}
		bus := NewEventBus(w, "mistika.", 0)
		bus.now = func() time.Time { return at }

		if err := bus.PublishOrderConfirmed(ctx, "O1", "D1"); err != nil {
			t.Fatalf("PublishOrderConfirmed() failed: %v", err)
		}
		bus.PublishChargeback(ctx, "O1", "CB1")
		bus.PublishClaimOpened(ctx, "O1", "C1")

		if len(w.messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(w.messages))
		}
		wantTopics := []string{"mistika.order.confirmed", "mistika.payment.charged_back", "mistika.payment.claim_opened"}
		for i, msg := range w.messages {
			if msg.Topic != wantTopics[i] {
				t.Errorf("message %d: expected topic %s, got %s", i, wantTopics[i], msg.Topic)
			}
			if string(msg.Key) != "O1" {
				t.Errorf("message %d: expected key O1, got %s", i, msg.Key)
			}
		}

		var event Event
		if err := json.Unmarshal(w.messages[0].Value, &event); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if event.Type != TopicOrderConfirmed || event.DraftID != "D1" || !event.OccurredAt.Equal(at) {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("unreachable brokers time out", func(t *testing.T) {
		bus := NewEventBus(stalledWriter{}, "", 20*time.Millisecond)

		start := time.Now()
		err := bus.PublishOrderConfirmed(ctx, "O1", "D1")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("expected publish to give up quickly, took %v", elapsed)
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		cause := errors.New("leader not available")
		bus := NewEventBus(&recordingWriter{err: cause}, "", 0)
		if err := bus.PublishClaimOpened(ctx, "O1", "C1"); !errors.Is(err, cause) {
			t.Errorf("expected wrapped writer error, got %v", err)
		}
	})
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"})
	if w.Topic != "" {
		t.Errorf("expected topic to be set per message, got %q", w.Topic)
	}
	if w.RequiredAcks != kafka.RequireAll {
		t.Errorf("expected RequireAll acks, got %v", w.RequiredAcks)
	}
}

func TestRecordPublish(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	metrics.RecordPublish(ctx, TopicOrderConfirmed, 0.2, nil)
	metrics.RecordPublish(ctx, TopicOrderConfirmed, 0.1, nil)
	metrics.RecordPublish(ctx, TopicChargedBack, 0.3, errors.New("broker down"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	foundHistogram, foundCounter := false, false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "checkout_event_publish_duration_seconds":
				foundHistogram = true
				histogram, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					t.Fatal("Expected Histogram[float64] data type")
				}
				if len(histogram.DataPoints) != 2 {
					t.Errorf("Expected 2 data points, got %d", len(histogram.DataPoints))
				}
			case "checkout_events_published_total":
				foundCounter = true
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatal("Expected Sum[int64] data type")
				}
				for _, dp := range sum.DataPoints {
					result, _ := dp.Attributes.Value(attribute.Key("result"))
					eventType, _ := dp.Attributes.Value(attribute.Key("event_type"))
					switch {
					case eventType.AsString() == TopicOrderConfirmed && result.AsString() == "ok":
						if dp.Value != 2 {
							t.Errorf("expected 2 confirmed events, got %d", dp.Value)
						}
					case eventType.AsString() == TopicChargedBack && result.AsString() == "error":
						if dp.Value != 1 {
							t.Errorf("expected 1 failed chargeback event, got %d", dp.Value)
						}
					default:
						t.Errorf("unexpected data point %v", dp.Attributes)
					}
				}
			}
		}
	}
	if !foundHistogram {
		t.Error("checkout_event_publish_duration_seconds metric not found")
	}
	if !foundCounter {
		t.Error("checkout_events_published_total metric not found")
	}
}
