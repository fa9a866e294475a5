// Package adapters holds tracing and metrics decorators shared by every storage
// backend of the checkout.
package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/database"
	"github.com/mistika/checkout/internal/telemetry"
)

// observe runs fn inside a span and records its latency under operation.
// ErrNotFound is an expected answer and does not mark the span as failed.
func observe(ctx context.Context, metrics *database.Metrics, spanName, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	err := fn(ctx)
	metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)

	telemetry.EndSpanWithResult(span, err, ports.ErrNotFound)
	return err
}

type ObservableDraftRepository struct {
	repo    ports.DraftRepository
	metrics *database.Metrics
}

func NewObservableDraftRepository(repo ports.DraftRepository, metrics *database.Metrics) *ObservableDraftRepository {
	return &ObservableDraftRepository{repo: repo, metrics: metrics}
}

func (r *ObservableDraftRepository) Create(ctx context.Context, draft domain.OrderDraft) error {
	return observe(ctx, r.metrics, "DraftRepository.Create", "create_draft", func(ctx context.Context) error {
		return r.repo.Create(ctx, draft)
	}, attribute.String("draft.id", draft.ID))
}

func (r *ObservableDraftRepository) GetByID(ctx context.Context, id string) (*domain.OrderDraft, error) {
	var draft *domain.OrderDraft
	err := observe(ctx, r.metrics, "DraftRepository.GetByID", "get_draft_by_id", func(ctx context.Context) error {
		var err error
		draft, err = r.repo.GetByID(ctx, id)
		return err
	}, attribute.String("draft.id", id))
	return draft, err
}

func (r *ObservableDraftRepository) MarkConverted(ctx context.Context, id, orderID, orderNumber, paymentID string) (bool, error) {
	var converted bool
	err := observe(ctx, r.metrics, "DraftRepository.MarkConverted", "mark_draft_converted", func(ctx context.Context) error {
		var err error
		converted, err = r.repo.MarkConverted(ctx, id, orderID, orderNumber, paymentID)
		return err
	},
		attribute.String("draft.id", id),
		attribute.String("order.id", orderID),
		attribute.String("payment.id", paymentID),
	)
	return converted, err
}

type ObservableOrderRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableOrderRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableOrderRepository {
	return &ObservableOrderRepository{repo: repo, metrics: metrics}
}

func (r *ObservableOrderRepository) CreateForDraft(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	var (
		stored  domain.Order
		created bool
	)
	err := observe(ctx, r.metrics, "OrderRepository.CreateForDraft", "create_order_for_draft", func(ctx context.Context) error {
		var err error
		stored, created, err = r.repo.CreateForDraft(ctx, order)
		return err
	},
		attribute.String("order.id", order.ID),
		attribute.String("draft.id", order.DraftID),
	)
	return stored, created, err
}

func (r *ObservableOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := observe(ctx, r.metrics, "OrderRepository.GetByID", "get_order_by_id", func(ctx context.Context) error {
		var err error
		order, err = r.repo.GetByID(ctx, id)
		return err
	}, attribute.String("order.id", id))
	return order, err
}

func (r *ObservableOrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	var order *domain.Order
	err := observe(ctx, r.metrics, "OrderRepository.GetByPaymentID", "get_order_by_payment_id", func(ctx context.Context) error {
		var err error
		order, err = r.repo.GetByPaymentID(ctx, paymentID)
		return err
	}, attribute.String("payment.id", paymentID))
	return order, err
}

func (r *ObservableOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return observe(ctx, r.metrics, "OrderRepository.UpdateStatus", "update_order_status", func(ctx context.Context) error {
		return r.repo.UpdateStatus(ctx, id, status)
	},
		attribute.String("order.id", id),
		attribute.String("order.new_status", string(status)),
	)
}

type ObservableWebhookEventStore struct {
	store   ports.WebhookEventStore
	metrics *database.Metrics
}

func NewObservableWebhookEventStore(store ports.WebhookEventStore, metrics *database.Metrics) *ObservableWebhookEventStore {
	return &ObservableWebhookEventStore{store: store, metrics: metrics}
}

func (s *ObservableWebhookEventStore) Claim(ctx context.Context, event domain.WebhookEvent, lease time.Duration) (*domain.WebhookEvent, ports.ClaimOutcome, error) {
	var (
		stored  *domain.WebhookEvent
		outcome ports.ClaimOutcome
	)
	err := observe(ctx, s.metrics, "WebhookEventStore.Claim", "claim_webhook_event", func(ctx context.Context) error {
		var err error
		stored, outcome, err = s.store.Claim(ctx, event, lease)
		return err
	},
		attribute.String("webhook.provider", event.Provider),
		attribute.String("webhook.event_id", event.EventID),
	)
	return stored, outcome, err
}

func (s *ObservableWebhookEventStore) MarkProcessed(ctx context.Context, id string, claimedAt time.Time) error {
	return observe(ctx, s.metrics, "WebhookEventStore.MarkProcessed", "mark_webhook_processed", func(ctx context.Context) error {
		return s.store.MarkProcessed(ctx, id, claimedAt)
	}, attribute.String("webhook.id", id))
}

func (s *ObservableWebhookEventStore) MarkFailed(ctx context.Context, id string, claimedAt time.Time, reason string) error {
	return observe(ctx, s.metrics, "WebhookEventStore.MarkFailed", "mark_webhook_failed", func(ctx context.Context) error {
		return s.store.MarkFailed(ctx, id, claimedAt, reason)
	},
		attribute.String("webhook.id", id),
		attribute.String("failure.reason", reason),
	)
}

func (s *ObservableWebhookEventStore) FindByKey(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	var event *domain.WebhookEvent
	err := observe(ctx, s.metrics, "WebhookEventStore.FindByKey", "find_webhook_event", func(ctx context.Context) error {
		var err error
		event, err = s.store.FindByKey(ctx, provider, eventID)
		return err
	},
		attribute.String("webhook.provider", provider),
		attribute.String("webhook.event_id", eventID),
	)
	return event, err
}

func (s *ObservableWebhookEventStore) List(ctx context.Context, filter ports.WebhookEventFilter) ([]domain.WebhookEvent, error) {
	attrs := []attribute.KeyValue{attribute.Int("limit", filter.Limit)}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}

	var events []domain.WebhookEvent
	err := observe(ctx, s.metrics, "WebhookEventStore.List", "list_webhook_events", func(ctx context.Context) error {
		var err error
		events, err = s.store.List(ctx, filter)
		return err
	}, attrs...)
	return events, err
}
