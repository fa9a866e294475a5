package queries

import (
	"context"
	"errors"
	"fmt"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const maxWebhookEventsLimit = 200

type ListWebhookEventsQuery struct {
	Provider string
	Status   string
	Limit    int
}

func (q ListWebhookEventsQuery) filter() (ports.WebhookEventFilter, error) {
	filter := ports.WebhookEventFilter{Provider: q.Provider, Limit: q.Limit}

	switch status := domain.WebhookStatus(q.Status); status {
	case "":
	case domain.WebhookReceived, domain.WebhookProcessed, domain.WebhookFailed:
		filter.Status = &status
	default:
		return filter, fmt.Errorf("unknown webhook status %q", q.Status)
	}

	if filter.Limit < 0 {
		return filter, errors.New("limit must not be negative")
	}
	if filter.Limit > maxWebhookEventsLimit {
		filter.Limit = maxWebhookEventsLimit
	}
	return filter, nil
}

type ListWebhookEventsQueryHandler struct {
	store ports.WebhookEventStore
}

func NewListWebhookEventsQueryHandler(store ports.WebhookEventStore) *ListWebhookEventsQueryHandler {
	return &ListWebhookEventsQueryHandler{store: store}
}

func (h *ListWebhookEventsQueryHandler) Handle(ctx context.Context, query ListWebhookEventsQuery) ([]domain.WebhookEvent, error) {
	filter, err := query.filter()
	if err != nil {
		return nil, ports.InvalidInput(err)
	}
	return h.store.List(ctx, filter)
}
