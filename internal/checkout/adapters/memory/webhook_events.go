package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const defaultListLimit = 50

type eventKey struct {
	provider string
	eventID  string
}

// WebhookEventStore mirrors the claim semantics of the postgres store.
type WebhookEventStore struct {
	mu     sync.Mutex
	events map[eventKey]*domain.WebhookEvent
	byID   map[string]eventKey
}

func NewWebhookEventStore() *WebhookEventStore {
	return &WebhookEventStore{
		events: make(map[eventKey]*domain.WebhookEvent),
		byID:   make(map[string]eventKey),
	}
}

// Claim uses event.ClaimedAt as the current time when judging lease expiry.
func (s *WebhookEventStore) Claim(_ context.Context, event domain.WebhookEvent, lease time.Duration) (*domain.WebhookEvent, ports.ClaimOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := event.ClaimedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	key := eventKey{provider: event.Provider, eventID: event.EventID}

	existing, ok := s.events[key]
	if !ok {
		stored := event
		stored.Status = domain.WebhookReceived
		stored.ClaimedAt = now
		s.events[key] = &stored
		s.byID[stored.ID] = key
		copy := stored
		return &copy, ports.ClaimAcquired, nil
	}

	switch {
	case existing.Status == domain.WebhookProcessed:
		copy := *existing
		return &copy, ports.ClaimDuplicate, nil
	case existing.Status == domain.WebhookReceived && existing.ClaimedAt.Add(lease).After(now):
		copy := *existing
		return &copy, ports.ClaimInFlight, nil
	}

	existing.Status = domain.WebhookReceived
	existing.ClaimedAt = now
	existing.UpdatedAt = now
	if len(event.RawPayloadTruncated) > 0 {
		existing.RawPayloadTruncated = event.RawPayloadTruncated
	}
	copy := *existing
	return &copy, ports.ClaimAcquired, nil
}

func (s *WebhookEventStore) MarkProcessed(_ context.Context, id string, claimedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.leased(id, claimedAt)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	event.Status = domain.WebhookProcessed
	event.ProcessedAt = &now
	event.LastError = ""
	event.UpdatedAt = now
	return nil
}

func (s *WebhookEventStore) MarkFailed(_ context.Context, id string, claimedAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.leased(id, claimedAt)
	if err != nil {
		return err
	}
	event.Status = domain.WebhookFailed
	event.LastError = reason
	event.RetryCount++
	event.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *WebhookEventStore) leased(id string, claimedAt time.Time) (*domain.WebhookEvent, error) {
	key, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	event := s.events[key]
	if event.Status != domain.WebhookReceived || !event.ClaimedAt.Equal(claimedAt) {
		return nil, ports.ErrConflict
	}
	return event, nil
}

func (s *WebhookEventStore) FindByKey(_ context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventKey{provider: provider, eventID: eventID}]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := *event
	return &copy, nil
}

// List returns events newest first.
func (s *WebhookEventStore) List(_ context.Context, filter ports.WebhookEventFilter) ([]domain.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.WebhookEvent, 0, len(s.events))
	for _, event := range s.events {
		if filter.Provider != "" && event.Provider != filter.Provider {
			continue
		}
		if filter.Status != nil && event.Status != *filter.Status {
			continue
		}
		result = append(result, *event)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
