// Package memory holds map-backed adapters for local development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// DraftRepository stores drafts in a map guarded by a mutex.
type DraftRepository struct {
	mu     sync.RWMutex
	drafts map[string]domain.OrderDraft
}

func NewDraftRepository() *DraftRepository {
	return &DraftRepository{drafts: make(map[string]domain.OrderDraft)}
}

func (r *DraftRepository) Create(_ context.Context, draft domain.OrderDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drafts[draft.ID]; exists {
		return ports.ErrConflict
	}
	r.drafts[draft.ID] = draft
	return nil
}

func (r *DraftRepository) GetByID(_ context.Context, id string) (*domain.OrderDraft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	draft, ok := r.drafts[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := draft
	return &copy, nil
}

func (r *DraftRepository) MarkConverted(_ context.Context, id, orderID, orderNumber, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft, ok := r.drafts[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if draft.Status == domain.DraftConverted {
		if draft.ConvertedOrderID == orderID {
			return false, nil
		}
		return false, ports.ErrConflict
	}

	draft.Status = domain.DraftConverted
	draft.ConvertedOrderID = orderID
	draft.OrderNumber = orderNumber
	draft.PaymentID = paymentID
	draft.UpdatedAt = time.Now().UTC()
	r.drafts[id] = draft
	return true, nil
}
