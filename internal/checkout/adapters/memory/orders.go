package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// OrderRepository keeps orders indexed by id and by draft.
type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	byDraft map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]domain.Order),
		byDraft: make(map[string]string),
	}
}

func (r *OrderRepository) CreateForDraft(_ context.Context, order domain.Order) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byDraft[order.DraftID]; ok {
		return r.orders[existingID], false, nil
	}
	r.orders[order.ID] = order
	r.byDraft[order.DraftID] = order.ID
	return order, true, nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := order
	return &copy, nil
}

func (r *OrderRepository) GetByPaymentID(_ context.Context, paymentID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.PaymentID == paymentID {
			copy := order
			return &copy, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}
