package ports

import (
	"context"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// OrderRepository persists confirmed orders.
type OrderRepository interface {
	// CreateForDraft inserts the order unless one already exists for its draft,
	// in which case the existing order is returned with created=false.
	CreateForDraft(ctx context.Context, order domain.Order) (stored domain.Order, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}
