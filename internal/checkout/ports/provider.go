package ports

import (
	"context"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// PaymentProvider queries the payment provider for ground truth. Lookups never
// fail loudly: a nil result means the resource could not be resolved right now
// (network error, timeout, non-2xx, missing credentials) and the caller decides
// whether to retry.
type PaymentProvider interface {
	GetPayment(ctx context.Context, id string) *domain.Payment
	GetChargeback(ctx context.Context, id string) *domain.Chargeback
	GetClaim(ctx context.Context, id string) *domain.Claim
}
