package ports

import (
	"context"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// ConfirmationMailer sends the order confirmation with its access link.
type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order, detailURL string) error
}

// LinkBuilder produces signed order-detail links.
type LinkBuilder interface {
	BuildDetailURL(orderID, orderNumber, baseURL string) string
}
