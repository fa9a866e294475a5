package ports

import "context"

// EventBus defines the contract for publishing checkout lifecycle events.
type EventBus interface {
	PublishOrderConfirmed(ctx context.Context, orderID, draftID string) error
	PublishChargeback(ctx context.Context, orderID, chargebackID string) error
	PublishClaimOpened(ctx context.Context, orderID, claimID string) error
}
