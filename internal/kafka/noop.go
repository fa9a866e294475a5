package kafka

import (
	"context"
	"log/slog"
)

// NoopEventBus logs events instead of sending them. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderConfirmed(ctx context.Context, orderID, draftID string) error {
	n.logger.DebugContext(ctx, "event::order_confirmed", "order_id", orderID, "draft_id", draftID)
	return nil
}

func (n *NoopEventBus) PublishChargeback(ctx context.Context, orderID, chargebackID string) error {
	n.logger.DebugContext(ctx, "event::payment_charged_back", "order_id", orderID, "chargeback_id", chargebackID)
	return nil
}

func (n *NoopEventBus) PublishClaimOpened(ctx context.Context, orderID, claimID string) error {
	n.logger.DebugContext(ctx, "event::payment_claim_opened", "order_id", orderID, "claim_id", claimID)
	return nil
}
