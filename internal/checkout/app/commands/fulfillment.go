package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// Fulfillment turns resolved provider resources into order state changes.
type Fulfillment struct {
	drafts ports.DraftRepository
	orders ports.OrderRepository
	mailer ports.ConfirmationMailer
	links  ports.LinkBuilder
	events ports.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewFulfillment(
	drafts ports.DraftRepository,
	orders ports.OrderRepository,
	mailer ports.ConfirmationMailer,
	links ports.LinkBuilder,
	events ports.EventBus,
	logger *slog.Logger,
) *Fulfillment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fulfillment{
		drafts: drafts,
		orders: orders,
		mailer: mailer,
		links:  links,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ApplyPayment converts the draft referenced by an approved payment into an order.
func (f *Fulfillment) ApplyPayment(ctx context.Context, payment domain.Payment) error {
	if !payment.IsApproved() {
		f.logger.InfoContext(ctx, "payment not approved, leaving draft untouched",
			"payment_id", payment.ID,
			"payment_status", payment.Status,
			"status_detail", payment.StatusDetail,
		)
		return nil
	}

	if payment.ExternalReference == "" {
		f.logger.WarnContext(ctx, "approved payment has no external reference", "payment_id", payment.ID)
		return nil
	}

	draft, err := f.drafts.GetByID(ctx, payment.ExternalReference)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			f.logger.WarnContext(ctx, "approved payment references unknown draft",
				"payment_id", payment.ID,
				"draft_id", payment.ExternalReference,
			)
			return nil
		}
		return fmt.Errorf("load draft %s: %w", payment.ExternalReference, err)
	}

	if draft.IsConverted() {
		return nil
	}

	expected := decimal.New(draft.AmountCents, -2)
	if !payment.TransactionAmount.Equal(expected) {
		f.logger.WarnContext(ctx, "payment amount differs from draft amount",
			"payment_id", payment.ID,
			"draft_id", draft.ID,
			"payment_amount", payment.TransactionAmount.String(),
			"draft_amount", expected.String(),
		)
	}

	now := f.now()
	orderNumber, err := domain.NewOrderNumber(now)
	if err != nil {
		return err
	}

	order, _, err := f.orders.CreateForDraft(ctx, domain.Order{
		ID:            uuid.NewString(),
		DraftID:       draft.ID,
		OrderNumber:   orderNumber,
		CustomerEmail: draft.CustomerEmail,
		AmountCents:   draft.AmountCents,
		Currency:      draft.Currency,
		PaymentID:     payment.ID,
		Status:        domain.OrderConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("create order for draft %s: %w", draft.ID, err)
	}

	converted, err := f.drafts.MarkConverted(ctx, draft.ID, order.ID, order.OrderNumber, payment.ID)
	if err != nil {
		return fmt.Errorf("mark draft %s converted: %w", draft.ID, err)
	}
	if !converted {
		return nil
	}

	f.logger.InfoContext(ctx, "draft converted to order",
		"draft_id", draft.ID,
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"payment_id", payment.ID,
	)

	// The order is confirmed at this point; notification failures are logged only.
	detailURL := f.links.BuildDetailURL(order.ID, order.OrderNumber, "")
	if err := f.mailer.SendOrderConfirmation(ctx, order, detailURL); err != nil {
		f.logger.ErrorContext(ctx, "failed to send order confirmation",
			"order_id", order.ID,
			"error", err,
		)
	}
	if err := f.events.PublishOrderConfirmed(ctx, order.ID, draft.ID); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish order confirmed event",
			"order_id", order.ID,
			"error", err,
		)
	}

	return nil
}

// ApplyChargeback flags every known order paid by one of the charged back payments.
func (f *Fulfillment) ApplyChargeback(ctx context.Context, chargeback domain.Chargeback) error {
	for _, paymentID := range chargeback.PaymentIDs {
		order, err := f.orders.GetByPaymentID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load order for payment %s: %w", paymentID, err)
		}

		// Only the delivery that flips the status publishes.
		if order.Status == domain.OrderChargedBack {
			continue
		}
		if err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderChargedBack); err != nil {
			return fmt.Errorf("flag order %s charged back: %w", order.ID, err)
		}

		f.logger.WarnContext(ctx, "order charged back",
			"order_id", order.ID,
			"chargeback_id", chargeback.ID,
			"payment_id", paymentID,
			"coverage_applied", chargeback.CoverageApplied,
		)
		if err := f.events.PublishChargeback(ctx, order.ID, chargeback.ID); err != nil {
			f.logger.ErrorContext(ctx, "failed to publish chargeback event",
				"order_id", order.ID,
				"error", err,
			)
		}
	}
	return nil
}

// ApplyClaim moves the order behind a disputed payment into in_dispute.
func (f *Fulfillment) ApplyClaim(ctx context.Context, claim domain.Claim) error {
	order, err := f.orders.GetByPaymentID(ctx, claim.ResourceID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			f.logger.InfoContext(ctx, "claim references unknown payment",
				"claim_id", claim.ID,
				"payment_id", claim.ResourceID,
			)
			return nil
		}
		return fmt.Errorf("load order for payment %s: %w", claim.ResourceID, err)
	}

	if order.IsTerminal() || order.Status == domain.OrderInDispute {
		return nil
	}

	if err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderInDispute); err != nil {
		return fmt.Errorf("flag order %s in dispute: %w", order.ID, err)
	}

	if err := f.events.PublishClaimOpened(ctx, order.ID, claim.ID); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish claim event",
			"order_id", order.ID,
			"error", err,
		)
	}
	return nil
}
