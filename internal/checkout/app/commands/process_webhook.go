package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// DefaultClaimLease bounds how long a delivery may hold an event before a
// concurrent redelivery is allowed to take it over.
const DefaultClaimLease = 2 * time.Minute

var (
	// ErrUnresolved means the provider lookup returned no result.
	ErrUnresolved = errors.New("provider lookup returned no result")
)

// WebhookOutcome summarizes what happened to one delivery.
type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeInFlight  WebhookOutcome = "in_flight"
	OutcomeFailed    WebhookOutcome = "failed"
)

type ProcessWebhookCommand struct {
	Notification domain.Notification
}

func (c ProcessWebhookCommand) Validate() error {
	n := c.Notification
	switch {
	case strings.TrimSpace(n.Provider) == "":
		return errors.New("provider is required")
	case strings.TrimSpace(n.EventID) == "":
		return errors.New("event_id is required")
	case strings.TrimSpace(n.Topic) == "":
		return errors.New("topic is required")
	case strings.TrimSpace(n.ResourceID) == "":
		return errors.New("resource_id is required")
	}
	return nil
}

type ProcessWebhookResult struct {
	EventID string         `json:"eventId"`
	Topic   string         `json:"topic"`
	Outcome WebhookOutcome `json:"outcome"`
}

type WebhookCommandHandler interface {
	Handle(ctx context.Context, cmd ProcessWebhookCommand) (ProcessWebhookResult, error)
}

// ResolutionApplier applies provider ground truth to orders and drafts.
type ResolutionApplier interface {
	ApplyPayment(ctx context.Context, payment domain.Payment) error
	ApplyChargeback(ctx context.Context, chargeback domain.Chargeback) error
	ApplyClaim(ctx context.Context, claim domain.Claim) error
}

// ProcessWebhookCommandHandler claims a delivery, resolves the referenced
// resource against the provider and applies it at most once per event id.
type ProcessWebhookCommandHandler struct {
	events   ports.WebhookEventStore
	provider ports.PaymentProvider
	applier  ResolutionApplier
	logger   *slog.Logger
	lease    time.Duration
	now      func() time.Time
}

func NewProcessWebhookCommandHandler(
	events ports.WebhookEventStore,
	provider ports.PaymentProvider,
	applier ResolutionApplier,
	logger *slog.Logger,
	lease time.Duration,
) *ProcessWebhookCommandHandler {
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessWebhookCommandHandler{
		events:   events,
		provider: provider,
		applier:  applier,
		logger:   logger,
		lease:    lease,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *ProcessWebhookCommandHandler) Handle(ctx context.Context, cmd ProcessWebhookCommand) (ProcessWebhookResult, error) {
	if err := cmd.Validate(); err != nil {
		return ProcessWebhookResult{}, ports.InvalidInput(err)
	}

	n := cmd.Notification
	result := ProcessWebhookResult{EventID: n.EventID, Topic: n.Topic}

	now := h.now()
	event := domain.WebhookEvent{
		ID:                  uuid.NewString(),
		Provider:            n.Provider,
		EventID:             n.EventID,
		Topic:               n.Topic,
		Action:              n.Action,
		ResourceID:          n.ResourceID,
		Status:              domain.WebhookReceived,
		RawPayloadTruncated: domain.TruncatePayload(n.RawPayload),
		ClaimedAt:           now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	stored, claim, err := h.events.Claim(ctx, event, h.lease)
	if err != nil {
		return result, fmt.Errorf("claim webhook event: %w", err)
	}

	switch claim {
	case ports.ClaimDuplicate:
		result.Outcome = OutcomeDuplicate
		return result, nil
	case ports.ClaimInFlight:
		result.Outcome = OutcomeInFlight
		return result, nil
	}

	if applyErr := h.resolveAndApply(ctx, n); applyErr != nil {
		result.Outcome = OutcomeFailed
		if err := h.events.MarkFailed(ctx, stored.ID, stored.ClaimedAt, applyErr.Error()); err != nil {
			if errors.Is(err, ports.ErrConflict) {
				h.leaseLost(ctx, n, result.Outcome)
				return result, applyErr
			}
			return result, errors.Join(applyErr, fmt.Errorf("mark webhook failed: %w", err))
		}
		return result, applyErr
	}

	result.Outcome = OutcomeProcessed
	if err := h.events.MarkProcessed(ctx, stored.ID, stored.ClaimedAt); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			// Resolution is idempotent, so the work done under the lost lease stands.
			h.leaseLost(ctx, n, result.Outcome)
			return result, nil
		}
		return result, fmt.Errorf("mark webhook processed: %w", err)
	}
	return result, nil
}

// leaseLost reports a delivery whose claim was taken over by a redelivery
// while it was still resolving.
func (h *ProcessWebhookCommandHandler) leaseLost(ctx context.Context, n domain.Notification, outcome WebhookOutcome) {
	h.logger.WarnContext(ctx, "webhook lease taken over before completion",
		"event_id", n.EventID,
		"topic", n.Topic,
		"outcome", outcome,
	)
}

func (h *ProcessWebhookCommandHandler) resolveAndApply(ctx context.Context, n domain.Notification) error {
	switch n.Topic {
	case domain.TopicPayment:
		payment := h.provider.GetPayment(ctx, n.ResourceID)
		if payment == nil {
			return fmt.Errorf("payment %s: %w", n.ResourceID, ErrUnresolved)
		}
		return h.applier.ApplyPayment(ctx, *payment)

	case domain.TopicChargebacks:
		chargeback := h.provider.GetChargeback(ctx, n.ResourceID)
		if chargeback == nil {
			return fmt.Errorf("chargeback %s: %w", n.ResourceID, ErrUnresolved)
		}
		return h.applier.ApplyChargeback(ctx, *chargeback)

	case domain.TopicClaim:
		claim := h.provider.GetClaim(ctx, n.ResourceID)
		if claim == nil {
			return fmt.Errorf("claim %s: %w", n.ResourceID, ErrUnresolved)
		}
		return h.applier.ApplyClaim(ctx, *claim)

	default:
		h.logger.InfoContext(ctx, "ignoring webhook topic",
			"topic", n.Topic,
			"event_id", n.EventID,
		)
		return nil
	}
}
