package ports

import (
	"context"
	"time"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// ClaimOutcome tells the caller what to do with a delivery.
type ClaimOutcome string

const (
	// ClaimAcquired means this delivery owns processing of the event.
	ClaimAcquired ClaimOutcome = "claimed"
	// ClaimDuplicate means the event was already processed.
	ClaimDuplicate ClaimOutcome = "duplicate"
	// ClaimInFlight means another delivery holds an unexpired lease.
	ClaimInFlight ClaimOutcome = "in_flight"
)

// WebhookEventStore records notifications and guards against double processing.
type WebhookEventStore interface {
	// Claim inserts the event if absent, or re-acquires it when it previously
	// failed or its lease is older than lease. The write is atomic per (provider, event_id).
	Claim(ctx context.Context, event domain.WebhookEvent, lease time.Duration) (*domain.WebhookEvent, ClaimOutcome, error)
	// MarkProcessed transitions received -> processed. claimedAt is the lease
	// returned by Claim; ErrConflict when the event is no longer received under
	// that lease.
	MarkProcessed(ctx context.Context, id string, claimedAt time.Time) error
	// MarkFailed transitions received -> failed, sets last_error and increments
	// retry_count. Fenced by claimedAt like MarkProcessed.
	MarkFailed(ctx context.Context, id string, claimedAt time.Time, reason string) error
	FindByKey(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error)
	List(ctx context.Context, filter WebhookEventFilter) ([]domain.WebhookEvent, error)
}

// WebhookEventFilter narrows admin listings.
type WebhookEventFilter struct {
	Provider string
	Status   *domain.WebhookStatus
	Limit    int
}
