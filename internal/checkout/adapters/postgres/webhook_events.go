package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const (
	defaultEventListLimit = 50
	claimAttempts         = 2
)

const eventColumns = `id, provider, event_id, topic, action, resource_id, status, retry_count,
	COALESCE(last_error, ''), COALESCE(raw_payload_truncated, ''), claimed_at, processed_at, created_at, updated_at`

type WebhookEventStore struct {
	pool *pgxpool.Pool
}

func NewWebhookEventStore(pool *pgxpool.Pool) *WebhookEventStore {
	return &WebhookEventStore{pool: pool}
}

func scanEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var event domain.WebhookEvent
	err := row.Scan(
		&event.ID,
		&event.Provider,
		&event.EventID,
		&event.Topic,
		&event.Action,
		&event.ResourceID,
		&event.Status,
		&event.RetryCount,
		&event.LastError,
		&event.RawPayloadTruncated,
		&event.ClaimedAt,
		&event.ProcessedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// Claim inserts the event or takes over a failed or stale one in a single
// statement. When the upsert guard rejects the row, the current state decides
// between duplicate and in_flight.
func (s *WebhookEventStore) Claim(ctx context.Context, event domain.WebhookEvent, lease time.Duration) (*domain.WebhookEvent, ports.ClaimOutcome, error) {
	claimedAt := event.ClaimedAt
	if claimedAt.IsZero() {
		claimedAt = time.Now().UTC()
	}
	staleBefore := claimedAt.Add(-lease)

	query := `
		INSERT INTO webhook_events (id, provider, event_id, topic, action, resource_id, status,
			retry_count, raw_payload_truncated, claimed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'received', 0, NULLIF($7, ''), $8, $8, $8)
		ON CONFLICT (provider, event_id) DO UPDATE
		SET status = 'received',
		    claimed_at = EXCLUDED.claimed_at,
		    updated_at = EXCLUDED.claimed_at,
		    raw_payload_truncated = COALESCE(EXCLUDED.raw_payload_truncated, webhook_events.raw_payload_truncated)
		WHERE webhook_events.status = 'failed'
		   OR (webhook_events.status = 'received' AND webhook_events.claimed_at <= $9)
		RETURNING ` + eventColumns

	for attempt := 0; attempt < claimAttempts; attempt++ {
		stored, err := scanEvent(s.pool.QueryRow(ctx, query,
			event.ID,
			event.Provider,
			event.EventID,
			event.Topic,
			event.Action,
			event.ResourceID,
			event.RawPayloadTruncated,
			claimedAt,
			staleBefore,
		))
		if err == nil {
			return stored, ports.ClaimAcquired, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return nil, "", fmt.Errorf("claim webhook event: %w", err)
		}

		existing, err := s.FindByKey(ctx, event.Provider, event.EventID)
		if err != nil {
			return nil, "", err
		}
		switch existing.Status {
		case domain.WebhookProcessed:
			return existing, ports.ClaimDuplicate, nil
		case domain.WebhookReceived:
			return existing, ports.ClaimInFlight, nil
		}
		// Failed between the upsert and the read; claim again.
	}

	existing, err := s.FindByKey(ctx, event.Provider, event.EventID)
	if err != nil {
		return nil, "", err
	}
	return existing, ports.ClaimInFlight, nil
}

// MarkProcessed and MarkFailed only apply while the caller still holds the
// lease identified by claimedAt.
func (s *WebhookEventStore) MarkProcessed(ctx context.Context, id string, claimedAt time.Time) error {
	query := `
		UPDATE webhook_events
		SET status = 'processed', processed_at = $3, updated_at = $3, last_error = NULL
		WHERE id = $1 AND status = 'received' AND claimed_at = $2
	`
	return s.transition(ctx, query, id, claimedAt, time.Now().UTC())
}

func (s *WebhookEventStore) MarkFailed(ctx context.Context, id string, claimedAt time.Time, reason string) error {
	query := `
		UPDATE webhook_events
		SET status = 'failed', last_error = $4, retry_count = retry_count + 1, updated_at = $3
		WHERE id = $1 AND status = 'received' AND claimed_at = $2
	`
	return s.transition(ctx, query, id, claimedAt, time.Now().UTC(), reason)
}

func (s *WebhookEventStore) transition(ctx context.Context, query, id string, args ...any) error {
	result, err := s.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrConflict
}

func (s *WebhookEventStore) FindByKey(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM webhook_events WHERE provider = $1 AND event_id = $2`
	event, err := scanEvent(s.pool.QueryRow(ctx, query, provider, eventID))
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("select webhook event: %w", err)
	}
	return event, err
}

func (s *WebhookEventStore) List(ctx context.Context, filter ports.WebhookEventFilter) ([]domain.WebhookEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	query := `
		SELECT ` + eventColumns + `
		FROM webhook_events
		WHERE ($1::text IS NULL OR provider = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	var providerFilter, statusFilter *string
	if filter.Provider != "" {
		providerFilter = &filter.Provider
	}
	if filter.Status != nil {
		status := string(*filter.Status)
		statusFilter = &status
	}

	rows, err := s.pool.Query(ctx, query, providerFilter, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}

	return events, nil
}
