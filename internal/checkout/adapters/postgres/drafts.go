// Package postgres implements the checkout repositories on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const uniqueViolation = "23505"

type DraftRepository struct {
	pool *pgxpool.Pool
}

func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

func (r *DraftRepository) Create(ctx context.Context, draft domain.OrderDraft) error {
	query := `
		INSERT INTO order_drafts (id, status, customer_email, amount_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		draft.ID,
		draft.Status,
		draft.CustomerEmail,
		draft.AmountCents,
		draft.Currency,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ports.ErrConflict
		}
		return fmt.Errorf("insert draft: %w", err)
	}

	return nil
}

func (r *DraftRepository) GetByID(ctx context.Context, id string) (*domain.OrderDraft, error) {
	query := `
		SELECT id, status, customer_email, amount_cents, currency,
		       COALESCE(converted_order_id, ''), COALESCE(order_number, ''), COALESCE(payment_id, ''),
		       created_at, updated_at
		FROM order_drafts
		WHERE id = $1
	`

	var draft domain.OrderDraft
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&draft.ID,
		&draft.Status,
		&draft.CustomerEmail,
		&draft.AmountCents,
		&draft.Currency,
		&draft.ConvertedOrderID,
		&draft.OrderNumber,
		&draft.PaymentID,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select draft: %w", err)
	}

	return &draft, nil
}

func (r *DraftRepository) MarkConverted(ctx context.Context, id, orderID, orderNumber, paymentID string) (bool, error) {
	query := `
		UPDATE order_drafts
		SET status = 'converted', converted_order_id = $2, order_number = $3, payment_id = $4, updated_at = $5
		WHERE id = $1 AND status <> 'converted'
	`

	result, err := r.pool.Exec(ctx, query, id, orderID, orderNumber, paymentID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("convert draft: %w", err)
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}

	draft, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if draft.ConvertedOrderID == orderID {
		return false, nil
	}
	return false, ports.ErrConflict
}
