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

const orderColumns = `id, draft_id, order_number, customer_email, amount_cents, currency, payment_id, status, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.DraftID,
		&order.OrderNumber,
		&order.CustomerEmail,
		&order.AmountCents,
		&order.Currency,
		&order.PaymentID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CreateForDraft relies on the unique draft_id index so concurrent conversions
// of one draft converge on a single order.
func (r *OrderRepository) CreateForDraft(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (draft_id) DO NOTHING
		RETURNING ` + orderColumns

	created, err := scanOrder(r.pool.QueryRow(ctx, query,
		order.ID,
		order.DraftID,
		order.OrderNumber,
		order.CustomerEmail,
		order.AmountCents,
		order.Currency,
		order.PaymentID,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	))
	if err == nil {
		return *created, true, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return domain.Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	existing, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE draft_id = $1`, order.DraftID))
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("select order for draft: %w", err)
	}
	return *existing, false, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return order, err
}

func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_id = $1 ORDER BY created_at LIMIT 1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, paymentID))
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("select order by payment: %w", err)
	}
	return order, err
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}
