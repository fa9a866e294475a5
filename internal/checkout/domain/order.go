package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

// OrderStatus captures the lifecycle of a confirmed order.
type OrderStatus string

const (
	OrderConfirmed   OrderStatus = "confirmed"
	OrderInDispute   OrderStatus = "in_dispute"
	OrderChargedBack OrderStatus = "charged_back"
	OrderRefunded    OrderStatus = "refunded"
)

// Order is the permanent record materialized from a paid draft.
type Order struct {
	ID            string      `json:"id"`
	DraftID       string      `json:"draft_id"`
	OrderNumber   string      `json:"order_number"`
	CustomerEmail string      `json:"customer_email"`
	AmountCents   int64       `json:"amount_cents"`
	Currency      string      `json:"currency"`
	PaymentID     string      `json:"payment_id"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsTerminal indicates whether the order can no longer change status.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderChargedBack, OrderRefunded:
		return true
	default:
		return false
	}
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber returns a human readable number such as MST-20260301-K7Q2XA.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("MST-%s-%s", now.UTC().Format("20060102"), buf), nil
}
