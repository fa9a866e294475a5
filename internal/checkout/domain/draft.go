package domain

import (
	"errors"
	"strings"
	"time"
)

// DraftStatus captures the lifecycle of a checkout draft.
type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftConverted DraftStatus = "converted"
	DraftExpired   DraftStatus = "expired"
	DraftCancelled DraftStatus = "cancelled"
)

// OrderDraft is a checkout in progress, created before payment confirmation.
type OrderDraft struct {
	ID               string      `json:"id"`
	Status           DraftStatus `json:"status"`
	CustomerEmail    string      `json:"customer_email"`
	AmountCents      int64       `json:"amount_cents"`
	Currency         string      `json:"currency"`
	ConvertedOrderID string      `json:"converted_order_id,omitempty"`
	OrderNumber      string      `json:"order_number,omitempty"`
	PaymentID        string      `json:"payment_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Validate ensures the draft adheres to business constraints.
func (d OrderDraft) Validate() error {
	if strings.TrimSpace(d.CustomerEmail) == "" {
		return errors.New("customer_email is required")
	}
	if !strings.Contains(d.CustomerEmail, "@") {
		return errors.New("customer_email must be valid")
	}
	if d.AmountCents <= 0 {
		return errors.New("amount_cents must be positive")
	}
	if len(strings.TrimSpace(d.Currency)) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	return nil
}

// IsConverted reports whether the draft already produced an order.
func (d OrderDraft) IsConverted() bool {
	return d.Status == DraftConverted && d.ConvertedOrderID != ""
}

// DraftStatusView is the read model returned to a polling storefront.
type DraftStatusView struct {
	Status      DraftStatus `json:"status"`
	OrderID     string      `json:"orderId,omitempty"`
	OrderNumber string      `json:"orderNumber,omitempty"`
}

// StatusView projects the draft into what the storefront may see.
func (d OrderDraft) StatusView() DraftStatusView {
	if d.IsConverted() {
		return DraftStatusView{
			Status:      DraftConverted,
			OrderID:     d.ConvertedOrderID,
			OrderNumber: d.OrderNumber,
		}
	}
	return DraftStatusView{Status: d.Status}
}
