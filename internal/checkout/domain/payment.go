package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification topics sent by the payment provider.
const (
	TopicPayment     = "payment"
	TopicChargebacks = "chargebacks"
	TopicClaim       = "claim"
)

// PaymentApproved is the provider status of a captured payment.
const PaymentApproved = "approved"

// Notification is a parsed, still untrusted, webhook delivery.
type Notification struct {
	Provider   string
	EventID    string
	Topic      string
	Action     string
	ResourceID string
	RawPayload []byte
}

// Payment is the provider's authoritative view of a payment.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount decimal.Decimal
	CurrencyID        string
	PayerEmail        string
	DateApproved      *time.Time
}

// IsApproved reports whether the payment was captured.
func (p Payment) IsApproved() bool {
	return p.Status == PaymentApproved
}

// Chargeback is a card dispute that reversed (or may reverse) a payment.
type Chargeback struct {
	ID                  string
	PaymentIDs          []string
	Amount              decimal.Decimal
	Currency            string
	CoverageApplied     bool
	DocumentationStatus string
}

// Claim is a buyer-initiated dispute about a payment.
type Claim struct {
	ID         string
	ResourceID string
	Status     string
	Stage      string
	Type       string
}
