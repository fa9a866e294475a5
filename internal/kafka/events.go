// Package kafka publishes checkout lifecycle events.
package kafka

import "time"

const (
	TopicOrderConfirmed = "order.confirmed"
	TopicChargedBack    = "payment.charged_back"
	TopicClaimOpened    = "payment.claim_opened"
)

// Event is the JSON value written for every checkout event. The message key
// is the order id so events for one order stay in one partition.
type Event struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id"`
	DraftID      string    `json:"draft_id,omitempty"`
	ChargebackID string    `json:"chargeback_id,omitempty"`
	ClaimID      string    `json:"claim_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
