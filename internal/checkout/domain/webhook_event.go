package domain

import (
	"time"
	"unicode/utf8"
)

// WebhookStatus tracks processing of one provider notification.
type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "received"
	WebhookProcessed WebhookStatus = "processed"
	WebhookFailed    WebhookStatus = "failed"
)

// MaxStoredPayload bounds the raw payload kept for audit.
const MaxStoredPayload = 4096

// WebhookEvent is the persisted record of an inbound notification.
// (Provider, EventID) is unique.
type WebhookEvent struct {
	ID                  string        `json:"id"`
	Provider            string        `json:"provider"`
	EventID             string        `json:"event_id"`
	Topic               string        `json:"topic"`
	Action              string        `json:"action"`
	ResourceID          string        `json:"resource_id"`
	Status              WebhookStatus `json:"status"`
	RetryCount          int           `json:"retry_count"`
	LastError           string        `json:"last_error,omitempty"`
	RawPayloadTruncated string        `json:"raw_payload_truncated,omitempty"`
	ClaimedAt           time.Time     `json:"claimed_at"`
	ProcessedAt         *time.Time    `json:"processed_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TruncatePayload cuts raw to MaxStoredPayload bytes without splitting a rune.
func TruncatePayload(raw []byte) string {
	if len(raw) <= MaxStoredPayload {
		return string(raw)
	}
	cut := MaxStoredPayload
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut])
}
