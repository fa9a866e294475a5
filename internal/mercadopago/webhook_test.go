package mercadopago_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/mercadopago"
)

func TestParseNotification(t *testing.T) {
	t.Run("webhook body with numeric ids", func(t *testing.T) {
		body := []byte(`{"id":12345678901,"live_mode":true,"type":"payment","action":"payment.updated","data":{"id":"987654"}}`)
		n, err := mercadopago.ParseNotification(url.Values{}, body, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n.EventID != "12345678901" {
			t.Errorf("expected event id 12345678901, got %q", n.EventID)
		}
		if n.Topic != domain.TopicPayment || n.ResourceID != "987654" || n.Action != "payment.updated" {
			t.Errorf("unexpected notification %+v", n)
		}
		if n.Provider != mercadopago.Provider {
			t.Errorf("unexpected provider %q", n.Provider)
		}
	})

	t.Run("legacy ipn query parameters", func(t *testing.T) {
		q := url.Values{"topic": {"chargebacks"}, "id": {"cb-9"}}
		n, err := mercadopago.ParseNotification(q, nil, "req-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n.Topic != domain.TopicChargebacks || n.ResourceID != "cb-9" {
			t.Errorf("unexpected notification %+v", n)
		}
		if n.EventID != "chargebacks:cb-9:req-1" {
			t.Errorf("expected event id keyed by request id, got %q", n.EventID)
		}
	})

	t.Run("deliveries without ids never share a key", func(t *testing.T) {
		q := url.Values{"topic": {"payment"}, "id": {"P1"}}
		first, err := mercadopago.ParseNotification(q, nil, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := mercadopago.ParseNotification(q, nil, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first.EventID == second.EventID {
			t.Errorf("expected distinct event ids, both were %q", first.EventID)
		}
		if first.ResourceID != "P1" || second.ResourceID != "P1" {
			t.Errorf("unexpected resources %q %q", first.ResourceID, second.ResourceID)
		}
	})

	t.Run("claims topic is normalized", func(t *testing.T) {
		body := []byte(`{"resource":"/v1/claims/555","topic":"topic_claims_integration_wh","action":"created"}`)
		n, err := mercadopago.ParseNotification(url.Values{}, body, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n.Topic != domain.TopicClaim || n.ResourceID != "555" {
			t.Errorf("unexpected notification %+v", n)
		}
	})

	t.Run("missing resource is rejected", func(t *testing.T) {
		_, err := mercadopago.ParseNotification(url.Values{}, []byte(`{"type":"payment"}`), "")
		if !errors.Is(err, mercadopago.ErrInvalidNotification) {
			t.Errorf("expected ErrInvalidNotification, got %v", err)
		}
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		_, err := mercadopago.ParseNotification(url.Values{}, []byte(`{`), "")
		if !errors.Is(err, mercadopago.ErrInvalidNotification) {
			t.Errorf("expected ErrInvalidNotification, got %v", err)
		}
	})
}

func TestVerifySignature(t *testing.T) {
	secret := "webhook-secret"
	sig := mercadopago.SignManifest(secret, "req-1", "ABC123", "1700000000")
	header := "ts=1700000000,v1=" + sig

	t.Run("valid signature", func(t *testing.T) {
		if !mercadopago.VerifySignature(secret, header, "req-1", "ABC123") {
			t.Error("expected signature to verify")
		}
	})

	t.Run("data id is compared case-insensitively", func(t *testing.T) {
		if !mercadopago.VerifySignature(secret, header, "req-1", "abc123") {
			t.Error("expected lowercase data id to verify")
		}
	})

	tests := []struct {
		name      string
		secret    string
		header    string
		requestID string
	}{
		{name: "wrong secret", secret: "other", header: header, requestID: "req-1"},
		{name: "wrong request id", secret: secret, header: header, requestID: "req-2"},
		{name: "missing ts", secret: secret, header: "v1=" + sig, requestID: "req-1"},
		{name: "empty header", secret: secret, header: "", requestID: "req-1"},
		{name: "empty secret", secret: "", header: header, requestID: "req-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mercadopago.VerifySignature(tt.secret, tt.header, tt.requestID, "ABC123") {
				t.Error("expected signature to be rejected")
			}
		})
	}
}
