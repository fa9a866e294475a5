package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	httpadapter "github.com/mistika/checkout/internal/checkout/adapters/http"
	"github.com/mistika/checkout/internal/checkout/adapters/memory"
	"github.com/mistika/checkout/internal/checkout/app"
	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/metrics"
	idemmemory "github.com/mistika/checkout/internal/idempotency/memory"
	"github.com/mistika/checkout/internal/kafka"
	"github.com/mistika/checkout/internal/mail"
	"github.com/mistika/checkout/internal/mercadopago"
	"github.com/mistika/checkout/internal/ordertoken"
)

const (
	webhookSecret = "whsec-test"
	adminToken    = "admin-test"
)

type stubProvider struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func (p *stubProvider) GetPayment(_ context.Context, id string) *domain.Payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payments[id]
}

func (p *stubProvider) GetChargeback(context.Context, string) *domain.Chargeback { return nil }

func (p *stubProvider) GetClaim(context.Context, string) *domain.Claim { return nil }

type harness struct {
	mux      *http.ServeMux
	orders   *memory.OrderRepository
	events   *memory.WebhookEventStore
	provider *stubProvider
	tokens   *ordertoken.Service
}

func newHarness(t *testing.T, opts httpadapter.Options) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	reader := sdkmetric.NewManualReader()
	m, err := metrics.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	tokens, err := ordertoken.New("token-secret", "https://mistika.test")
	if err != nil {
		t.Fatalf("ordertoken.New() failed: %v", err)
	}

	h := &harness{
		mux:      http.NewServeMux(),
		orders:   memory.NewOrderRepository(),
		events:   memory.NewWebhookEventStore(),
		provider: &stubProvider{payments: map[string]*domain.Payment{}},
		tokens:   tokens,
	}

	service := app.NewService(app.Dependencies{
		Drafts:      memory.NewDraftRepository(),
		Orders:      h.orders,
		Events:      h.events,
		Idempotency: idemmemory.NewStore(),
		Provider:    h.provider,
		Mailer:      mail.NewConfirmationMailer(mail.NewLogSender(logger)),
		Tokens:      tokens,
		Bus:         kafka.NewNoopEventBus(logger),
	}, logger, m)

	opts.Logger = logger
	httpadapter.NewHandler(service, opts).Register(h.mux)
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (h *harness) do(t *testing.T, method, target, body string, header http.Header) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (%s)", err, rec.Body.String())
	}
	return rec, env
}

func (h *harness) createDraft(t *testing.T, key string) domain.OrderDraft {
	t.Helper()
	rec, env := h.do(t, http.MethodPost, "/api/checkout/draft",
		`{"customer_email":"buyer@example.com","amount_cents":4500,"currency":"ars"}`,
		http.Header{"Idempotency-Key": {key}},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var draft domain.OrderDraft
	if err := json.Unmarshal(env.Data, &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	return draft
}

func (h *harness) approve(draft domain.OrderDraft, paymentID string) {
	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()
	h.provider.payments[paymentID] = &domain.Payment{
		ID:                paymentID,
		Status:            domain.PaymentApproved,
		ExternalReference: draft.ID,
		TransactionAmount: decimal.New(draft.AmountCents, -2),
		CurrencyID:        draft.Currency,
	}
}

func paymentNotification(eventID, paymentID string) string {
	return `{"id":` + eventID + `,"type":"payment","action":"payment.updated","data":{"id":"` + paymentID + `"}}`
}

func signedHeader(paymentID, requestID string) http.Header {
	ts := "1718000000"
	sig := mercadopago.SignManifest(webhookSecret, requestID, paymentID, ts)
	return http.Header{
		"X-Signature":  {"ts=" + ts + ",v1=" + sig},
		"X-Request-Id": {requestID},
	}
}

func TestCreateDraft(t *testing.T) {
	t.Run("requires an idempotency key", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, env := h.do(t, http.MethodPost, "/api/checkout/draft", `{}`, nil)
		if rec.Code != http.StatusBadRequest || env.Success {
			t.Errorf("expected 400 failure envelope, got %d %+v", rec.Code, env)
		}
	})

	t.Run("creates a pending draft and replays it for the same key", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		draft := h.createDraft(t, "key-1")
		if draft.Status != domain.DraftPending || draft.Currency != "ARS" {
			t.Errorf("unexpected draft %+v", draft)
		}

		rec, env := h.do(t, http.MethodPost, "/api/checkout/draft",
			`{"customer_email":"other@example.com","amount_cents":1,"currency":"ARS"}`,
			http.Header{"Idempotency-Key": {"key-1"}},
		)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected replayed 201, got %d", rec.Code)
		}
		if rec.Header().Get("Idempotent-Replayed") != "true" {
			t.Error("expected replay header")
		}
		var replayed domain.OrderDraft
		if err := json.Unmarshal(env.Data, &replayed); err != nil {
			t.Fatalf("decode replay: %v", err)
		}
		if replayed.ID != draft.ID {
			t.Errorf("expected replay of %s, got %s", draft.ID, replayed.ID)
		}
	})

	t.Run("rejects invalid input with 400", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, env := h.do(t, http.MethodPost, "/api/checkout/draft",
			`{"customer_email":"nope","amount_cents":100}`,
			http.Header{"Idempotency-Key": {"key-2"}},
		)
		if rec.Code != http.StatusBadRequest || env.Error != "customer_email must be valid" {
			t.Errorf("expected validation error, got %d %+v", rec.Code, env)
		}
	})
}

func TestDraftStatusAndWebhookFlow(t *testing.T) {
	h := newHarness(t, httpadapter.Options{})
	draft := h.createDraft(t, "key-flow")
	statusURL := "/api/checkout/draft/" + draft.ID + "/status"

	rec, env := h.do(t, http.MethodGet, statusURL, "", nil)
	if rec.Code != http.StatusOK || string(env.Data) != `{"status":"pending"}` {
		t.Fatalf("expected pending view, got %d %s", rec.Code, env.Data)
	}

	h.approve(draft, "pay-1")
	rec, env = h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("1001", "pay-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Outcome string `json:"outcome"`
	}
	_ = json.Unmarshal(env.Data, &result)
	if result.Outcome != "processed" {
		t.Errorf("expected processed outcome, got %q", result.Outcome)
	}

	_, env = h.do(t, http.MethodGet, statusURL, "", nil)
	var view domain.DraftStatusView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status != domain.DraftConverted || view.OrderID == "" || view.OrderNumber == "" {
		t.Errorf("expected converted view with order, got %+v", view)
	}

	rec, env = h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("1001", "pay-1"), nil)
	_ = json.Unmarshal(env.Data, &result)
	if rec.Code != http.StatusOK || result.Outcome != "duplicate" {
		t.Errorf("expected duplicate replay, got %d %q", rec.Code, result.Outcome)
	}
}

func TestDraftStatusNotFound(t *testing.T) {
	h := newHarness(t, httpadapter.Options{})
	rec, env := h.do(t, http.MethodGet, "/api/checkout/draft/missing/status", "", nil)
	if rec.Code != http.StatusNotFound || env.Success || env.Error == "" {
		t.Errorf("expected 404 failure envelope, got %d %+v", rec.Code, env)
	}
}

func TestMercadoPagoWebhook(t *testing.T) {
	t.Run("malformed body is 400", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", `{"type":`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("oversized body is 413", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{MaxWebhookBody: 16})
		rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("1", "pay-1"), nil)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})

	t.Run("bad signature is 401 and nothing is recorded", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{WebhookSecret: webhookSecret})
		header := signedHeader("pay-1", "req-1")
		header.Set("X-Request-Id", "req-other")

		rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("2001", "pay-1"), header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if _, err := h.events.FindByKey(context.Background(), mercadopago.Provider, "2001"); err == nil {
			t.Error("expected no webhook event for rejected delivery")
		}
	})

	t.Run("valid signature is processed", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{WebhookSecret: webhookSecret})
		draft := h.createDraft(t, "key-signed")
		h.approve(draft, "pay-9")

		rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("3001", "pay-9"), signedHeader("pay-9", "req-9"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unresolved payment is 500 and recorded as failed", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, env := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("4001", "pay-missing"), nil)
		if rec.Code != http.StatusInternalServerError || env.Error != "internal server error" {
			t.Fatalf("expected generic 500, got %d %+v", rec.Code, env)
		}

		event, err := h.events.FindByKey(context.Background(), mercadopago.Provider, "4001")
		if err != nil {
			t.Fatalf("FindByKey() failed: %v", err)
		}
		if event.Status != domain.WebhookFailed || event.RetryCount != 1 {
			t.Errorf("expected failed with retry 1, got %s/%d", event.Status, event.RetryCount)
		}
	})

	t.Run("legacy query parameters are accepted", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago?topic=merchant_order&id=77", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for ignored topic, got %d", rec.Code)
		}
	})
}

func TestOrderDetails(t *testing.T) {
	h := newHarness(t, httpadapter.Options{})
	draft := h.createDraft(t, "key-details")
	h.approve(draft, "pay-details")
	if rec, _ := h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("5001", "pay-details"), nil); rec.Code != http.StatusOK {
		t.Fatalf("webhook failed with %d", rec.Code)
	}

	order, err := h.orders.GetByPaymentID(context.Background(), "pay-details")
	if err != nil {
		t.Fatalf("GetByPaymentID() failed: %v", err)
	}
	token := h.tokens.Issue(order.ID)

	detailURL := func(orderID, value string, expires int64) string {
		return "/api/orders/details/" + orderID + "?token=" + value + "&expires=" + strconv.FormatInt(expires, 10)
	}

	t.Run("valid link returns the order", func(t *testing.T) {
		rec, env := h.do(t, http.MethodGet, detailURL(order.ID, token.Value, token.ExpiresAt), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got domain.Order
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if got.ID != order.ID || got.OrderNumber != order.OrderNumber {
			t.Errorf("unexpected order %+v", got)
		}
	})

	t.Run("tampered token is 403", func(t *testing.T) {
		tampered := []byte(token.Value)
		if tampered[0] == 'a' {
			tampered[0] = 'b'
		} else {
			tampered[0] = 'a'
		}
		rec, _ := h.do(t, http.MethodGet, detailURL(order.ID, string(tampered), token.ExpiresAt), "", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("valid token for unknown order is 404", func(t *testing.T) {
		ghost := h.tokens.Issue("ghost-order")
		rec, _ := h.do(t, http.MethodGet, detailURL("ghost-order", ghost.Value, ghost.ExpiresAt), "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestAdminWebhookEvents(t *testing.T) {
	t.Run("disabled without a configured token", func(t *testing.T) {
		h := newHarness(t, httpadapter.Options{})
		rec, _ := h.do(t, http.MethodGet, "/api/admin/webhook-events", "", http.Header{"Authorization": {"Bearer anything"}})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	h := newHarness(t, httpadapter.Options{AdminToken: adminToken})
	h.do(t, http.MethodPost, "/api/webhooks/mercadopago", paymentNotification("6001", "pay-missing"), nil)
	h.do(t, http.MethodPost, "/api/webhooks/mercadopago", `{"id":6002,"type":"merchant_order","data":{"id":"mo-1"}}`, nil)
	auth := http.Header{"Authorization": {"Bearer " + adminToken}}

	t.Run("wrong token is 401", func(t *testing.T) {
		rec, _ := h.do(t, http.MethodGet, "/api/admin/webhook-events", "", http.Header{"Authorization": {"Bearer wrong"}})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("lists events filtered by status", func(t *testing.T) {
		rec, env := h.do(t, http.MethodGet, "/api/admin/webhook-events?status=failed", "", auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var events []domain.WebhookEvent
		if err := json.Unmarshal(env.Data, &events); err != nil {
			t.Fatalf("decode events: %v", err)
		}
		if len(events) != 1 || events[0].EventID != "6001" {
			t.Errorf("expected only the failed event, got %+v", events)
		}
	})

	t.Run("invalid filters are 400", func(t *testing.T) {
		for _, target := range []string{
			"/api/admin/webhook-events?status=bogus",
			"/api/admin/webhook-events?limit=ten",
			"/api/admin/webhook-events?limit=-1",
		} {
			if rec, _ := h.do(t, http.MethodGet, target, "", auth); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", target, rec.Code)
			}
		}
	})
}
