package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mistika/checkout/internal/checkout/app"
	"github.com/mistika/checkout/internal/checkout/app/commands"
	"github.com/mistika/checkout/internal/checkout/app/queries"
	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/mercadopago"
)

const (
	defaultMaxWebhookBody = 64 << 10
	maxDraftBody          = 16 << 10

	internalErrorMessage = "internal server error"
)

// CheckoutService is the application surface the handlers drive.
type CheckoutService interface {
	CreateDraft(ctx context.Context, input app.CreateDraftInput) (*domain.OrderDraft, error)
	GetDraftStatus(ctx context.Context, draftID string) (*domain.DraftStatusView, error)
	ProcessWebhook(ctx context.Context, notification domain.Notification) (commands.ProcessWebhookResult, error)
	GetOrderDetails(ctx context.Context, orderID, token, expires string) (*domain.Order, error)
	ListWebhookEvents(ctx context.Context, query queries.ListWebhookEventsQuery) ([]domain.WebhookEvent, error)
	SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error
	GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error)
}

type Options struct {
	// WebhookSecret enables x-signature verification when set.
	WebhookSecret string
	// AdminToken guards /api/admin; admin routes answer 404 when empty.
	AdminToken     string
	MaxWebhookBody int64
	Logger         *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Handler exposes HTTP endpoints for checkout operations.
type Handler struct {
	service        CheckoutService
	webhookSecret  string
	adminToken     string
	maxWebhookBody int64
	logger         *slog.Logger
	metrics        *Metrics
}

func NewHandler(service CheckoutService, opts Options) *Handler {
	if opts.MaxWebhookBody <= 0 {
		opts.MaxWebhookBody = defaultMaxWebhookBody
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		service:        service,
		webhookSecret:  opts.WebhookSecret,
		adminToken:     opts.AdminToken,
		maxWebhookBody: opts.MaxWebhookBody,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

// Register binds the checkout handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout/draft", h.createDraft)
	mux.HandleFunc("GET /api/checkout/draft/{draftId}/status", h.getDraftStatus)
	mux.HandleFunc("POST /api/webhooks/mercadopago", h.receiveMercadoPagoWebhook)
	mux.HandleFunc("GET /api/orders/details/{orderId}", h.getOrderDetails)
	mux.HandleFunc("GET /api/admin/webhook-events", h.listWebhookEvents)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey == "" {
		writeError(w, http.StatusBadRequest, "Idempotency-Key header required")
		return
	}

	if stored, err := h.service.GetIdempotentResponse(ctx, idemKey); err != nil {
		h.internalError(w, r, "load idempotent response", err)
		return
	} else if stored != nil {
		for key, values := range restoreHeaders() {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(stored.StatusCode)
		_, _ = w.Write(stored.Body)
		return
	}

	var payload app.CreateDraftInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDraftBody)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	draft, err := h.service.CreateDraft(ctx, payload)
	if err != nil {
		if errors.Is(err, ports.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, "create draft", err)
		return
	}

	body, err := json.Marshal(envelope{Success: true, Data: draft})
	if err != nil {
		h.internalError(w, r, "encode draft", err)
		return
	}

	stored := ports.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body,
		DraftID:    draft.ID,
	}
	if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
		h.internalError(w, r, "save idempotent response", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) getDraftStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetDraftStatus(r.Context(), r.PathValue("draftId"))
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNotFound):
			writeError(w, http.StatusNotFound, "draft not found")
		case errors.Is(err, ports.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, r, "get draft status", err)
		}
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *Handler) receiveMercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	notification, err := mercadopago.ParseNotification(r.URL.Query(), body, r.Header.Get("x-request-id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed notification")
		return
	}

	if h.webhookSecret != "" {
		dataID := r.URL.Query().Get("data.id")
		if dataID == "" {
			dataID = notification.ResourceID
		}
		if !mercadopago.VerifySignature(h.webhookSecret, r.Header.Get("x-signature"), r.Header.Get("x-request-id"), dataID) {
			h.logger.WarnContext(r.Context(), "webhook signature rejected",
				"event_id", notification.EventID,
				"topic", notification.Topic,
			)
			h.metrics.RecordSignatureRejection(r.Context(), notification.Provider)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	result, err := h.service.ProcessWebhook(r.Context(), notification)
	if err != nil {
		if errors.Is(err, ports.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Non-2xx makes the provider redeliver.
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *Handler) getOrderDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, err := h.service.GetOrderDetails(r.Context(), r.PathValue("orderId"), q.Get("token"), q.Get("expires"))
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrAccessDenied):
			writeError(w, http.StatusForbidden, "invalid or expired link")
		case errors.Is(err, ports.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ports.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, r, "get order details", err)
		}
		return
	}
	writeData(w, http.StatusOK, order)
}

func (h *Handler) listWebhookEvents(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !h.authorizedAdmin(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	params := r.URL.Query()
	query := queries.ListWebhookEventsQuery{
		Provider: params.Get("provider"),
		Status:   params.Get("status"),
	}
	if limitParam := params.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = limit
	}

	events, err := h.service.ListWebhookEvents(r.Context(), query)
	if err != nil {
		if errors.Is(err, ports.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, "list webhook events", err)
		return
	}
	if events == nil {
		events = []domain.WebhookEvent{}
	}
	writeData(w, http.StatusOK, events)
}

func (h *Handler) authorizedAdmin(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.adminToken)) == 1
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.ErrorContext(r.Context(), action+" failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// restoreHeaders returns the headers sent with a replayed response.
func restoreHeaders() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Idempotent-Replayed", "true")
	return header
}
