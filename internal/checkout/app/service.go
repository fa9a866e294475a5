package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/mistika/checkout/internal/checkout/app/commands"
	"github.com/mistika/checkout/internal/checkout/app/queries"
	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/metrics"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// Dependencies are the adapters the checkout use cases run against.
type Dependencies struct {
	Drafts      ports.DraftRepository
	Orders      ports.OrderRepository
	Events      ports.WebhookEventStore
	Idempotency ports.IdempotencyStore
	Provider    ports.PaymentProvider
	Mailer      ports.ConfirmationMailer
	Tokens      TokenService
	Bus         ports.EventBus
	// StatusCache is optional.
	StatusCache ports.DraftStatusCache
	ClaimLease  time.Duration
}

// TokenService issues detail links for emails and verifies them on access.
type TokenService interface {
	ports.LinkBuilder
	queries.TokenVerifier
}

// Service bundles use cases for the checkout API.
type Service struct {
	idemStore      ports.IdempotencyStore
	createDraft    commands.DraftCommandHandler
	processWebhook commands.WebhookCommandHandler
	draftStatus    *queries.GetDraftStatusQueryHandler
	orderDetails   *queries.GetOrderDetailsQueryHandler
	webhookEvents  *queries.ListWebhookEventsQueryHandler
}

// NewService wires required dependencies.
func NewService(deps Dependencies, logger *slog.Logger, metrics *metrics.Metrics) *Service {
	createDraft := commands.NewCreateDraftCommandHandler(deps.Drafts)

	fulfillment := commands.NewFulfillment(deps.Drafts, deps.Orders, deps.Mailer, deps.Tokens, deps.Bus, logger)
	processWebhook := commands.NewProcessWebhookCommandHandler(deps.Events, deps.Provider, fulfillment, logger, deps.ClaimLease)

	return &Service{
		idemStore:      deps.Idempotency,
		createDraft:    commands.NewObservableDraftCommandHandler(createDraft, logger, metrics),
		processWebhook: commands.NewObservableWebhookCommandHandler(processWebhook, logger, metrics),
		draftStatus:    queries.NewGetDraftStatusQueryHandler(deps.Drafts, deps.StatusCache, logger),
		orderDetails:   queries.NewGetOrderDetailsQueryHandler(deps.Orders, deps.Tokens),
		webhookEvents:  queries.NewListWebhookEventsQueryHandler(deps.Events),
	}
}

// CreateDraftInput captures payload for starting a checkout.
type CreateDraftInput struct {
	CustomerEmail string `json:"customer_email"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (*domain.OrderDraft, error) {
	return s.createDraft.Handle(ctx, commands.CreateDraftCommand{
		CustomerEmail: input.CustomerEmail,
		AmountCents:   input.AmountCents,
		Currency:      input.Currency,
	})
}

// GetDraftStatus returns the view polled by the storefront after redirect.
func (s *Service) GetDraftStatus(ctx context.Context, draftID string) (*domain.DraftStatusView, error) {
	return s.draftStatus.Handle(ctx, queries.GetDraftStatusQuery{DraftID: draftID})
}

// ProcessWebhook runs one provider notification through claim, resolution and apply.
func (s *Service) ProcessWebhook(ctx context.Context, notification domain.Notification) (commands.ProcessWebhookResult, error) {
	return s.processWebhook.Handle(ctx, commands.ProcessWebhookCommand{Notification: notification})
}

func (s *Service) GetOrderDetails(ctx context.Context, orderID, token, expires string) (*domain.Order, error) {
	return s.orderDetails.Handle(ctx, queries.GetOrderDetailsQuery{
		OrderID: orderID,
		Token:   token,
		Expires: expires,
	})
}

func (s *Service) ListWebhookEvents(ctx context.Context, query queries.ListWebhookEventsQuery) ([]domain.WebhookEvent, error) {
	return s.webhookEvents.Handle(ctx, query)
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
