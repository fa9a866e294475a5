package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const defaultCurrency = "ARS"

type CreateDraftCommand struct {
	CustomerEmail string
	AmountCents   int64
	Currency      string
}

func (c CreateDraftCommand) Validate() error {
	if strings.TrimSpace(c.CustomerEmail) == "" {
		return errors.New("customer_email is required")
	}
	if !strings.Contains(c.CustomerEmail, "@") {
		return errors.New("customer_email must be valid")
	}
	if c.AmountCents <= 0 {
		return errors.New("amount_cents must be positive")
	}
	return nil
}

type DraftCommandHandler interface {
	Handle(ctx context.Context, cmd CreateDraftCommand) (*domain.OrderDraft, error)
}

type CreateDraftCommandHandler struct {
	repo ports.DraftRepository
	now  func() time.Time
}

func NewCreateDraftCommandHandler(repo ports.DraftRepository) *CreateDraftCommandHandler {
	return &CreateDraftCommandHandler{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (h *CreateDraftCommandHandler) Handle(ctx context.Context, cmd CreateDraftCommand) (*domain.OrderDraft, error) {
	if err := cmd.Validate(); err != nil {
		return nil, ports.InvalidInput(err)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	now := h.now()
	draft := domain.OrderDraft{
		ID:            uuid.NewString(),
		Status:        domain.DraftPending,
		CustomerEmail: strings.TrimSpace(cmd.CustomerEmail),
		AmountCents:   cmd.AmountCents,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := draft.Validate(); err != nil {
		return nil, ports.InvalidInput(err)
	}

	if err := h.repo.Create(ctx, draft); err != nil {
		return nil, err
	}

	return &draft, nil
}
