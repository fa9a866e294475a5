package queries

import (
	"context"
	"errors"
	"strings"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// ErrAccessDenied is returned when the order access token does not verify.
var ErrAccessDenied = errors.New("access denied")

// TokenVerifier checks order access tokens as they arrive on the query string.
type TokenVerifier interface {
	VerifyRaw(orderID, token, expires string) bool
}

type GetOrderDetailsQuery struct {
	OrderID string
	Token   string
	Expires string
}

func (q GetOrderDetailsQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

// GetOrderDetailsQueryHandler releases an order only to holders of a valid link.
type GetOrderDetailsQueryHandler struct {
	repo   ports.OrderRepository
	tokens TokenVerifier
}

func NewGetOrderDetailsQueryHandler(repo ports.OrderRepository, tokens TokenVerifier) *GetOrderDetailsQueryHandler {
	return &GetOrderDetailsQueryHandler{repo: repo, tokens: tokens}
}

// Handle verifies the token before touching storage, so unknown orders and bad
// tokens cannot be told apart without a valid signature.
func (h *GetOrderDetailsQueryHandler) Handle(ctx context.Context, query GetOrderDetailsQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, ports.InvalidInput(err)
	}

	if !h.tokens.VerifyRaw(query.OrderID, query.Token, query.Expires) {
		return nil, ErrAccessDenied
	}

	return h.repo.GetByID(ctx, query.OrderID)
}
