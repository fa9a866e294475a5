package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

// GetDraftStatusQuery asks for the polling view of one draft.
type GetDraftStatusQuery struct {
	DraftID string
}

func (q GetDraftStatusQuery) Validate() error {
	if strings.TrimSpace(q.DraftID) == "" {
		return errors.New("draft_id is required")
	}
	return nil
}

// GetDraftStatusQueryHandler reads draft status, consulting the cache first when
// one is configured. Only converted views are cached since nothing changes after.
type GetDraftStatusQueryHandler struct {
	repo   ports.DraftRepository
	cache  ports.DraftStatusCache
	logger *slog.Logger
}

// NewGetDraftStatusQueryHandler accepts a nil cache.
func NewGetDraftStatusQueryHandler(repo ports.DraftRepository, cache ports.DraftStatusCache, logger *slog.Logger) *GetDraftStatusQueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetDraftStatusQueryHandler{repo: repo, cache: cache, logger: logger}
}

func (h *GetDraftStatusQueryHandler) Handle(ctx context.Context, query GetDraftStatusQuery) (*domain.DraftStatusView, error) {
	if err := query.Validate(); err != nil {
		return nil, ports.InvalidInput(err)
	}

	if h.cache != nil {
		view, err := h.cache.Get(ctx, query.DraftID)
		if err != nil {
			h.logger.WarnContext(ctx, "draft status cache read failed", "draft_id", query.DraftID, "error", err)
		} else if view != nil {
			return view, nil
		}
	}

	draft, err := h.repo.GetByID(ctx, query.DraftID)
	if err != nil {
		return nil, err
	}

	view := draft.StatusView()
	if h.cache != nil && view.Status == domain.DraftConverted {
		if err := h.cache.Put(ctx, query.DraftID, view); err != nil {
			h.logger.WarnContext(ctx, "draft status cache write failed", "draft_id", query.DraftID, "error", err)
		}
	}

	return &view, nil
}
