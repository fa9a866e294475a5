package ports

import (
	"context"
	"errors"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// DraftRepository persists checkout drafts.
type DraftRepository interface {
	Create(ctx context.Context, draft domain.OrderDraft) error
	GetByID(ctx context.Context, id string) (*domain.OrderDraft, error)
	// MarkConverted records the conversion with a conditional write. converted is
	// true only for the call that performed the transition; repeating it for the
	// same order is a no-op, for a different order it is ErrConflict.
	MarkConverted(ctx context.Context, id, orderID, orderNumber, paymentID string) (converted bool, err error)
}

// DraftStatusCache holds terminal draft status views for polling clients.
type DraftStatusCache interface {
	Get(ctx context.Context, draftID string) (*domain.DraftStatusView, error)
	Put(ctx context.Context, draftID string, view domain.DraftStatusView) error
}

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write loses to another writer.
	ErrConflict = errors.New("conflicting update")
)
