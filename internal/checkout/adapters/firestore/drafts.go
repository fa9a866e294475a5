// Package firestore stores checkout drafts as documents, for deployments that
// keep the storefront catalog in Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
)

const DraftsCollection = "order_drafts"

type draftDoc struct {
	Status           string    `firestore:"status"`
	CustomerEmail    string    `firestore:"customerEmail"`
	AmountCents      int64     `firestore:"amountCents"`
	Currency         string    `firestore:"currency"`
	ConvertedOrderID string    `firestore:"convertedOrderId,omitempty"`
	OrderNumber      string    `firestore:"orderNumber,omitempty"`
	PaymentID        string    `firestore:"paymentId,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func toDoc(d domain.OrderDraft) draftDoc {
	return draftDoc{
		Status:           string(d.Status),
		CustomerEmail:    d.CustomerEmail,
		AmountCents:      d.AmountCents,
		Currency:         d.Currency,
		ConvertedOrderID: d.ConvertedOrderID,
		OrderNumber:      d.OrderNumber,
		PaymentID:        d.PaymentID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (doc draftDoc) toDomain(id string) domain.OrderDraft {
	return domain.OrderDraft{
		ID:               id,
		Status:           domain.DraftStatus(doc.Status),
		CustomerEmail:    doc.CustomerEmail,
		AmountCents:      doc.AmountCents,
		Currency:         doc.Currency,
		ConvertedOrderID: doc.ConvertedOrderID,
		OrderNumber:      doc.OrderNumber,
		PaymentID:        doc.PaymentID,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

type DraftRepository struct {
	client *firestore.Client
}

func NewDraftRepository(client *firestore.Client) *DraftRepository {
	return &DraftRepository{client: client}
}

func (r *DraftRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(DraftsCollection).Doc(id)
}

func (r *DraftRepository) Create(ctx context.Context, draft domain.OrderDraft) error {
	if _, err := r.doc(draft.ID).Create(ctx, toDoc(draft)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ports.ErrConflict
		}
		return fmt.Errorf("create draft document: %w", err)
	}
	return nil
}

func (r *DraftRepository) GetByID(ctx context.Context, id string) (*domain.OrderDraft, error) {
	snap, err := r.doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err, "get draft document")
	}
	return decode(snap)
}

// MarkConverted reads and writes the draft in one transaction so two
// concurrent conversions cannot both win.
func (r *DraftRepository) MarkConverted(ctx context.Context, id, orderID, orderNumber, paymentID string) (bool, error) {
	var converted bool
	ref := r.doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		converted = false

		snap, err := tx.Get(ref)
		if err != nil {
			return mapNotFound(err, "get draft document")
		}
		draft, err := decode(snap)
		if err != nil {
			return err
		}

		if draft.Status == domain.DraftConverted {
			if draft.ConvertedOrderID == orderID {
				return nil
			}
			return ports.ErrConflict
		}

		converted = true
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(domain.DraftConverted)},
			{Path: "convertedOrderId", Value: orderID},
			{Path: "orderNumber", Value: orderNumber},
			{Path: "paymentId", Value: paymentID},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrConflict) {
			return false, err
		}
		return false, fmt.Errorf("convert draft document: %w", err)
	}
	return converted, nil
}

func decode(snap *firestore.DocumentSnapshot) (*domain.OrderDraft, error) {
	var doc draftDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode draft document: %w", err)
	}
	draft := doc.toDomain(snap.Ref.ID)
	return &draft, nil
}

func mapNotFound(err error, op string) error {
	if status.Code(err) == codes.NotFound {
		return ports.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
