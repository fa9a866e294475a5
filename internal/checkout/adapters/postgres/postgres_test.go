//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mistika/checkout/internal/checkout/adapters/postgres"
	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/database/databasetest"
)

func newDraft(id string) domain.OrderDraft {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.OrderDraft{
		ID:            id,
		Status:        domain.DraftPending,
		CustomerEmail: "buyer@example.com",
		AmountCents:   150000,
		Currency:      "ARS",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newEvent(eventID string, claimedAt time.Time) domain.WebhookEvent {
	return domain.WebhookEvent{
		ID:                  uuid.NewString(),
		Provider:            "mercadopago",
		EventID:             eventID,
		Topic:               domain.TopicPayment,
		Action:              "payment.updated",
		ResourceID:          "123456789",
		Status:              domain.WebhookReceived,
		RawPayloadTruncated: `{"id":"` + eventID + `"}`,
		ClaimedAt:           claimedAt,
	}
}

func TestDraftRepository(t *testing.T) {
	repo := postgres.NewDraftRepository(databasetest.NewPool(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newDraft("D1")); err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}

	t.Run("duplicate id conflicts", func(t *testing.T) {
		if err := repo.Create(ctx, newDraft("D1")); !errors.Is(err, ports.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("unknown draft is not found", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("conversion happens once", func(t *testing.T) {
		converted, err := repo.MarkConverted(ctx, "D1", "O1", "MST-20260301-ABCDEF", "P1")
		if err != nil || !converted {
			t.Fatalf("expected conversion, got %v %v", converted, err)
		}

		converted, err = repo.MarkConverted(ctx, "D1", "O1", "MST-20260301-ABCDEF", "P1")
		if err != nil || converted {
			t.Errorf("expected idempotent repeat, got %v %v", converted, err)
		}

		if _, err := repo.MarkConverted(ctx, "D1", "O2", "MST-20260301-ZZZZZZ", "P2"); !errors.Is(err, ports.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		draft, err := repo.GetByID(ctx, "D1")
		if err != nil {
			t.Fatalf("failed to load draft: %v", err)
		}
		view := draft.StatusView()
		if view.Status != domain.DraftConverted || view.OrderID != "O1" || view.OrderNumber != "MST-20260301-ABCDEF" {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("unknown draft cannot be converted", func(t *testing.T) {
		if _, err := repo.MarkConverted(ctx, "missing", "O1", "N", "P"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOrderRepository(t *testing.T) {
	repo := postgres.NewOrderRepository(databasetest.NewPool(t))
	ctx := context.Background()
	now := time.Now().UTC()

	order := domain.Order{
		ID:            "O1",
		DraftID:       "D1",
		OrderNumber:   "MST-20260301-ABCDEF",
		CustomerEmail: "buyer@example.com",
		AmountCents:   150000,
		Currency:      "ARS",
		PaymentID:     "P1",
		Status:        domain.OrderConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	stored, created, err := repo.CreateForDraft(ctx, order)
	if err != nil || !created || stored.ID != "O1" {
		t.Fatalf("expected O1 created, got %+v %v %v", stored, created, err)
	}

	t.Run("second order for the same draft returns the first", func(t *testing.T) {
		other := order
		other.ID = "O2"
		other.OrderNumber = "MST-20260301-ZZZZZZ"

		stored, created, err := repo.CreateForDraft(ctx, other)
		if err != nil || created || stored.ID != "O1" {
			t.Errorf("expected existing O1, got %+v %v %v", stored, created, err)
		}
	})

	t.Run("lookup by payment and status update", func(t *testing.T) {
		found, err := repo.GetByPaymentID(ctx, "P1")
		if err != nil || found.ID != "O1" {
			t.Fatalf("expected O1 by payment, got %+v %v", found, err)
		}
		if err := repo.UpdateStatus(ctx, "O1", domain.OrderInDispute); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		updated, _ := repo.GetByID(ctx, "O1")
		if updated.Status != domain.OrderInDispute {
			t.Errorf("expected in_dispute, got %s", updated.Status)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		if err := repo.UpdateStatus(ctx, "missing", domain.OrderRefunded); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.GetByPaymentID(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestWebhookEventStoreClaim(t *testing.T) {
	store := postgres.NewWebhookEventStore(databasetest.NewPool(t))
	ctx := context.Background()
	lease := time.Minute
	base := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("lifecycle", func(t *testing.T) {
		first, outcome, err := store.Claim(ctx, newEvent("E1", base), lease)
		if err != nil || outcome != ports.ClaimAcquired {
			t.Fatalf("expected claim, got %s %v", outcome, err)
		}

		_, outcome, _ = store.Claim(ctx, newEvent("E1", base.Add(time.Second)), lease)
		if outcome != ports.ClaimInFlight {
			t.Errorf("expected in_flight, got %s", outcome)
		}

		if err := store.MarkFailed(ctx, first.ID, first.ClaimedAt, "provider timeout"); err != nil {
			t.Fatalf("MarkFailed() failed: %v", err)
		}

		retried, outcome, err := store.Claim(ctx, newEvent("E1", base.Add(2*time.Second)), lease)
		if err != nil || outcome != ports.ClaimAcquired {
			t.Fatalf("expected re-claim after failure, got %s %v", outcome, err)
		}
		if retried.ID != first.ID || retried.RetryCount != 1 {
			t.Errorf("expected same row with retry count 1, got %+v", retried)
		}

		if err := store.MarkProcessed(ctx, retried.ID, first.ClaimedAt); !errors.Is(err, ports.ErrConflict) {
			t.Errorf("expected ErrConflict for a superseded lease, got %v", err)
		}
		if err := store.MarkProcessed(ctx, retried.ID, retried.ClaimedAt); err != nil {
			t.Fatalf("MarkProcessed() failed: %v", err)
		}
		if err := store.MarkProcessed(ctx, retried.ID, retried.ClaimedAt); !errors.Is(err, ports.ErrConflict) {
			t.Errorf("expected ErrConflict on second mark, got %v", err)
		}

		_, outcome, _ = store.Claim(ctx, newEvent("E1", base.Add(time.Hour)), lease)
		if outcome != ports.ClaimDuplicate {
			t.Errorf("expected duplicate, got %s", outcome)
		}

		final, err := store.FindByKey(ctx, "mercadopago", "E1")
		if err != nil {
			t.Fatalf("FindByKey() failed: %v", err)
		}
		if final.Status != domain.WebhookProcessed || final.ProcessedAt == nil || final.LastError != "" {
			t.Errorf("unexpected final state %+v", final)
		}
	})

	t.Run("stale lease is taken over", func(t *testing.T) {
		store.Claim(ctx, newEvent("E2", base), lease)
		_, outcome, err := store.Claim(ctx, newEvent("E2", base.Add(2*lease)), lease)
		if err != nil || outcome != ports.ClaimAcquired {
			t.Errorf("expected takeover, got %s %v", outcome, err)
		}
	})

	t.Run("concurrent deliveries yield exactly one claim", func(t *testing.T) {
		const deliveries = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			acquired int
		)
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, outcome, err := store.Claim(ctx, newEvent("E3", base), lease)
				if err != nil {
					t.Errorf("Claim() failed: %v", err)
					return
				}
				if outcome == ports.ClaimAcquired {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if acquired != 1 {
			t.Errorf("expected exactly one acquired claim, got %d", acquired)
		}
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		failed := domain.WebhookFailed
		events, err := store.List(ctx, ports.WebhookEventFilter{Provider: "mercadopago", Status: &failed})
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected no failed events, got %d", len(events))
		}

		all, err := store.List(ctx, ports.WebhookEventFilter{Limit: 2})
		if err != nil || len(all) != 2 {
			t.Errorf("expected 2 events, got %d %v", len(all), err)
		}
	})
}
