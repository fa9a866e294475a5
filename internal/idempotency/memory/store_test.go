package memory_test

import (
	"context"
	"testing"

	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/idempotency/memory"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	got, err := store.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil for unknown key, got %+v %v", got, err)
	}

	first := ports.StoredResponse{StatusCode: 201, Body: []byte(`{"id":"d1"}`), DraftID: "d1"}
	second := ports.StoredResponse{StatusCode: 201, Body: []byte(`{"id":"d2"}`), DraftID: "d2"}
	store.Save(ctx, "k", first)
	store.Save(ctx, "k", second)

	got, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.DraftID != "d1" || string(got.Body) != `{"id":"d1"}` {
		t.Errorf("expected first response to be preserved, got %+v", got)
	}
}
