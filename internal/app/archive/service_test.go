package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/PabloGalante/keepsake/internal/adapters/storage/memory"
	"github.com/PabloGalante/keepsake/internal/domain"
)

func TestListKeepsakes_DefaultLimit(t *testing.T) {
	store := memory.NewKeepsakeStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		k := &domain.Keepsake{
			ID:        domain.KeepsakeID(fmt.Sprintf("k%02d", i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveKeepsake(ctx, k); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	svc := NewService(store)
	got, err := svc.ListKeepsakes(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != defaultLimit {
		t.Fatalf("expected %d keepsakes, got %d", defaultLimit, len(got))
	}
	if got[0].ID != "k24" {
		t.Fatalf("expected newest first, got %s", got[0].ID)
	}

	got, err = svc.ListKeepsakes(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 keepsakes, got %d", len(got))
	}
}

func TestNilStore(t *testing.T) {
	svc := NewService(nil)

	got, err := svc.ListKeepsakes(context.Background(), 5)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v %v", got, err)
	}
	if _, err := svc.GetKeepsake(context.Background(), "x"); err != domain.ErrKeepsakeNotFound {
		t.Fatalf("expected ErrKeepsakeNotFound, got %v", err)
	}
}
