package memory

import (
	"context"
	"testing"
	"time"

	"github.com/PabloGalante/keepsake/internal/domain"
)

func TestKeepsakeStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := NewKeepsakeStore()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []domain.KeepsakeID{"a", "b", "c"} {
		err := s.SaveKeepsake(ctx, &domain.Keepsake{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Result:    domain.GenerationResult{Letter: "letter " + string(id)},
		})
		if err != nil {
			t.Fatalf("SaveKeepsake failed: %v", err)
		}
	}

	got, err := s.GetKeepsake(ctx, "b")
	if err != nil {
		t.Fatalf("GetKeepsake failed: %v", err)
	}
	if got.Result.Letter != "letter b" {
		t.Fatalf("unexpected letter: %q", got.Result.Letter)
	}

	list, err := s.ListKeepsakes(ctx, 2)
	if err != nil {
		t.Fatalf("ListKeepsakes failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("expected newest first [c b], got %v", ids(list))
	}
}

func TestKeepsakeStore_UpsertKeepsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewKeepsakeStore()

	k := &domain.Keepsake{ID: "x", Result: domain.GenerationResult{Letter: "v1"}}
	if err := s.SaveKeepsake(ctx, k); err != nil {
		t.Fatalf("SaveKeepsake failed: %v", err)
	}
	k.Result.Letter = "mutated after save"

	got, _ := s.GetKeepsake(ctx, "x")
	if got.Result.Letter != "v1" {
		t.Fatalf("store must not alias the caller's keepsake, got %q", got.Result.Letter)
	}

	k.Result.ImageURL = "data:image/png;base64,AA=="
	if err := s.SaveKeepsake(ctx, k); err != nil {
		t.Fatalf("SaveKeepsake failed: %v", err)
	}
	got, _ = s.GetKeepsake(ctx, "x")
	if got.Result.ImageURL == "" {
		t.Fatalf("expected upsert to replace the keepsake")
	}
}

func TestKeepsakeStore_NotFound(t *testing.T) {
	_, err := NewKeepsakeStore().GetKeepsake(context.Background(), "missing")
	if err != domain.ErrKeepsakeNotFound {
		t.Fatalf("expected ErrKeepsakeNotFound, got %v", err)
	}
}

func ids(ks []*domain.Keepsake) []domain.KeepsakeID {
	out := make([]domain.KeepsakeID, 0, len(ks))
	for _, k := range ks {
		out = append(out, k.ID)
	}
	return out
}
