package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// KeepsakeStore is a simple in-memory implementation of domain.KeepsakeStore.
// It is NOT persistent and is only suitable for development / local mode.
type KeepsakeStore struct {
	mu        sync.RWMutex
	keepsakes map[domain.KeepsakeID]*domain.Keepsake
}

// NewKeepsakeStore creates a new in-memory KeepsakeStore.
func NewKeepsakeStore() *KeepsakeStore {
	return &KeepsakeStore{
		keepsakes: make(map[domain.KeepsakeID]*domain.Keepsake),
	}
}

// SaveKeepsake inserts or replaces a keepsake. The store keeps its own copy.
func (s *KeepsakeStore) SaveKeepsake(_ context.Context, k *domain.Keepsake) error {
	if k == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *k
	cp.Result = k.Result.Clone()
	s.keepsakes[k.ID] = &cp
	return nil
}

func (s *KeepsakeStore) GetKeepsake(_ context.Context, id domain.KeepsakeID) (*domain.Keepsake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keepsakes[id]
	if !ok {
		return nil, domain.ErrKeepsakeNotFound
	}
	cp := *k
	cp.Result = k.Result.Clone()
	return &cp, nil
}

// ListKeepsakes returns the newest `limit` keepsakes, newest first.
// If limit <= 0, returns all.
func (s *KeepsakeStore) ListKeepsakes(_ context.Context, limit int) ([]*domain.Keepsake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Keepsake, 0, len(s.keepsakes))
	for _, k := range s.keepsakes {
		cp := *k
		cp.Result = k.Result.Clone()
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
