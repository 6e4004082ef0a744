package archive

import (
	"context"

	"github.com/PabloGalante/keepsake/internal/domain"
)

const defaultLimit = 20

// Service holds the logic of reading archived keepsakes
type Service struct {
	store domain.KeepsakeStore
}

// NewService creates an archive service from a KeepsakeStore
func NewService(store domain.KeepsakeStore) *Service {
	return &Service{
		store: store,
	}
}

// ListKeepsakes returns the last `limit` keepsakes, newest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) ListKeepsakes(ctx context.Context, limit int) ([]*domain.Keepsake, error) {
	if s.store == nil {
		return []*domain.Keepsake{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	out, err := s.store.ListKeepsakes(ctx, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*domain.Keepsake{}
	}
	return out, nil
}

// GetKeepsake returns one archived keepsake.
func (s *Service) GetKeepsake(ctx context.Context, id domain.KeepsakeID) (*domain.Keepsake, error) {
	if s.store == nil {
		return nil, domain.ErrKeepsakeNotFound
	}
	return s.store.GetKeepsake(ctx, id)
}
