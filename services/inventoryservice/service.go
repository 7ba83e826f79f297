package inventoryservice

import (
	"context"

	"github.com/tradecore/platform/pkg/contract"
)

// Service implements the read-only inventory catalog the gateway's public
// routes proxy to.
type Service struct {
	store *Store
}

// NewService creates an inventory Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Get returns a single asset.
func (s *Service) Get(ctx context.Context, assetID string) (contract.Asset, error) {
	return s.store.Get(ctx, assetID)
}

// List returns one page of assets plus the total count for the page
// envelope, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string, limit, offset int) ([]contract.Asset, int, error) {
	assets, err := s.store.List(ctx, category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, category)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}
