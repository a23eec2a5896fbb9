package stats

import (
	"context"
	"strconv"
)

// Service layers a versioned cache over the aggregate queries.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService constructs a new Service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Pharma returns the catalog dashboard for one pharma company.
func (s *Service) Pharma(ctx context.Context, pharmaID int64) (*PharmaStats, error) {
	key, err := s.cache.BuildKey(ctx, "stats", "pharma", strconv.FormatInt(pharmaID, 10))
	if err != nil {
		return nil, err
	}
	var out PharmaStats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.PharmaStats(ctx, pharmaID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Store returns the purchasing dashboard for one medical store.
func (s *Service) Store(ctx context.Context, storeID int64) (*StoreStats, error) {
	key, err := s.cache.BuildKey(ctx, "stats", "store", strconv.FormatInt(storeID, 10))
	if err != nil {
		return nil, err
	}
	var out StoreStats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.StoreStats(ctx, storeID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Admin returns the account base dashboard.
func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	key, err := s.cache.BuildKey(ctx, "stats", "admin")
	if err != nil {
		return nil, err
	}
	var out AdminStats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.AdminStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate bumps the cache version after writes that move the numbers.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
