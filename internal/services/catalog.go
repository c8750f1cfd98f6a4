// Package services contains the business logic of the bot: catalog and
// portfolio retrieval, quote enrichment, and the portfolio analysis rules.
//
// Services depend on narrow client interfaces rather than the concrete
// Telegram client, so they can be exercised with fakes.
package services

import (
	"context"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

// CatalogClient is the platform operation CatalogService needs.
type CatalogClient interface {
	// GetAvailableGifts returns the current global gift catalog.
	GetAvailableGifts(ctx context.Context) ([]domain.GiftCatalogEntry, error)
}

// CatalogService fetches the gift catalog and maintains its cached copy in
// the state store. The cache is replaced wholesale on every refresh.
type CatalogService struct {
	Client CatalogClient
	Store  *state.Store
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(c CatalogClient, st *state.Store) *CatalogService {
	return &CatalogService{Client: c, Store: st}
}

// Refresh fetches the catalog from the platform and replaces the cache.
// It returns the fresh entries in fetch order.
func (s *CatalogService) Refresh(ctx context.Context) ([]domain.GiftCatalogEntry, error) {
	entries, err := s.Client.GetAvailableGifts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Store.ReplaceCatalog(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Cached returns the cached catalog keyed by gift id. The copy may be
// stale; analysis tolerates that by design.
func (s *CatalogService) Cached() map[string]domain.GiftCatalogEntry {
	return s.Store.Catalog()
}

// CachedOrRefresh returns the cached catalog, refreshing it first when the
// cache is empty. This mirrors the staleness-tolerant read pattern used by
// analysis: a populated cache is served as-is.
func (s *CatalogService) CachedOrRefresh(ctx context.Context) (map[string]domain.GiftCatalogEntry, error) {
	if cached := s.Store.Catalog(); len(cached) > 0 {
		return cached, nil
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.Store.Catalog(), nil
}
