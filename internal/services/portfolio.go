// Package services – PortfolioService
//
// This file implements the retrieval of a connected user's full gift
// inventory. The platform pages the listing, so one refresh walks every
// page and stores the merged snapshot in the state cache.
package services

import (
	"context"
	"time"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

// GiftsClient is the platform operation PortfolioService needs.
type GiftsClient interface {
	// GetBusinessAccountGifts returns one page of owned gifts plus the next
	// page token ("" on the last page) and the account-wide total.
	GetBusinessAccountGifts(ctx context.Context, connectionID, offset string, limit int) ([]domain.GiftRecord, string, int, error)
}

// PortfolioService loads and caches user portfolios.
type PortfolioService struct {
	Client GiftsClient
	Store  *state.Store

	// PageSize is the per-request listing limit.
	PageSize int
}

// NewPortfolioService constructs a PortfolioService with the platform's
// maximum page size.
func NewPortfolioService(c GiftsClient, st *state.Store) *PortfolioService {
	return &PortfolioService{Client: c, Store: st, PageSize: 50}
}

// Refresh fetches the user's complete portfolio and caches the snapshot.
//
// A user without a registered business connection gets an empty snapshot and
// no error: the bot degrades to "nothing to analyze" rather than failing,
// since an unconnected account is an expected state, not a fault.
func (s *PortfolioService) Refresh(ctx context.Context, userID int64) (domain.PortfolioSnapshot, error) {
	conn, ok := s.Store.Connection(userID)
	if !ok {
		return domain.PortfolioSnapshot{Gifts: []domain.GiftRecord{}, FetchedAt: time.Now().UTC()}, nil
	}

	var (
		all    []domain.GiftRecord
		offset string
		total  int
	)
	for {
		page, next, tc, err := s.Client.GetBusinessAccountGifts(ctx, conn, offset, s.PageSize)
		if err != nil {
			return domain.PortfolioSnapshot{}, err
		}
		total = tc
		all = append(all, page...)
		if next == "" {
			break
		}
		offset = next
	}

	snap := domain.PortfolioSnapshot{
		TotalCount: total,
		Gifts:      all,
		FetchedAt:  time.Now().UTC(),
	}
	if err := s.Store.SetPortfolio(userID, snap); err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	return snap, nil
}

// CachedOrRefresh returns the cached portfolio when present, fetching it
// otherwise. Ticks refresh explicitly; on-demand analysis tolerates a stale
// cache.
func (s *PortfolioService) CachedOrRefresh(ctx context.Context, userID int64) (domain.PortfolioSnapshot, error) {
	if snap, ok := s.Store.Portfolio(userID); ok {
		return snap, nil
	}
	return s.Refresh(ctx, userID)
}
