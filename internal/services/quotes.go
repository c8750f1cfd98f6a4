// Package services – quote enrichment
//
// Market floor prices for unique gifts are not exposed by the platform, so
// the quote source is pluggable. The default provider returns empty quotes,
// which analysis treats as "no price to cite" rather than an error.
package services

import (
	"context"
	"time"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// QuoteProvider supplies best-effort market quotes for unique gifts.
type QuoteProvider interface {
	// GetQuotes returns a quote per requested gift id. Missing entries and
	// quotes with nil prices are both valid.
	GetQuotes(ctx context.Context, giftIDs []string) (map[string]domain.Quote, error)
}

// StubQuoteProvider is the default QuoteProvider: one empty quote per
// requested gift. Wire a real marketplace source here when one exists.
type StubQuoteProvider struct{}

// GetQuotes implements QuoteProvider.
func (StubQuoteProvider) GetQuotes(_ context.Context, giftIDs []string) (map[string]domain.Quote, error) {
	now := time.Now().UTC()
	out := make(map[string]domain.Quote, len(giftIDs))
	for _, id := range giftIDs {
		out[id] = domain.Quote{GiftID: id, FetchedAt: now}
	}
	return out, nil
}

// StaticQuoteProvider serves a fixed quote table. Useful for tests and for
// operating the bot against a manually curated price list.
type StaticQuoteProvider struct {
	Quotes map[string]domain.Quote
}

// GetQuotes implements QuoteProvider.
func (p StaticQuoteProvider) GetQuotes(_ context.Context, giftIDs []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(giftIDs))
	for _, id := range giftIDs {
		if q, ok := p.Quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}
