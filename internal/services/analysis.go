// Package services – AnalysisEngine
//
// This file implements the heuristic rule engine at the heart of the bot.
// Given the cached catalog, a user's portfolio, optional market quotes, and
// the user's thresholds, it produces an ordered list of suggestions:
// convert, upgrade, or "ready to sell". The engine is pure: it performs no
// I/O, never fails, and treats every absent optional field as "rule does
// not apply".
package services

import (
	"fmt"
	"time"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// AnalysisEngine evaluates the suggestion rules over a portfolio. The zero
// value is ready to use; Now can be overridden in tests to pin the clock
// used for transfer-date checks.
type AnalysisEngine struct {
	Now func() time.Time
}

// NewAnalysisEngine constructs an engine using the wall clock.
func NewAnalysisEngine() *AnalysisEngine {
	return &AnalysisEngine{Now: time.Now}
}

// Analyze applies the rules to each portfolio item independently and returns
// suggestions in portfolio order: regular items first, then unique items,
// each group in fetch order. When no rule fires, a single placeholder
// suggestion is returned so the caller always has something to say.
//
// Rules:
//  1. Regular gift: when ConvertStarCount is present and at or above
//     settings.MinProfitStars, suggest converting. Otherwise, when the gift
//     can be upgraded and its catalog entry prices the upgrade, suggest
//     upgrading. When neither applies, the item is skipped.
//  2. Unique gift: when the gift is transferable now (missing or past
//     NextTransferDate; malformed dates fail open), suggest selling. A quote
//     with a floor price adds the price to the detail text.
//
// settings.MinProfitPct is accepted but not applied: no baseline cost
// exists to compute a percentage against.
func (e *AnalysisEngine) Analyze(
	catalog map[string]domain.GiftCatalogEntry,
	portfolio []domain.GiftRecord,
	quotes map[string]domain.Quote,
	settings domain.UserSettings,
) []domain.Suggestion {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	var suggestions []domain.Suggestion

	for _, rec := range portfolio {
		if rec.Class != domain.GiftClassRegular || rec.Regular == nil {
			continue
		}
		r := rec.Regular
		switch {
		case r.ConvertStarCount != nil && *r.ConvertStarCount >= settings.MinProfitStars:
			suggestions = append(suggestions, domain.Suggestion{
				Title:   "Convert to Stars: " + r.Title,
				Details: fmt.Sprintf("A regular gift worth %s if converted.", fmtStars(r.ConvertStarCount)),
			})
		case r.CanBeUpgraded:
			entry, ok := catalog[r.GiftID]
			if ok && entry.UpgradeStarCount != nil {
				suggestions = append(suggestions, domain.Suggestion{
					Title:   "Consider an upgrade: " + r.Title,
					Details: fmt.Sprintf("Upgrading to a unique gift costs %s. Check the market first.", fmtStars(entry.UpgradeStarCount)),
				})
			}
		}
	}

	for _, rec := range portfolio {
		if rec.Class != domain.GiftClassUnique || rec.Unique == nil {
			continue
		}
		u := rec.Unique
		if !u.CanTransferNow(now) {
			continue
		}
		details := "Can be transferred now."
		if q, ok := quotes[u.GiftID]; ok && q.FloorStars != nil {
			details += fmt.Sprintf(" Floor estimate: ~%s.", fmtStars(q.FloorStars))
		}
		suggestions = append(suggestions, domain.Suggestion{
			Title:   "Unique ready to sell: " + u.Title,
			Details: details,
		})
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, domain.Suggestion{
			Title:   "No clear actions yet",
			Details: "Waiting for catalog or portfolio changes.",
		})
	}
	return suggestions
}

// fmtStars renders a nullable star amount as "N ⭐", or a dash when absent.
func fmtStars(v *int64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d ⭐", *v)
}
