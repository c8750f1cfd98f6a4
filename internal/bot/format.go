// Package bot wires inbound Telegram updates to the application services.
// This file renders outbound message text. The formatting contract is
// simple: each suggestion is a bold title line plus a details line,
// suggestions are separated by a blank line, and star amounts render as
// "N ⭐" with an em dash standing in for absent values.
package bot

import (
	"fmt"
	"strings"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// FormatStars renders a nullable star amount.
func FormatStars(v *int64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d ⭐", *v)
}

// RenderSuggestions renders an analysis result as one HTML message body.
func RenderSuggestions(ss []domain.Suggestion) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, fmt.Sprintf("• <b>%s</b>\n%s", s.Title, s.Details))
	}
	return strings.Join(parts, "\n\n")
}

// catalogPreviewLimit caps how many catalog entries /catalog shows.
const catalogPreviewLimit = 10

// RenderCatalog renders a preview of the gift catalog in fetch order.
// Unlimited gifts show "∞" instead of a remaining count.
func RenderCatalog(entries []domain.GiftCatalogEntry) string {
	var b strings.Builder
	b.WriteString("Gift catalog (preview):\n")
	for i, e := range entries {
		if i == catalogPreviewLimit {
			break
		}
		left := "∞"
		if e.TotalCount != nil {
			left = "—"
			if e.RemainingCount != nil {
				left = fmt.Sprintf("%d", *e.RemainingCount)
			}
		}
		b.WriteString(fmt.Sprintf("%s — %s (left: %s)\n", e.Title, FormatStars(e.StarCount), left))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderPortfolioSummary renders the /portfolio counts line.
func RenderPortfolioSummary(snap domain.PortfolioSnapshot) string {
	var regular, unique int
	for _, g := range snap.Gifts {
		switch g.Class {
		case domain.GiftClassRegular:
			regular++
		case domain.GiftClassUnique:
			unique++
		}
	}
	return fmt.Sprintf("You have %d gifts: %d regular and %d unique.\nUse /analyze for recommendations.",
		snap.TotalCount, regular, unique)
}

// RenderHistory renders recent alerts, newest first.
func RenderHistory(alerts []domain.Alert) string {
	if len(alerts) == 0 {
		return "No alerts delivered yet."
	}
	var b strings.Builder
	b.WriteString("Recent alerts:\n")
	for _, a := range alerts {
		b.WriteString(fmt.Sprintf("%s — %d suggestion(s)\n",
			a.CreatedAt.UTC().Format("2006-01-02 15:04Z"), a.Suggestions))
	}
	return strings.TrimRight(b.String(), "\n")
}
