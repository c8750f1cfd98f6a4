package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

func i64(v int64) *int64 { return &v }

func TestFormatStars(t *testing.T) {
	if got := FormatStars(nil); got != "—" {
		t.Fatalf("nil amount = %q", got)
	}
	if got := FormatStars(i64(150)); got != "150 ⭐" {
		t.Fatalf("amount = %q", got)
	}
}

func TestRenderSuggestions_BulletBlocksJoinedByBlankLine(t *testing.T) {
	out := RenderSuggestions([]domain.Suggestion{
		{Title: "Convert to Stars: 🧸", Details: "A regular gift worth 150 ⭐ if converted."},
		{Title: "Unique ready to sell: Plush-1", Details: "Can be transferred now."},
	})

	blocks := strings.Split(out, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), out)
	}
	if !strings.HasPrefix(blocks[0], "• <b>Convert to Stars: 🧸</b>\n") {
		t.Fatalf("first block malformed: %q", blocks[0])
	}
	if !strings.HasSuffix(blocks[1], "\nCan be transferred now.") {
		t.Fatalf("second block malformed: %q", blocks[1])
	}
}

func TestRenderSuggestions_Empty(t *testing.T) {
	if got := RenderSuggestions(nil); got != "" {
		t.Fatalf("empty input should render empty string, got %q", got)
	}
}

func TestRenderCatalog_LimitsAndMarksUnlimited(t *testing.T) {
	entries := make([]domain.GiftCatalogEntry, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, domain.GiftCatalogEntry{
			ID:        "g",
			Title:     "Bear",
			StarCount: i64(100),
		})
	}
	entries[0].TotalCount = i64(500)
	entries[0].RemainingCount = i64(42)

	out := RenderCatalog(entries)
	lines := strings.Split(out, "\n")
	// Header plus at most ten entries.
	if len(lines) != 1+catalogPreviewLimit {
		t.Fatalf("expected %d lines, got %d:\n%s", 1+catalogPreviewLimit, len(lines), out)
	}
	if !strings.Contains(lines[1], "(left: 42)") {
		t.Fatalf("limited gift should show remaining count: %q", lines[1])
	}
	if !strings.Contains(lines[2], "(left: ∞)") {
		t.Fatalf("unlimited gift should show ∞: %q", lines[2])
	}
}

func TestRenderPortfolioSummary_Counts(t *testing.T) {
	snap := domain.PortfolioSnapshot{
		TotalCount: 3,
		Gifts: []domain.GiftRecord{
			domain.NewRegularRecord(domain.RegularGift{GiftID: "a"}),
			domain.NewRegularRecord(domain.RegularGift{GiftID: "b"}),
			domain.NewUniqueRecord(domain.UniqueGift{GiftID: "c"}),
		},
	}
	got := RenderPortfolioSummary(snap)
	if !strings.Contains(got, "3 gifts") || !strings.Contains(got, "2 regular") || !strings.Contains(got, "1 unique") {
		t.Fatalf("summary wrong: %q", got)
	}
}

func TestRenderHistory(t *testing.T) {
	if got := RenderHistory(nil); got != "No alerts delivered yet." {
		t.Fatalf("empty history = %q", got)
	}
	got := RenderHistory([]domain.Alert{
		{CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), Suggestions: 2},
	})
	if !strings.Contains(got, "2025-06-01 12:30Z") || !strings.Contains(got, "2 suggestion(s)") {
		t.Fatalf("history line wrong: %q", got)
	}
}
