// Package domain defines the data model shared across the bot: the cached
// gift catalog, the per-user portfolio of owned gifts, market quotes,
// per-user watch settings, and the process-wide persisted snapshot.
//
// All types here are plain value snapshots. Records are immutable once
// fetched; nothing in this package performs I/O.
package domain

import "time"

// GiftCatalogEntry is a single entry of the global gift catalog as returned
// by getAvailableGifts. The catalog cache is keyed by ID and replaced
// wholesale on every refresh.
//
// Nullable counters are pointers: a nil TotalCount means the gift has
// unlimited supply, a nil UpgradeStarCount means the gift cannot be upgraded
// to a unique one.
type GiftCatalogEntry struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	StarCount        *int64 `json:"star_count,omitempty"`
	TotalCount       *int64 `json:"total_count,omitempty"`
	RemainingCount   *int64 `json:"remaining_count,omitempty"`
	UpgradeStarCount *int64 `json:"upgrade_star_count,omitempty"`
}

// GiftClass discriminates the two variants of an owned gift record.
type GiftClass string

const (
	// GiftClassRegular marks a fungible gift that can be converted to Stars
	// or upgraded to a unique one.
	GiftClassRegular GiftClass = "regular"
	// GiftClassUnique marks a one-of-a-kind gift with transfer timing rules.
	GiftClassUnique GiftClass = "unique"
)

// RegularGift is the fungible variant of an owned gift.
type RegularGift struct {
	GiftID                  string  `json:"gift_id"`
	Title                   string  `json:"title"`
	ConvertStarCount        *int64  `json:"convert_star_count,omitempty"`
	CanBeUpgraded           bool    `json:"can_be_upgraded"`
	PrepaidUpgradeStarCount *int64  `json:"prepaid_upgrade_star_count,omitempty"`
	Text                    *string `json:"text,omitempty"`
}

// UniqueGift is the one-of-a-kind variant of an owned gift.
//
// NextTransferDate is kept as the raw RFC 3339 string from the platform so
// that an unparseable value degrades to "transferable now" instead of being
// rejected at decode time (see CanTransferNow).
type UniqueGift struct {
	GiftID            string  `json:"gift_id"`
	Title             string  `json:"title"`
	Rank              *int64  `json:"rank,omitempty"`
	CanBeTransferred  bool    `json:"can_be_transferred"`
	TransferStarCount *int64  `json:"transfer_star_count,omitempty"`
	NextTransferDate  *string `json:"next_transfer_date,omitempty"`
}

// CanTransferNow reports whether the gift can be transferred at the given
// instant. A missing NextTransferDate means the gift is transferable, and a
// malformed date fails open for the same reason: the bot must never withhold
// a suggestion because the platform sent a timestamp it cannot parse.
func (u UniqueGift) CanTransferNow(now time.Time) bool {
	if u.NextTransferDate == nil || *u.NextTransferDate == "" {
		return true
	}
	at, err := time.Parse(time.RFC3339, *u.NextTransferDate)
	if err != nil {
		return true
	}
	return !at.After(now)
}

// GiftRecord is a two-variant tagged union over RegularGift and UniqueGift.
// Exactly one of Regular/Unique is non-nil, matching Class. The explicit
// discriminant prevents invalid combinations such as a unique gift carrying
// a convert price.
type GiftRecord struct {
	Class   GiftClass    `json:"class"`
	Regular *RegularGift `json:"regular,omitempty"`
	Unique  *UniqueGift  `json:"unique,omitempty"`
}

// NewRegularRecord wraps a RegularGift into a tagged GiftRecord.
func NewRegularRecord(g RegularGift) GiftRecord {
	return GiftRecord{Class: GiftClassRegular, Regular: &g}
}

// NewUniqueRecord wraps a UniqueGift into a tagged GiftRecord.
func NewUniqueRecord(g UniqueGift) GiftRecord {
	return GiftRecord{Class: GiftClassUnique, Unique: &g}
}

// GiftID returns the catalog gift ID of either variant, or "" when the
// record is malformed (class without a matching payload).
func (r GiftRecord) GiftID() string {
	switch r.Class {
	case GiftClassRegular:
		if r.Regular != nil {
			return r.Regular.GiftID
		}
	case GiftClassUnique:
		if r.Unique != nil {
			return r.Unique.GiftID
		}
	}
	return ""
}

// Quote is a best-effort market quote for a unique gift. All price fields
// may be nil; an entirely empty quote is valid and simply contributes
// nothing to analysis.
type Quote struct {
	GiftID         string    `json:"gift_id"`
	FloorStars     *int64    `json:"floor_stars,omitempty"`
	LastTradeStars *int64    `json:"last_trade_stars,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// UserSettings holds the per-user watch thresholds. Each /watch invocation
// overwrites the whole struct.
//
// MinProfitPct is stored but not consulted by any analysis rule: there is no
// baseline cost to compute a percentage against, so it is retained for a
// future quote-backed rule rather than silently misapplied.
type UserSettings struct {
	MinProfitStars int64   `json:"min_profit_stars"`
	MinProfitPct   float64 `json:"min_profit_pct"`
}

// Suggestion is a single actionable recommendation produced by analysis.
// Suggestions are ephemeral: regenerated on every run, never persisted.
type Suggestion struct {
	Title   string
	Details string
}

// PortfolioSnapshot is the cached result of one full paginated portfolio
// fetch for a user.
type PortfolioSnapshot struct {
	TotalCount int          `json:"total_count"`
	Gifts      []GiftRecord `json:"gifts"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// StateSnapshot is the process-wide persisted state. Map keys are Telegram
// user IDs; encoding/json renders integer-keyed maps as string-keyed JSON
// objects, so the file stays readable by earlier deployments.
//
// Invariant: a user has at most one business connection and one active watch
// timer; re-registering either replaces the previous one wholesale.
type StateSnapshot struct {
	Connections   map[int64]string            `json:"connections"`
	Chats         map[int64]int64             `json:"chats"`
	Settings      map[int64]UserSettings      `json:"settings"`
	LastCatalog   map[string]GiftCatalogEntry `json:"last_catalog"`
	LastPortfolio map[int64]PortfolioSnapshot `json:"last_portfolio"`
}

// NewStateSnapshot returns an empty snapshot with all maps allocated, so
// callers never have to nil-check before writing.
func NewStateSnapshot() *StateSnapshot {
	return &StateSnapshot{
		Connections:   make(map[int64]string),
		Chats:         make(map[int64]int64),
		Settings:      make(map[int64]UserSettings),
		LastCatalog:   make(map[string]GiftCatalogEntry),
		LastPortfolio: make(map[int64]PortfolioSnapshot),
	}
}

// Normalize allocates any map that arrived nil from an older or hand-edited
// state file. It is called once after load.
func (s *StateSnapshot) Normalize() {
	if s.Connections == nil {
		s.Connections = make(map[int64]string)
	}
	if s.Chats == nil {
		s.Chats = make(map[int64]int64)
	}
	if s.Settings == nil {
		s.Settings = make(map[int64]UserSettings)
	}
	if s.LastCatalog == nil {
		s.LastCatalog = make(map[string]GiftCatalogEntry)
	}
	if s.LastPortfolio == nil {
		s.LastPortfolio = make(map[int64]PortfolioSnapshot)
	}
}
