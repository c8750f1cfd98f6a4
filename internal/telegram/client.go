// Package telegram implements a thin Bot API client. This file contains the
// HTTP transport, the outbound token-bucket throttle, and the mapping from
// wire types to domain types.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvoronin/go-gift-analyst/internal/config"
	"github.com/nvoronin/go-gift-analyst/internal/domain"
)

// ErrAPI is returned (wrapped) when the Bot API answers ok=false. Callers
// can match it with errors.Is without caring about the concrete description.
var ErrAPI = errors.New("telegram api error")

// Client is a minimal Bot API client. All outbound calls pass through a
// shared token bucket so the process as a whole stays under the platform's
// request quota regardless of how many watch timers fire at once.
//
// Client is safe for concurrent use.
type Client struct {
	base    string
	token   string
	httpc   *http.Client
	pollc   *http.Client
	limiter *rate.Limiter
}

// New constructs a Client from configuration. Long polls use a separate HTTP
// client without a transport timeout: the getUpdates hold time routinely
// exceeds the normal per-call timeout, so those requests are bounded by a
// context deadline instead.
func New(cfg config.TelegramConfig) *Client {
	return &Client{
		base:    cfg.APIBase,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.RequestTO},
		pollc:   &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}
}

// call POSTs params as JSON to the named Bot API method and decodes the
// result payload into out (when out is non-nil).
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	return c.callVia(ctx, c.httpc, method, params, out)
}

func (c *Client) callVia(ctx context.Context, hc *http.Client, method string, params, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return fmt.Errorf("encode %s params: %w", method, err)
		}
	}

	url := c.base + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !env.OK {
		return fmt.Errorf("%w: %s (%s, code %d)", ErrAPI, env.Description, method, env.ErrorCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe validates the token and returns the bot's own identity.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", nil, &u)
	return u, err
}

// GetUpdates long-polls for new updates after offset, restricted to the
// given update types. timeoutSec is the server-side hold time; the request
// gets a client-side deadline slightly beyond it so a stalled poll cannot
// hang forever.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int, allowed []string) ([]Update, error) {
	params := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
	}
	if len(allowed) > 0 {
		params["allowed_updates"] = allowed
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second+10*time.Second)
	defer cancel()

	var out []Update
	if err := c.callVia(ctx, c.pollc, "getUpdates", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage delivers an HTML-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return c.call(ctx, "sendMessage", params, nil)
}

// GetAvailableGifts fetches the global gift catalog and maps it to domain
// entries. Gifts without a sticker emoji fall back to a generic title.
func (c *Client) GetAvailableGifts(ctx context.Context) ([]domain.GiftCatalogEntry, error) {
	var out availableGifts
	if err := c.call(ctx, "getAvailableGifts", nil, &out); err != nil {
		return nil, err
	}
	entries := make([]domain.GiftCatalogEntry, 0, len(out.Gifts))
	for _, g := range out.Gifts {
		entries = append(entries, domain.GiftCatalogEntry{
			ID:               g.ID,
			Title:            giftTitle(g.Sticker, "Gift"),
			StarCount:        g.StarCount,
			TotalCount:       g.TotalCount,
			RemainingCount:   g.RemainingCount,
			UpgradeStarCount: g.UpgradeStarCount,
		})
	}
	return entries, nil
}

// GetBusinessAccountGifts fetches one page of a connected user's gifts and
// maps each element to the tagged domain record. It returns the page, the
// next page token ("" on the last page), and the account-wide total.
//
// An owned gift whose variant payload fails to decode is kept with whatever
// envelope data survived rather than failing the whole page; portfolio
// reads are best effort by design.
func (c *Client) GetBusinessAccountGifts(ctx context.Context, connectionID, offset string, limit int) ([]domain.GiftRecord, string, int, error) {
	params := map[string]any{
		"business_connection_id": connectionID,
		"limit":                  limit,
	}
	if offset != "" {
		params["offset"] = offset
	}
	var out ownedGifts
	if err := c.call(ctx, "getBusinessAccountGifts", params, &out); err != nil {
		return nil, "", 0, err
	}

	records := make([]domain.GiftRecord, 0, len(out.Gifts))
	for _, og := range out.Gifts {
		if og.Type == "unique" {
			records = append(records, mapUnique(og))
		} else {
			records = append(records, mapRegular(og))
		}
	}
	return records, out.NextOffset, out.TotalCount, nil
}

// mapRegular converts a regular owned gift to its domain record.
func mapRegular(og ownedGift) domain.GiftRecord {
	var g gift
	_ = json.Unmarshal(og.Gift, &g)
	return domain.NewRegularRecord(domain.RegularGift{
		GiftID:                  g.ID,
		Title:                   giftTitle(g.Sticker, "Gift"),
		ConvertStarCount:        og.ConvertStarCount,
		CanBeUpgraded:           og.CanBeUpgraded,
		PrepaidUpgradeStarCount: og.PrepaidUpgradeStarCount,
		Text:                    og.Text,
	})
}

// mapUnique converts a unique owned gift to its domain record. The unix
// next_transfer_date is rendered as RFC 3339 so the domain layer can apply
// its fail-open parse rule uniformly.
func mapUnique(og ownedGift) domain.GiftRecord {
	var ug uniqueGift
	_ = json.Unmarshal(og.Gift, &ug)

	title := ug.BaseName
	if title == "" {
		title = giftTitle(ug.Sticker, "Unique")
	}

	var nextTransfer *string
	if og.NextTransferDate != nil {
		s := time.Unix(*og.NextTransferDate, 0).UTC().Format(time.RFC3339)
		nextTransfer = &s
	}

	return domain.NewUniqueRecord(domain.UniqueGift{
		GiftID:            ug.ID,
		Title:             title,
		Rank:              ug.Rank,
		CanBeTransferred:  og.CanBeTransferred,
		TransferStarCount: og.TransferStarCount,
		NextTransferDate:  nextTransfer,
	})
}

// giftTitle prefers the sticker emoji and falls back to a placeholder.
func giftTitle(s *sticker, fallback string) string {
	if s != nil && s.Emoji != "" {
		return s.Emoji
	}
	return fallback
}
