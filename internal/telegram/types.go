// Package telegram implements a thin Bot API client exposing only the
// operations this bot needs: update long-polling, message sending, the gift
// catalog, and business-account gift listing.
//
// This file defines the wire-level types. Where the Bot API models owned
// gifts as a type-tagged union, decoding keeps the shared envelope and
// defers the variant payload to the mapping layer in client.go.
package telegram

import "encoding/json"

// apiResponse is the uniform Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is the chat a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an inbound chat message. Only the fields the dispatcher reads
// are decoded.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// BusinessConnection describes the link between the bot and a user's
// business account. UserChatID is the private chat the bot may message.
type BusinessConnection struct {
	ID         string `json:"id"`
	User       User   `json:"user"`
	UserChatID int64  `json:"user_chat_id"`
	IsEnabled  bool   `json:"is_enabled"`
}

// Update is one entry of the getUpdates result. The bot only subscribes to
// message and business_connection updates.
type Update struct {
	UpdateID           int64               `json:"update_id"`
	Message            *Message            `json:"message,omitempty"`
	BusinessConnection *BusinessConnection `json:"business_connection,omitempty"`
}

// sticker carries the emoji used as a display title for catalog gifts.
type sticker struct {
	Emoji string `json:"emoji,omitempty"`
}

// gift is a catalog gift as returned by getAvailableGifts.
type gift struct {
	ID               string   `json:"id"`
	Sticker          *sticker `json:"sticker,omitempty"`
	StarCount        *int64   `json:"star_count,omitempty"`
	TotalCount       *int64   `json:"total_count,omitempty"`
	RemainingCount   *int64   `json:"remaining_count,omitempty"`
	UpgradeStarCount *int64   `json:"upgrade_star_count,omitempty"`
}

// availableGifts is the getAvailableGifts result payload.
type availableGifts struct {
	Gifts []gift `json:"gifts"`
}

// uniqueGift is the payload of an owned unique gift.
type uniqueGift struct {
	BaseName string   `json:"base_name,omitempty"`
	Name     string   `json:"name,omitempty"`
	ID       string   `json:"id,omitempty"`
	Sticker  *sticker `json:"sticker,omitempty"`
	Rank     *int64   `json:"rank,omitempty"`
}

// ownedGift is one element of getBusinessAccountGifts. Type is "regular" or
// "unique"; Gift holds a different object per variant, so it is decoded
// lazily during mapping.
type ownedGift struct {
	Type                    string          `json:"type"`
	Gift                    json.RawMessage `json:"gift"`
	ConvertStarCount        *int64          `json:"convert_star_count,omitempty"`
	CanBeUpgraded           bool            `json:"can_be_upgraded,omitempty"`
	PrepaidUpgradeStarCount *int64          `json:"prepaid_upgrade_star_count,omitempty"`
	Text                    *string         `json:"text,omitempty"`
	CanBeTransferred        bool            `json:"can_be_transferred,omitempty"`
	TransferStarCount       *int64          `json:"transfer_star_count,omitempty"`
	NextTransferDate        *int64          `json:"next_transfer_date,omitempty"` // unix seconds
}

// ownedGifts is the getBusinessAccountGifts result payload.
type ownedGifts struct {
	TotalCount int         `json:"total_count"`
	Gifts      []ownedGift `json:"gifts"`
	NextOffset string      `json:"next_offset,omitempty"`
}
