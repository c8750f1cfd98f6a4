// Package bot – update dispatcher.
//
// The dispatcher runs the getUpdates long-poll loop and routes each update to
// a command handler. Handler failures are logged and contained; a bad update
// must never stop the loop, and the degraded answer to the user is silence
// rather than a crash.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/services"
	"github.com/nvoronin/go-gift-analyst/internal/state"
	"github.com/nvoronin/go-gift-analyst/internal/telegram"
	"github.com/nvoronin/go-gift-analyst/internal/utils"
	"github.com/nvoronin/go-gift-analyst/internal/watch"
)

var commandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Total number of handled bot commands.",
	},
	[]string{"command"},
)

func init() {
	prometheus.MustRegister(commandsTotal)
}

// historyPageSize is how many alerts one /history page shows.
const historyPageSize = 5

// API is the slice of the Telegram client the dispatcher needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int, allowed []string) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// AlertHistory reads back delivered alerts, one 1-based page at a time.
// May be nil when history is disabled.
type AlertHistory interface {
	List(ctx context.Context, userID int64, page, perPage int) ([]domain.Alert, error)
}

// Dispatcher routes inbound updates to handlers. All fields must be set
// except History, which may be nil.
type Dispatcher struct {
	API       API
	Catalog   *services.CatalogService
	Portfolio *services.PortfolioService
	Quotes    services.QuoteProvider
	Engine    *services.AnalysisEngine
	Watches   *watch.Scheduler
	Store     *state.Store
	History   AlertHistory

	// UpdateTimeout is the getUpdates server-side hold time in seconds.
	UpdateTimeout int
	// PollInterval is quoted in the /watch confirmation text.
	PollInterval time.Duration
}

const helpText = `Hi! I analyze Telegram gifts and suggest what to do with them.

Commands:
/catalog — available gifts and their Stars prices
/connect_info — how to connect me to a Business account
/portfolio — your gifts (Business connection required)
/analyze — convert, upgrade and sell recommendations
/watch &lt;minStars&gt; &lt;min%&gt; — periodic alerts, e.g. /watch 100 5
/unwatch — stop periodic alerts
/history [page] — recently delivered alerts
/help — this message`

const connectInfoText = `To let me see your gifts, connect me as a business bot:

1. Open Telegram Settings → Business → Chatbots.
2. Pick this bot and grant it access to Gifts and Stars.
3. I will confirm once the connection arrives.

Then send /portfolio.`

// Run drives the long-poll loop until ctx is cancelled. Poll errors back off
// briefly and the loop continues; only context cancellation ends it.
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := d.API.GetUpdates(ctx, offset, d.UpdateTimeout,
			[]string{"message", "business_connection"})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("getUpdates failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			d.handle(ctx, u)
		}
	}
}

// handle routes one update. Panics are contained per update.
func (d *Dispatcher) handle(ctx context.Context, u telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int64("update_id", u.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case u.BusinessConnection != nil:
		d.handleBusinessConnection(ctx, *u.BusinessConnection)
	case u.Message != nil && u.Message.From != nil && strings.HasPrefix(u.Message.Text, "/"):
		d.handleCommand(ctx, *u.Message)
	}
}

// handleBusinessConnection records (or replaces) the user's connection and
// chat binding, then confirms in the user's private chat.
func (d *Dispatcher) handleBusinessConnection(ctx context.Context, bc telegram.BusinessConnection) {
	userID := bc.User.ID

	if !bc.IsEnabled {
		log.Info().Int64("user_id", userID).Str("connection_id", bc.ID).Msg("business connection disabled")
		return
	}
	if err := d.Store.SetConnection(userID, bc.ID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("persist business connection failed")
		return
	}
	if err := d.Store.SetChat(userID, bc.UserChatID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("persist chat binding failed")
		return
	}
	log.Info().Int64("user_id", userID).Str("connection_id", bc.ID).Msg("business connection saved")
	d.reply(ctx, bc.UserChatID, "Business connection saved ✅. /portfolio and /analyze are now available.")
}

// handleCommand parses and executes one slash command.
func (d *Dispatcher) handleCommand(ctx context.Context, msg telegram.Message) {
	fields := strings.Fields(msg.Text)
	cmd := fields[0]
	// Strip the "@botname" suffix used in group chats.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	tracer := otel.Tracer("github.com/nvoronin/go-gift-analyst/internal/bot")
	ctx, span := tracer.Start(ctx, "bot.command")
	span.SetAttributes(
		attribute.String("bot.command", cmd),
		attribute.Int64("user.id", msg.From.ID),
	)
	defer span.End()

	commandsTotal.WithLabelValues(strings.TrimPrefix(cmd, "/")).Inc()
	log.Info().Str("command", cmd).Int64("user_id", msg.From.ID).Msg("command received")

	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch cmd {
	case "/start", "/help":
		// Both bind the chat so later pushes have a destination.
		if err := d.Store.SetChat(userID, chatID); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("persist chat binding failed")
		}
		d.reply(ctx, chatID, helpText)

	case "/connect_info":
		d.reply(ctx, chatID, connectInfoText)

	case "/catalog":
		entries, err := d.Catalog.Refresh(ctx)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("catalog refresh failed")
			d.reply(ctx, chatID, "Could not fetch the gift catalog right now. Try again later.")
			return
		}
		d.reply(ctx, chatID, RenderCatalog(entries))

	case "/portfolio":
		if _, ok := d.Store.Connection(userID); !ok {
			d.reply(ctx, chatID, "No Business connection yet. See /connect_info.")
			return
		}
		snap, err := d.Portfolio.Refresh(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("portfolio refresh failed")
			d.reply(ctx, chatID, "Could not fetch your portfolio right now. Try again later.")
			return
		}
		d.reply(ctx, chatID, RenderPortfolioSummary(snap))

	case "/analyze":
		d.handleAnalyze(ctx, userID, chatID)

	case "/watch":
		minStars, minPct := parseWatchArgs(fields[1:])
		if err := d.Watches.StartWatch(userID, minStars, minPct); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("watch registration failed")
			d.reply(ctx, chatID, "Could not enable alerts right now. Try again later.")
			return
		}
		// The timer pushes to the last-known chat; refresh the binding.
		if err := d.Store.SetChat(userID, chatID); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("persist chat binding failed")
		}
		d.reply(ctx, chatID, fmt.Sprintf(
			"Alerts enabled: min profit %d ⭐, min %.1f%%. Checking every %d min. /unwatch to stop.",
			minStars, minPct, int(d.PollInterval.Minutes())))

	case "/unwatch":
		if d.Watches.StopWatch(userID) {
			d.reply(ctx, chatID, "Alerts disabled.")
		} else {
			d.reply(ctx, chatID, "You had no active alerts.")
		}

	case "/history":
		if d.History == nil {
			d.reply(ctx, chatID, "Alert history is not enabled.")
			return
		}
		page := 1
		if len(fields) > 1 {
			page = utils.AtoiDefault(fields[1], 1)
			if page < 1 {
				page = 1
			}
		}
		alerts, err := d.History.List(ctx, userID, page, historyPageSize)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("history read failed")
			d.reply(ctx, chatID, "Could not read your alert history right now.")
			return
		}
		if len(alerts) == 0 && page > 1 {
			d.reply(ctx, chatID, "No alerts on that page.")
			return
		}
		d.reply(ctx, chatID, RenderHistory(alerts))

	default:
		d.reply(ctx, chatID, "Unknown command. /help lists what I can do.")
	}
}

// handleAnalyze runs one on-demand analysis round. It tolerates stale caches:
// catalog and portfolio are only fetched when their cache is empty.
func (d *Dispatcher) handleAnalyze(ctx context.Context, userID, chatID int64) {
	catalog, err := d.Catalog.CachedOrRefresh(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("catalog fetch failed")
		d.reply(ctx, chatID, "Could not fetch the gift catalog right now. Try again later.")
		return
	}
	snap, err := d.Portfolio.CachedOrRefresh(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("portfolio fetch failed")
		d.reply(ctx, chatID, "Could not fetch your portfolio right now. Try again later.")
		return
	}

	var uniqueIDs []string
	for _, rec := range snap.Gifts {
		if rec.Class == domain.GiftClassUnique {
			if id := rec.GiftID(); id != "" {
				uniqueIDs = append(uniqueIDs, id)
			}
		}
	}
	quotes, err := d.Quotes.GetQuotes(ctx, uniqueIDs)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("quote fetch failed, continuing without quotes")
		quotes = nil
	}

	suggestions := d.Engine.Analyze(catalog, snap.Gifts, quotes, d.Store.Settings(userID))
	d.reply(ctx, chatID, RenderSuggestions(suggestions))
}

// reply sends best effort: a failed send is logged, never propagated.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.API.SendMessage(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply delivery failed")
	}
}

// parseWatchArgs parses "/watch <minStars> <minPct>". Missing or malformed
// arguments fall back to zero, matching the most permissive thresholds, and
// negatives are clamped to zero.
func parseWatchArgs(args []string) (int64, float64) {
	var minStars int64
	var minPct float64
	if len(args) > 0 {
		if v, err := strconv.ParseInt(args[0], 10, 64); err == nil && v > 0 {
			minStars = v
		}
	}
	if len(args) > 1 {
		if v, err := strconv.ParseFloat(args[1], 64); err == nil && v > 0 {
			minPct = v
		}
	}
	return minStars, minPct
}
