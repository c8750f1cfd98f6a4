// Package watch implements the per-user alert scheduler: a registry of
// repeating timers that periodically re-analyze a user's portfolio and push
// the resulting suggestions to their last-known chat.
//
// Timer lifecycle per user: Unregistered → Active → Cancelled → Active …
// Re-registering replaces the previous timer atomically (cancel-then-arm
// under one lock), so a user can never receive duplicate alert streams. A
// per-entry busy flag enforces at most one in-flight tick per user; a tick
// that is still running when the next fires is skipped, and the following
// firing is the natural retry.
//
// Failure policy: everything that goes wrong inside a tick (fetch, analyze,
// render, send, history write) is logged and contained. A tick must never
// take down the timer goroutine, since that would silently end all future
// alerts for the user.
package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/services"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

var (
	// ticksTotal counts tick outcomes per result: ok, error, skipped, silent.
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_ticks_total",
			Help: "Total number of watch ticks by outcome.",
		},
		[]string{"result"},
	)

	// alertsSent counts successfully delivered alert messages.
	alertsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_alerts_sent_total",
			Help: "Total number of alert messages delivered.",
		},
	)

	// activeWatches gauges the number of currently armed timers.
	activeWatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_active_timers",
			Help: "Current number of active per-user watch timers.",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, alertsSent, activeWatches)
}

// PortfolioSource refreshes a user's portfolio before analysis.
type PortfolioSource interface {
	Refresh(ctx context.Context, userID int64) (domain.PortfolioSnapshot, error)
}

// CatalogSource supplies the (possibly stale) catalog for analysis.
type CatalogSource interface {
	CachedOrRefresh(ctx context.Context) (map[string]domain.GiftCatalogEntry, error)
}

// Sender pushes a rendered alert to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Recorder archives a delivered alert. May be nil when history is disabled.
type Recorder interface {
	Record(ctx context.Context, userID int64, suggestions int, text string) error
}

// RenderFunc turns an analysis result into the outbound message body.
type RenderFunc func([]domain.Suggestion) string

// Scheduler owns the userID → timer registry. All dependencies are
// injected; the zero value is not usable, construct with New.
type Scheduler struct {
	Portfolio PortfolioSource
	Catalog   CatalogSource
	Quotes    services.QuoteProvider
	Engine    *services.AnalysisEngine
	Store     *state.Store
	Sender    Sender
	History   Recorder
	Render    RenderFunc

	interval time.Duration

	mu      sync.Mutex
	entries map[int64]*entry
}

// entry is one armed timer. busy enforces at-most-one in-flight tick.
type entry struct {
	cancel context.CancelFunc
	busy   atomic.Bool
}

// New constructs a Scheduler firing each user's timer at the given fixed
// interval.
func New(interval time.Duration, p PortfolioSource, c CatalogSource, q services.QuoteProvider,
	e *services.AnalysisEngine, st *state.Store, snd Sender, hist Recorder, render RenderFunc) *Scheduler {
	return &Scheduler{
		Portfolio: p,
		Catalog:   c,
		Quotes:    q,
		Engine:    e,
		Store:     st,
		Sender:    snd,
		History:   hist,
		Render:    render,
		interval:  interval,
		entries:   make(map[int64]*entry),
	}
}

// StartWatch persists the user's thresholds and (re)arms their timer.
// Any previous timer for the same user is cancelled before the new one is
// armed, under the registry lock, so exactly one timer exists per user at
// any instant. Registration returns immediately; the first tick fires one
// full interval later.
func (s *Scheduler) StartWatch(userID int64, minProfitStars int64, minProfitPct float64) error {
	if err := s.Store.SetSettings(userID, domain.UserSettings{
		MinProfitStars: minProfitStars,
		MinProfitPct:   minProfitPct,
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{cancel: cancel}

	s.mu.Lock()
	if old, ok := s.entries[userID]; ok {
		old.cancel()
	} else {
		activeWatches.Inc()
	}
	s.entries[userID] = e
	s.mu.Unlock()

	go s.run(ctx, userID, e)

	log.Info().Int64("user_id", userID).
		Int64("min_profit_stars", minProfitStars).
		Float64("min_profit_pct", minProfitPct).
		Dur("interval", s.interval).
		Msg("watch armed")
	return nil
}

// StopWatch cancels the user's timer, if one is armed, and reports whether
// there was one.
func (s *Scheduler) StopWatch(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return false
	}
	e.cancel()
	delete(s.entries, userID)
	activeWatches.Dec()
	log.Info().Int64("user_id", userID).Msg("watch cancelled")
	return true
}

// Active reports whether the user currently has an armed timer.
func (s *Scheduler) Active(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// ActiveCount returns the number of currently armed timers.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Shutdown cancels every armed timer.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.cancel()
		delete(s.entries, id)
		activeWatches.Dec()
	}
}

// run drives one user's timer until its context is cancelled. Each user's
// timer runs on its own goroutine, so one user's slow fetch never delays
// another user's tick.
func (s *Scheduler) run(ctx context.Context, userID int64, e *entry) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, userID, e)
		}
	}
}

// tick runs one analysis round for the user and pushes the result.
func (s *Scheduler) tick(ctx context.Context, userID int64, e *entry) {
	if !e.busy.CompareAndSwap(false, true) {
		ticksTotal.WithLabelValues("skipped").Inc()
		log.Warn().Int64("user_id", userID).Msg("previous tick still running, skipping")
		return
	}
	defer e.busy.Store(false)

	defer func() {
		if rec := recover(); rec != nil {
			ticksTotal.WithLabelValues("error").Inc()
			log.Error().Interface("panic", rec).Int64("user_id", userID).Msg("tick panicked")
		}
	}()

	tracer := otel.Tracer("github.com/nvoronin/go-gift-analyst/internal/watch")
	ctx, span := tracer.Start(ctx, "watch.tick")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	snap, err := s.Portfolio.Refresh(ctx, userID)
	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int64("user_id", userID).Msg("portfolio refresh failed, will retry next tick")
		return
	}

	catalog, err := s.Catalog.CachedOrRefresh(ctx)
	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int64("user_id", userID).Msg("catalog fetch failed, will retry next tick")
		return
	}

	// Quotes are best effort: a failed quote fetch degrades the output, it
	// does not abort the tick.
	var uniqueIDs []string
	for _, rec := range snap.Gifts {
		if rec.Class == domain.GiftClassUnique {
			if id := rec.GiftID(); id != "" {
				uniqueIDs = append(uniqueIDs, id)
			}
		}
	}
	quotes, err := s.Quotes.GetQuotes(ctx, uniqueIDs)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("quote fetch failed, continuing without quotes")
		quotes = nil
	}

	suggestions := s.Engine.Analyze(catalog, snap.Gifts, quotes, s.Store.Settings(userID))
	if len(suggestions) == 0 {
		ticksTotal.WithLabelValues("ok").Inc()
		return
	}

	chatID, ok := s.Store.Chat(userID)
	if !ok {
		// No chat binding recorded: degraded but acceptable, deliver nothing.
		ticksTotal.WithLabelValues("silent").Inc()
		log.Debug().Int64("user_id", userID).Msg("no chat binding, tick delivered nothing")
		return
	}

	text := "Portfolio update:\n\n" + s.Render(suggestions)
	if err := s.Sender.SendMessage(ctx, chatID, text); err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int64("user_id", userID).Msg("alert delivery failed")
		return
	}
	alertsSent.Inc()
	ticksTotal.WithLabelValues("ok").Inc()

	if s.History != nil {
		if err := s.History.Record(ctx, userID, len(suggestions), text); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("alert history write failed")
		}
	}
}
