// Command bot runs the gift analyst Telegram bot: the getUpdates dispatcher,
// the per-user watch scheduler, and the ops HTTP server (health, status,
// metrics) in one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nvoronin/go-gift-analyst/internal/bot"
	"github.com/nvoronin/go-gift-analyst/internal/config"
	httpapi "github.com/nvoronin/go-gift-analyst/internal/http"
	"github.com/nvoronin/go-gift-analyst/internal/observability"
	"github.com/nvoronin/go-gift-analyst/internal/repo"
	"github.com/nvoronin/go-gift-analyst/internal/services"
	"github.com/nvoronin/go-gift-analyst/internal/state"
	"github.com/nvoronin/go-gift-analyst/internal/sysutil"
	"github.com/nvoronin/go-gift-analyst/internal/telegram"
	"github.com/nvoronin/go-gift-analyst/internal/watch"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sh, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sh)
	}()

	st, err := state.Open(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StatePath).Msg("state load failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("alert db open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("alert db migration failed")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	tg := telegram.New(cfg.Telegram)
	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("token validation failed")
	}
	log.Info().Str("username", me.Username).Int64("bot_id", me.ID).Str("version", version).Msg("bot authorized")

	catalogSvc := services.NewCatalogService(tg, st)
	portfolioSvc := services.NewPortfolioService(tg, st)
	engine := services.NewAnalysisEngine()
	quotes := services.StubQuoteProvider{}
	history := repo.History{DB: db}

	sched := watch.New(cfg.PollInterval, portfolioSvc, catalogSvc, quotes,
		engine, st, tg, history, bot.RenderSuggestions)
	defer sched.Shutdown()

	// Ops server: /health, /status, /metrics.
	router := gin.New()
	httpapi.RegisterRoutes(router, st, sched)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	disp := &bot.Dispatcher{
		API:           tg,
		Catalog:       catalogSvc,
		Portfolio:     portfolioSvc,
		Quotes:        quotes,
		Engine:        engine,
		Watches:       sched,
		Store:         st,
		History:       history,
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
		PollInterval:  cfg.PollInterval,
	}

	log.Info().Dur("poll_interval", cfg.PollInterval).Msg("dispatcher starting")
	if err := disp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("dispatcher stopped")
	}

	sh, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sh); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
