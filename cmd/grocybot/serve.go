package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/bot"
	"github.com/tbourn/go-grocy-bot/internal/config"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	httpapi "github.com/tbourn/go-grocy-bot/internal/http"
	"github.com/tbourn/go-grocy-bot/internal/monitor"
	"github.com/tbourn/go-grocy-bot/internal/notifier"
	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/repo"
	"github.com/tbourn/go-grocy-bot/internal/services"
	"github.com/tbourn/go-grocy-bot/internal/worker"
)

const (
	purgeInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

// serve runs until ctx is cancelled or the Telegram loop fails.
func serve(ctx context.Context, cfg config.Config) error {
	lg := log.With().Str("component", "main").Logger()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	journal := services.NewJournalService(db, repo.Store{}, cfg.Monitor.DedupWindow)

	client := grocy.NewClient(cfg.Grocy.BaseURL(), cfg.Grocy.APIKey,
		grocy.WithHTTPClient(&http.Client{Timeout: cfg.Grocy.Timeout}),
		grocy.WithRateLimit(cfg.Grocy.RateRPS, cfg.Grocy.RateBurst),
	)
	cached := grocy.NewCached(client, cfg.Grocy.CacheDuration, cfg.Grocy.CacheMaxEntries)

	tgAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	lg.Info().Str("bot", tgAPI.Self.UserName).Str("grocy", cfg.Grocy.BaseURL()).Msg("connected to telegram")
	tg := bot.NewTelegram(tgAPI, cfg.Telegram.RateRPS, cfg.Telegram.RateBurst)
	formatter := services.NewFormatter(cfg.Grocy.Locale, time.Now)

	deps := httpapi.Deps{Cache: cached, Journal: journal}

	if cfg.Monitor.Enabled() {
		n, err := notifier.New(tg, cfg.Monitor.ChatIDs, notifier.WithJournal(journal))
		if err != nil {
			return err
		}
		mon := monitor.New(monitor.Config{
			Interval:    cfg.Monitor.Interval,
			DueSoonDays: cfg.Grocy.DueSoonDays,
			RunTimeout:  cfg.Monitor.RunTimeout,
			Formatter:   formatter,
		}, cached, n)
		mon.Start()
		defer mon.Stop()
		deps.Monitor = mon
		lg.Info().Dur("interval", cfg.Monitor.Interval).Int("chats", len(cfg.Monitor.ChatIDs)).Msg("monitor started")
	} else {
		lg.Warn().Msg("NOTIFICATION_CHAT_IDS is empty, change notifications are disabled")
	}

	purge := worker.New("journal_purge", purgeInterval, func(ctx context.Context) error {
		dispatches, deliveries, err := journal.Purge(ctx, cfg.Monitor.Retention)
		if err != nil {
			return err
		}
		if dispatches+deliveries > 0 {
			log.Info().Str("component", "journal").
				Int64("dispatches", dispatches).Int64("deliveries", deliveries).
				Msg("journal purged")
		}
		return nil
	}, worker.WithTimeout(time.Minute))
	purge.Start()
	defer purge.Stop()

	if cfg.StatsEnabled {
		srv := newHTTPServer(cfg, deps)
		go func() {
			lg.Info().Str("addr", srv.Addr).Msg("admin api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error().Err(err).Msg("admin api stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				lg.Warn().Err(err).Msg("admin api shutdown")
			}
		}()
	}

	b := bot.New(tgAPI, tg, cached, bot.Config{
		Admins:      cfg.Telegram.AdminUsernames,
		PollTimeout: cfg.Telegram.PollTimeout,
		Formatter:   formatter,
		Version:     version,
		Settings:    cfg.Summary(),
	})
	err = b.Run(ctx)
	lg.Info().Msg("shutting down")
	return err
}

func newHTTPServer(cfg config.Config, deps httpapi.Deps) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, deps)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
