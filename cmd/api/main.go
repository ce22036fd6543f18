package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"site-pulse/internal/api/handler"
	"site-pulse/internal/api/middleware"
	"site-pulse/internal/api/websocket"
	"site-pulse/internal/bot"
	"site-pulse/internal/chart"
	"site-pulse/internal/config"
	"site-pulse/internal/logger"
	"site-pulse/internal/model"
	"site-pulse/internal/monitor"
	"site-pulse/internal/probe"
	"site-pulse/internal/store"
)

const shutdownTimeout = 10 * time.Second

// resolveTarget prefers a target saved through the API over the configured one.
func resolveTarget(cfg *config.Config, settings *store.Settings, log zerolog.Logger) string {
	saved, ok, err := settings.Get(model.SettingKeyTargetURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read saved target, using configured one")
		return cfg.TargetURL
	}
	if ok {
		return saved
	}
	return cfg.TargetURL
}

func setupRouter(cfg *config.Config, m handler.Monitor, hub *websocket.Hub, log zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORSMiddleware())

	r.GET("/", handler.Home())
	r.GET("/monitor", handler.TriggerMonitor(m))

	api := r.Group("/api/v1")
	{
		api.GET("/status", handler.GetStatus(m))
		api.GET("/status/latest", handler.GetLatest(m))

		history := api.Group("/history")
		{
			history.GET("/recent", handler.GetRecentHistory(m))
			history.GET("/daily", handler.GetDailyHistory(m))
			history.GET("/days", handler.ListDays(m))
			history.GET("/days/:day", handler.GetDayHistory(m))
			history.GET("/summary", handler.GetSummary(m))
		}

		api.GET("/chart", handler.GetGlobalChart(m))
		api.GET("/chart/recent", handler.GetRecentChart(m))
		api.GET("/chart/:day", handler.GetDayChart(m))

		api.GET("/config/target", handler.GetTargetConfig(m))
		api.PUT("/config/target", handler.UpdateTargetConfig(m))
	}

	r.GET("/ws/observations", hub.FeedHandler)
	return r
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "site-pulse: %v\n", err)
		os.Exit(1)
	}

	log, closer := logger.Init(cfg)
	defer closer.Close()
	log.Info().Str("config", *configPath).Msg("site-pulse starting")

	loc, _ := cfg.Location()

	db, err := store.Open(cfg.DBPath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	st, err := store.New(db,
		store.WithRetention(cfg.Store.Retention),
		store.WithLocation(loc),
		store.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare store")
	}
	settings := store.NewSettings(db)

	policy := model.StatusPolicy{BlockedCodes: cfg.Policy.BlockedCodes, BlockedLabel: cfg.Policy.BlockedLabel}

	journal := monitor.NewJournal(st, log)
	hub := websocket.NewHub(policy, log)
	journal.Subscribe(hub)

	target := resolveTarget(cfg, settings, log)
	if target == "" {
		log.Warn().Msg("no target URL configured; checks report unconfigured until one is set")
	}
	prober := probe.New(target, journal, probe.Options{
		Timeout:            cfg.Probe.Timeout,
		UserAgent:          cfg.Probe.UserAgent,
		InsecureSkipVerify: cfg.Probe.InsecureSkipVerify,
		Policy:             policy,
	}, log)

	svc := monitor.New(monitor.Deps{
		Checker:  prober,
		Reader:   st,
		Journal:  journal,
		Renderer: chart.NewRenderer(chart.DefaultWidth, chart.DefaultHeight),
		Settings: settings,
		Location: loc,
		Log:      log,
	})

	var botHandler *bot.BotHandler
	if cfg.Telegram.Token != "" {
		botHandler, err = bot.NewBotHandler(bot.Settings{Token: cfg.Telegram.Token, ChatID: cfg.Telegram.ChatID}, svc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Telegram bot")
		}
		if cfg.Telegram.ChatID != 0 {
			svc.UseNotifier(botHandler)
		} else {
			log.Warn().Msg("telegram.chat_id not set; alerts are only logged")
		}
		go botHandler.Start()
	} else {
		log.Info().Msg("Telegram bot token not configured, skipping bot")
	}

	var sched *monitor.Scheduler
	if cfg.Monitor.Schedule != "" {
		sched, err = monitor.NewScheduler(cfg.Monitor.Schedule, loc, svc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           setupRouter(cfg, svc, hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if sched != nil {
			select {
			case <-sched.Stop().Done():
			case <-shutdownCtx.Done():
			}
		}
		if botHandler != nil {
			botHandler.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("target", target).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	<-shutdownDone

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("site-pulse stopped")
}
