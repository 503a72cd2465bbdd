// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/survey-i18n/internal/backend"
	"github.com/olegiv/survey-i18n/internal/cache"
	"github.com/olegiv/survey-i18n/internal/config"
	"github.com/olegiv/survey-i18n/internal/handler/api"
	"github.com/olegiv/survey-i18n/internal/logging"
	"github.com/olegiv/survey-i18n/internal/scheduler"
	"github.com/olegiv/survey-i18n/internal/telemetry"
	"github.com/olegiv/survey-i18n/internal/translation"
	"github.com/olegiv/survey-i18n/internal/version"
	"github.com/olegiv/survey-i18n/internal/webhook"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "survey-i18n - translation orchestration service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_BACKEND_URL        Hotel backend base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_BACKEND_TOKEN      Backend bearer token\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_API_TOKEN          API bearer token (required in production, min 24 chars)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_SERVER_PORT        Server port (default: 8081)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_LANGUAGES          Supported languages (default: th,en,zh-CN,ja,ko,ru)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_POLL_POLICY        standard|extended (default: standard)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_REDIS_URL          Redis URL for the content cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_WEBHOOK_URLS       Webhook endpoints for translation events (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SURVEY_I18N_OTEL_ENDPOINT      OTLP/HTTP trace endpoint (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("survey-i18n %s\n", version.Get())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Warnings and errors are also kept in memory for GET /api/v1/log.
	eventLog := logging.NewEventLog(cfg.EventLogSize)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logging.NewEventLogHandler(textHandler, eventLog))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    "survey-i18n",
		ServiceVersion: version.Get().Version,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Error("error flushing traces", "error", err)
		}
	}()

	store, err := cache.New(ctx, cfg.CacheConfig(), logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	client, err := backend.New(cfg.BackendConfig(), backend.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing backend client: %w", err)
	}
	content := backend.NewCachedContentClient(client, store, cfg.CacheTTL, logger)

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("building language registry: %w", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return fmt.Errorf("building polling policy: %w", err)
	}

	manager, err := translation.NewManager(client, content, translation.Options{
		Registry:     registry,
		Policy:       policy,
		Provider:     cfg.Provider,
		RefreshedTTL: cfg.RefreshedTTL,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("initializing translation manager: %w", err)
	}
	slog.Info("translation manager initialized",
		"languages", registry.Codes(),
		"poll_interval", policy.Interval,
		"poll_max_duration", policy.MaxDuration)

	var webhookStats api.WebhookStats
	if cfg.WebhooksEnabled() {
		whCfg := webhook.DefaultConfig()
		whCfg.BlockPrivateNetworks = !cfg.WebhookAllowPrivate
		dispatcher := webhook.NewDispatcher(cfg.WebhookEndpoints(), logger, whCfg)
		dispatcher.Start(ctx)
		debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig(), nil)
		unsubscribe := manager.Subscribe(debouncer.Notify)
		defer func() {
			unsubscribe()
			debouncer.Stop()
			dispatcher.Stop()
		}()
		webhookStats = dispatcher
	}

	sched := scheduler.New(logger)
	if cfg.ReconcileSchedule != "" {
		if err := sched.RegisterReconcile(manager, cfg.ReconcileSchedule); err != nil {
			return fmt.Errorf("registering reconcile job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	h := api.NewHandler(api.Deps{
		Manager:   manager,
		Registry:  registry,
		EventLog:  eventLog,
		Webhooks:  webhookStats,
		Scheduler: sched,
		Logger:    logger,
	})
	router := api.NewRouter(h, api.RouterConfig{
		APIToken:       cfg.APIToken,
		IsDevelopment:  cfg.IsDevelopment(),
		RequestTimeout: 30 * time.Second,
		RateLimit:      20,
		RateBurst:      40,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Event streams stay open, so there is no write timeout; the
		// router's timeout middleware bounds ordinary requests.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	srv.RegisterOnShutdown(h.CloseStreams)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := manager.Close(sctx); err != nil {
		slog.Error("error stopping translation pollers", "error", err)
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
