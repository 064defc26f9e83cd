package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lysyi3m/gh-digest/app/api"
	"github.com/lysyi3m/gh-digest/app/cfg"
	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/detector"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/github"
	"github.com/lysyi3m/gh-digest/app/metrics"
	"github.com/lysyi3m/gh-digest/app/tasks"
	"github.com/lysyi3m/gh-digest/app/translation"
)

func main() {
	appConfig, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appConfig == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting gh-digest", "version", appConfig.Version)

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appConfig.TargetsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load target configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Target configurations loaded", "count", configCache.GetConfigCount(), "dir", appConfig.TargetsDir)

	targetRepo := database.NewTargetRepository(db)
	activityRepo := database.NewActivityRepository(db)
	clk := clock.WallClock

	gateway, err := github.NewClient(github.ClientConfig{
		BaseURL:           appConfig.GitHubAPIURL,
		Token:             appConfig.GitHubToken,
		UserAgent:         appConfig.UserAgent,
		RequestsPerSecond: appConfig.GitHubRateLimit,
		MaxPages:          appConfig.GitHubMaxPages,
	}, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		slog.Error("Failed to configure GitHub client", "error", err)
		os.Exit(1)
	}

	policy := feed.NewTargetPolicy(configCache, feed.NewFilterer())
	updateDetector := detector.NewDetector(targetRepo, activityRepo, gateway, clk,
		appConfig.Lookback(), appConfig.GitHubPageSize, detector.WithPolicy(policy))

	var (
		processor    tasks.TranslationProcessor
		translations api.TranslationService
		feedLanguage string
	)
	if appConfig.TranslationEnabled() {
		translator, err := translation.NewChatTranslator(translation.ChatConfig{
			URL:            appConfig.TranslatorURL,
			APIKey:         appConfig.TranslatorAPIKey,
			Model:          appConfig.TranslatorModel,
			TargetLanguage: appConfig.TargetLanguage,
			UserAgent:      appConfig.UserAgent,
		}, &http.Client{Timeout: time.Duration(appConfig.TranslatorTimeout) * time.Second})
		if err != nil {
			slog.Error("Failed to configure translator", "error", err)
			os.Exit(1)
		}

		orchestrator := translation.NewOrchestrator(activityRepo, translator, clk)
		processor = orchestrator
		translations = orchestrator
		feedLanguage = appConfig.TargetLanguage
		slog.Info("Translation enabled", "language", appConfig.TargetLanguage, "model", appConfig.TranslatorModel)
	} else {
		slog.Info("Translation disabled (TRANSLATOR_URL not set)")
	}

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scheduler := tasks.NewScheduler(tasks.SchedulerConfig{
		Interval:    time.Duration(appConfig.SchedulerInterval) * time.Second,
		WorkerCount: appConfig.WorkerCount,
	}, configCache, targetRepo, activityRepo, updateDetector, processor, collector, clk)

	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "interval", appConfig.SchedulerInterval)
	scheduler.Start()

	handler := api.NewHandler(api.HandlerConfig{
		BaseURL:      appConfig.BaseUrl,
		Version:      appConfig.Version,
		FeedLanguage: feedLanguage,
	}, configCache, targetRepo, activityRepo, updateDetector, translations, scheduler)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      api.NewServer(handler, appConfig.APIAccessKey, registry),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")
}
