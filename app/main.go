package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crewtools/rosterwatch/app/api"
	"github.com/crewtools/rosterwatch/app/config"
	"github.com/crewtools/rosterwatch/app/database"
	"github.com/crewtools/rosterwatch/app/fetcher"
	"github.com/crewtools/rosterwatch/app/notifier"
	"github.com/crewtools/rosterwatch/app/tasks"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RosterWatch", "version", cfg.Version)

	db, err := database.NewConnection(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schemaVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", cfg.DBPath, "schema_version", schemaVersion, "dirty", dirty)

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		slog.Error("Failed to load settings", "path", cfg.SettingsPath, "error", err)
		os.Exit(1)
	}
	settingsStore := config.NewStore(cfg.SettingsPath, settings)

	stateRepo := database.NewStateRepository(db)
	if err := stateRepo.SavePolicy(settings.Policy()); err != nil {
		slog.Warn("Failed to persist alert policy", "error", err)
	}

	var alerts notifier.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		telegram, err := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, stateRepo)
		if err != nil {
			slog.Error("Failed to initialize Telegram notifier", "error", err)
			os.Exit(1)
		}
		alerts = telegram
		slog.Info("Telegram notifications enabled", "chat_id", cfg.TelegramChatID)
	} else {
		alerts = notifier.NewLog()
		slog.Info("No Telegram credentials, notifications go to the log")
	}

	pipeline := tasks.NewPipeline(fetcher.NewClient(cfg.UserAgent), stateRepo, alerts, settingsStore)

	pollInterval := time.Duration(settings.Policy().PollIntervalMinutes) * time.Minute
	scheduler := tasks.NewScheduler(pipeline, pollInterval)

	settingsStore.OnApply(func(s config.Settings) {
		scheduler.SetInterval(time.Duration(s.Policy().PollIntervalMinutes) * time.Minute)
		if err := stateRepo.SavePolicy(s.Policy()); err != nil {
			slog.Warn("Failed to persist alert policy", "error", err)
		}
	})

	scheduler.Start()
	defer scheduler.Stop()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := settingsStore.Watch(watchCtx); err != nil {
			slog.Warn("Settings watcher stopped", "error", err)
		}
	}()

	apiHandler := api.NewHandler(pipeline, settingsStore, cfg.Version)
	server := api.NewServer(apiHandler, cfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
