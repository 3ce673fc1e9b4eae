package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/seifgad/acadgate/internal/server"
	"github.com/seifgad/acadgate/internal/storage"
	"github.com/seifgad/acadgate/pkg/config"
	"github.com/seifgad/acadgate/pkg/logging"
)

func main() {
	// .env is optional; real deployments use environment variables directly
	_ = godotenv.Load()

	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	var notifStore storage.NotificationStore
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		store, err := storage.OpenGorm(dsn)
		if err != nil {
			logger.Error("Failed to open notification storage", slog.Any("error", err))
			os.Exit(1)
		}
		notifStore = store
	} else {
		logger.Warn("No postgres DSN configured; notification records are held in memory only")
		notifStore = storage.NewMemoryStore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg, notifStore)
	if err := app.Run(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
