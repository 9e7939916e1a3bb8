// Package main runs the compensation engine API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/podcastofficial/Usdt-miner/internal/app"
	"github.com/podcastofficial/Usdt-miner/internal/app/httpapi"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage/postgres"
	redisstore "github.com/podcastofficial/Usdt-miner/internal/app/storage/redis"
	"github.com/podcastofficial/Usdt-miner/internal/config"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

func main() {
	configPath := flag.String("config", filepath.Join("config", "server.yaml"), "Path to server config file")
	flag.Parse()

	// Optional; config falls back to defaults and real environment.
	_ = godotenv.Load()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		logger.NewDefault("server").Fatalf("failed to load config: %v", err)
	}

	log := logger.New(cfg.Logging).WithField("component", "server")

	stores, cleanup, err := openStores(cfg.Storage, log)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer cleanup()

	application, err := app.New(stores, app.Options{
		BotUsername:      cfg.Telegram.BotUsername,
		AccrualSpec:      cfg.Accrual.Spec,
		DisableScheduler: cfg.Accrual.Disabled,
	}, logger.New(cfg.Logging))
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		Auth: httpapi.AuthConfig{
			AdminSecretHash: cfg.Auth.AdminSecretHash,
			JWTKey:          []byte(cfg.Auth.JWTKey),
			CronSecret:      cfg.Auth.CronSecret,
			TokenTTL:        cfg.Auth.TokenTTL.Std(),
		},
		StorageName: cfg.Storage.Backend,
		RateRPS:     cfg.Server.RateRPS,
		RateBurst:   cfg.Server.RateBurst,
	}, logger.New(cfg.Logging))

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.ListenAddr).Info("API server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application stop error")
	}

	log.Info("stopped")
}

func openStores(cfg config.StorageConfig, log *logger.Logger) (app.Stores, func(), error) {
	switch cfg.Backend {
	case "postgres":
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return app.Stores{}, nil, err
		}
		log.Info("using postgres storage")
		return app.Stores{Members: store, Transactions: store}, func() { store.Close() }, nil
	case "redis":
		store, err := redisstore.Open(context.Background(), cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return app.Stores{}, nil, err
		}
		log.Info("using redis storage")
		return app.Stores{Members: store, Transactions: store}, func() { store.Close() }, nil
	default:
		log.Info("using in-memory storage")
		return app.Stores{}, func() {}, nil
	}
}
