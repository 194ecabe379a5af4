package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/pairplay/internal/api"
	"github.com/mcoot/pairplay/internal/config"
	"github.com/mcoot/pairplay/internal/factory"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
	"github.com/mcoot/pairplay/internal/services/user"
	redisstorage "github.com/mcoot/pairplay/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:            logger,
		StorageType:       cfg.Storage,
		SQLitePath:        cfg.SQLitePath,
		KeyExchangeConfig: keyexchange.Config{PrimeBits: cfg.PrimeBits},
		UserConfig:        user.Config{BcryptCost: cfg.BcryptCost},
	}
	if cfg.Storage == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.KeyPrefix = cfg.RedisPrefix
		factoryCfg.RedisConfig = &redisCfg
	}

	if err := run(logger, cfg, factoryCfg); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger, cfg config.Config, factoryCfg factory.Config) error {
	app, err := factory.New(factoryCfg)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Authority:   app.Authority,
		KeyExchange: app.KeyExchange,
		Users:       app.Users,
		Games:       app.Games,
		Matchmaker:  app.Matchmaker,
		Moves:       app.Moves,
		Hub:         app.Hub,
	})

	server := api.NewServer(router, api.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	// Notification streams never finish on their own
	server.OnShutdown(app.Hub.Close)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	}
}
