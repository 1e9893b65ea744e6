package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-consistency/internal/cachesync"
	"github.com/ariefcatur/go-shop-consistency/internal/config"
	kafkax "github.com/ariefcatur/go-shop-consistency/internal/kafka"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if _, err := logging.Init(cfg.Log); err != nil {
		slog.Error("logging init", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &cachesync.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-cachesync",
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.CacheSyncGroup, cachesync.Topics, cfg.CacheSyncWorkers)
	slog.Info("cachesync consumer started",
		"group", cfg.CacheSyncGroup, "topics", cachesync.Topics, "workers", cfg.CacheSyncWorkers)
	if err := cons.Start(ctx, svc.Handle); err != nil {
		slog.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	slog.Info("cachesync stopped")
}
