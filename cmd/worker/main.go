// worker 投递 outbox 事件（order.placed、order.refunded 等）到日志、Kafka 或 RabbitMQ。
//
//	worker -config config.yaml         # 常驻轮询
//	worker -config config.yaml -once   # 只处理一批，适合 cron
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/cmd"
	"storefront/config"
	"storefront/infrastructure/persistence/mysql"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Process a single batch and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "outbox worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Worker.Enabled && !once {
		logger.Info("Outbox worker disabled by config")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := mysql.FromAppConfig(cfg.Database).Connect(ctx)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	publisher, closer, err := cmd.NewOutboxPublisher(cfg.Outbox)
	if err != nil {
		return fmt.Errorf("outbox publisher %q: %w", cfg.Outbox.Publisher, err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("Closing outbox publisher failed", zap.Error(err))
		}
	}()

	worker, err := mysql.NewOutboxWorker(mysql.NewOutboxRepository(db), publisher,
		cfg.Worker.PollInterval, cfg.Worker.BatchSize, cfg.Worker.MaxRetries)
	if err != nil {
		return err
	}

	if once {
		published, err := worker.ProcessBatch(ctx)
		logger.Info("Outbox batch processed", zap.Int("published", published))
		return err
	}

	logger.Info("Outbox worker running",
		zap.String("publisher", cfg.Outbox.Publisher),
		zap.Duration("poll_interval", cfg.Worker.PollInterval),
		zap.Int("batch_size", cfg.Worker.BatchSize))

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Outbox worker stopped")
	return nil
}
