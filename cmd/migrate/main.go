// migrate 执行内嵌的版本化建表脚本。
//
//	migrate -config config.yaml          # 升级到最新
//	migrate -config config.yaml -down 1  # 回滚一个版本
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"storefront/config"
	"storefront/infrastructure/persistence/migrations"
	"storefront/infrastructure/persistence/mysql"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		down       int
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.IntVar(&down, "down", 0, "Roll back this many versions instead of migrating up")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := mysql.FromAppConfig(cfg.Database).Connect(context.Background())
	if err != nil {
		return fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	defer sqlDB.Close()

	if down > 0 {
		if err := migrations.Down(sqlDB, down); err != nil {
			return err
		}
		logger.Info("Rolled back migrations", zap.Int("steps", down))
		return nil
	}
	return migrations.Up(sqlDB)
}
