// storefront HTTP 服务：购物车、三种支付方式的结账、订单与退款后台。
package main

import (
	"flag"
	"fmt"
	"os"

	"storefront/cmd"
	"storefront/config"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app, err := cmd.NewBuilder(cfg).Build()
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	if err := app.Run(); err != nil {
		logger.Fatal("Application stopped with error", zap.Error(err))
	}
}
