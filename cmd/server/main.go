package main

import (
	"context"

	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/server"
	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{})
		logger.Init(consoleLogger)
		logger.Fatal("Invalid configuration", "err", err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	})
	logger.Init(consoleLogger)

	if err := server.Run(context.Background(), cfg); err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}
