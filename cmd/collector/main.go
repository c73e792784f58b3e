package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"klinecollector/config"
	"klinecollector/internal/app"
	"klinecollector/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search next to the binary)")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("failed to build collector", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		log.Fatal("collector failed", zap.Error(err))
	}
	log.Info("collector stopped")
}
