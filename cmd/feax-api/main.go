package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go-fea-pipeline/internal/api"
	"go-fea-pipeline/internal/config"
	"go-fea-pipeline/internal/platform/logger"
)

// @title feax extraction API
// @version 1.0
// @description Extracts field time series from FEA result archives.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Serve(ctx, cfg.Server.Addr, cfg.Store.Path, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}
