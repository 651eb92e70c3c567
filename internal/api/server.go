package api

import (
	"context"
	"fmt"

	"go-fea-pipeline/internal/api/handler"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/internal/store"
)

// Serve runs the HTTP API on addr with the run store at dbPath until ctx
// is cancelled. Runs still executing are cancelled and awaited.
func Serve(ctx context.Context, addr, dbPath string, log *logger.Logger) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run store %s: %w", dbPath, err)
	}
	defer db.Close()

	reg, metrics, err := NewMetricsRegistry()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()
	h := handler.New(runCtx, db, log, metrics)

	err = NewRouter(h, reg, log).Start(ctx, addr)
	cancelRuns()
	h.Wait()
	return err
}
