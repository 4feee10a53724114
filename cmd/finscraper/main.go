package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"finscraper/cmd/finscraper/commands"
	"finscraper/internal/components/telemetry"
	"finscraper/lib/util/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())

	providers, err := telemetry.SetupFromEnv(ctx, "finscraper")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to set up telemetry exporters", "err", err)
	}

	code := commands.ExecuteContext(ctx)
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	err = providers.Shutdown(shutdownCtx)
	cancelShutdown()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	os.Exit(code)
}
