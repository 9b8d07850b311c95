package main

import (
	"context"
	"log/slog"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/lib/util/serviceutil"
)

func InitTelemetry(ctx context.Context, verbose bool, config telemetry.Config) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	otel, err := telemetry.Setup(ctx, "schedule-server", config)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		err := otel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx, telemetry.SlogAPI{})
}
