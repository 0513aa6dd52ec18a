// The worker drains the event queues: it mirrors finalized bills to the
// configured spreadsheet and logs ingestion summaries, keeping that work off
// the request path.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"dispensa/internal/cli"
	"dispensa/internal/events"
	"dispensa/internal/export"
	gsheet "dispensa/internal/export/google"
	"dispensa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("Worker requires AMQP_URL")
		os.Exit(1)
	}

	store := cli.InitStore(logger, cfg)
	defer store.Close()

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()

	var exporter export.BillWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - finalized cycles will only be logged")
	}

	cycles := services.NewCycleService(store, nil, nil, exporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting dispensa-worker", "exchange", cfg.AMQPExchange)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eventsClient.ConsumeImportCompleted(gctx, func(msg *events.ImportCompletedMessage) error {
			logger.Info("Import completed",
				"cycle_id", msg.CycleID,
				"source", msg.Source,
				"added", msg.Added,
				"skipped", msg.Skipped,
				"errors", msg.Errors)
			return nil
		})
	})
	g.Go(func() error {
		return eventsClient.ConsumeCycleFinalized(gctx, func(msg *events.CycleFinalizedMessage) error {
			logger.Info("Cycle finalized",
				"cycle_id", msg.CycleID, "month", msg.MonthKey, "total", msg.Total)
			if exporter == nil {
				return nil
			}
			return cycles.Export(gctx, msg.MonthKey)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
