package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dispensa/internal/bank"
	"dispensa/internal/cli"
	"dispensa/internal/events"
	"dispensa/internal/export"
	gsheet "dispensa/internal/export/google"
	apphttp "dispensa/internal/http"
	"dispensa/internal/notify"
	"dispensa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(logger, cfg)
	defer store.Close()

	// Optional integrations: each one degrades to local-only operation
	// when its configuration is absent.
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		var err error
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		logger.Info("AMQP events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP events disabled - no AMQP_URL provided")
	}

	var fetcher bank.Fetcher
	if cfg.BankEnabled() {
		client, err := bank.NewClient(cfg.BankBaseURL, cfg.BankTimeout)
		if err != nil {
			logger.Error("Failed to initialize bank aggregator client", "error", err, "base_url", cfg.BankBaseURL)
			os.Exit(1)
		}
		fetcher = client
		logger.Info("Bank aggregator enabled", "base_url", cfg.BankBaseURL)
	} else {
		logger.Info("Bank sync disabled - no BANK_BASE_URL provided")
	}

	var notifier *notify.Notifier
	if cfg.DiscordBotToken != "" {
		var err error
		notifier, err = notify.New(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Error("Failed to initialize Discord notifier", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
		logger.Info("Discord notifications enabled")
	} else {
		logger.Info("Discord notifications disabled - no DISCORD_BOT_TOKEN provided")
	}

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
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	people := services.NewPeopleService(store)
	cycles := services.NewCycleService(store, eventsClient, notifier, exporter)
	ledger := services.NewLedgerService(store, cycles, fetcher, eventsClient, cfg.GroceryKeywords, cfg.BankAccessToken)

	srv := apphttp.NewServer(":"+cfg.Port, people, cycles, ledger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting dispensa server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
