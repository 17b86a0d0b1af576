package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AaronSotoPacheco/criptoapi/api"
	"github.com/AaronSotoPacheco/criptoapi/internal/chart"
	"github.com/AaronSotoPacheco/criptoapi/internal/coinlore"
	"github.com/AaronSotoPacheco/criptoapi/internal/config"
	"github.com/AaronSotoPacheco/criptoapi/internal/core"
	"github.com/AaronSotoPacheco/criptoapi/internal/data"
	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/AaronSotoPacheco/criptoapi/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// Create a context that is cancelled on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. Upstream client
	client := coinlore.NewClientWithConfig(coinlore.Config{
		CoinsURL:     cfg.Upstream.CoinsURL,
		ExchangesURL: cfg.Upstream.ExchangesURL,
		Timeout:      cfg.Upstream.Timeout,
		UserAgent:    cfg.Upstream.UserAgent,
	})

	// 2. Snapshot storage, unbounded beyond the pipeline's own exchange limit
	storage := data.NewInMemorySnapshotStorageWithConfig(data.StorageConfig{})

	// 3. Chart handles, one per widget
	onRelease := func(spec model.ChartSpec) {
		logger.Debug("chart released", slog.String("label", spec.Label), slog.Uint64("version", spec.Version))
	}
	coinChart := chart.NewHandle("coins", onRelease)
	exchangeChart := chart.NewHandle("exchanges", onRelease)
	defer coinChart.Close()
	defer exchangeChart.Close()

	// 4. Refresh pipeline
	refresher := core.NewRefreshService(client, storage, coinChart, exchangeChart, core.Config{
		ExchangeLimit: cfg.Pipeline.ExchangeLimit,
		ChartTopN:     cfg.Pipeline.ChartTopN,
		Interval:      cfg.Pipeline.RefreshInterval,
	})

	// 5. Read side for the API
	dashboard := service.NewDashboardService(storage, coinChart, exchangeChart, cfg.Pipeline.ChartTopN)

	apiHandler := api.NewAPIHandler(dashboard, refresher, logger)
	refresher.Subscribe(apiHandler.Stream())
	refresher.Start(ctx)

	fmt.Printf("Dashboard starting on %s\n", cfg.Addr())
	fmt.Printf("Endpoints:\n")
	fmt.Printf("  GET  /\n")
	fmt.Printf("  GET  /api/v1/kpis\n")
	fmt.Printf("  GET  /api/v1/coins?search=btc\n")
	fmt.Printf("  GET  /api/v1/exchanges?search=bin\n")
	fmt.Printf("  GET  /api/v1/charts/coins?search=btc\n")
	fmt.Printf("  GET  /api/v1/charts/exchanges\n")
	fmt.Printf("  POST /api/v1/refresh\n")
	fmt.Printf("  GET  /api/v1/stream (websocket)\n")
	fmt.Printf("  GET  /health\n")
	fmt.Printf("Press Ctrl+C to gracefully shutdown\n")

	if err := apiHandler.StartServer(ctx, cfg.Addr()); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
