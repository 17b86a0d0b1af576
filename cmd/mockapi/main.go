package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/mock"
)

// Serves generated Coinlore-shaped data for offline runs:
//
//	go run ./cmd/mockapi -addr :9000
//	CRIPTOAPI_UPSTREAM_COINS_URL=http://localhost:9000/api/tickers/ \
//	CRIPTOAPI_UPSTREAM_EXCHANGES_URL=http://localhost:9000/api/exchanges/ go run ./cmd
func main() {
	defaults := mock.DefaultGeneratorConfig()

	addr := flag.String("addr", ":9000", "listen address")
	coins := flag.Int("coins", defaults.CoinCount, "number of coins per tickers response")
	exchanges := flag.Int("exchanges", defaults.ExchangeCount, "number of exchanges per response")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	flag.Parse()

	if *coins < 0 || *exchanges < 0 {
		log.Fatal("coins and exchanges must not be negative")
	}

	config := defaults
	config.CoinCount = *coins
	config.ExchangeCount = *exchanges
	config.Seed = *seed

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	upstream := mock.NewUpstreamServer(mock.NewMarketDataGeneratorWithConfig(config), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := &http.Server{
		Addr:              *addr,
		Handler:           upstream.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	fmt.Printf("Fake upstream listening on %s\n", *addr)
	fmt.Printf("  GET %s\n", mock.TickersPath)
	fmt.Printf("  GET %s\n", mock.ExchangesPath)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
