package mock

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
)

// Paths served by the fake upstream, matching the public API layout
const (
	TickersPath   = "/api/tickers/"
	ExchangesPath = "/api/exchanges/"
)

// UpstreamServer serves generated or fixed market data in the upstream wire format.
// Each endpoint can be switched to fail for testing error paths.
type UpstreamServer struct {
	generator *MarketDataGenerator
	logger    *slog.Logger

	mu            sync.RWMutex
	coins         []CoinRecord
	exchanges     []ExchangeRecord
	failTickers   bool
	failExchanges bool

	tickerHits   atomic.Int64
	exchangeHits atomic.Int64
}

// NewUpstreamServer creates a server backed by the given generator
func NewUpstreamServer(generator *MarketDataGenerator, logger *slog.Logger) *UpstreamServer {
	if generator == nil {
		generator = NewMarketDataGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UpstreamServer{
		generator: generator,
		logger:    logger,
	}
}

// SetCoins pins the tickers response to a fixed list; nil restores generated data
func (s *UpstreamServer) SetCoins(coins []CoinRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coins = coins
}

// SetExchanges pins the exchanges response to a fixed list; nil restores generated data
func (s *UpstreamServer) SetExchanges(exchanges []ExchangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = exchanges
}

// FailTickers makes the tickers endpoint answer 500
func (s *UpstreamServer) FailTickers(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTickers = fail
}

// FailExchanges makes the exchanges endpoint answer 500
func (s *UpstreamServer) FailExchanges(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failExchanges = fail
}

// TickerHits returns how many times the tickers endpoint was called
func (s *UpstreamServer) TickerHits() int64 {
	return s.tickerHits.Load()
}

// ExchangeHits returns how many times the exchanges endpoint was called
func (s *UpstreamServer) ExchangeHits() int64 {
	return s.exchangeHits.Load()
}

// Handler returns the router for the fake upstream
func (s *UpstreamServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(TickersPath, s.handleTickers).Methods(http.MethodGet)
	r.HandleFunc(ExchangesPath, s.handleExchanges).Methods(http.MethodGet)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return r
}

func (s *UpstreamServer) handleTickers(w http.ResponseWriter, r *http.Request) {
	s.tickerHits.Add(1)

	s.mu.RLock()
	fail := s.failTickers
	coins := s.coins
	s.mu.RUnlock()

	if fail {
		http.Error(w, "tickers unavailable", http.StatusInternalServerError)
		return
	}
	if coins == nil {
		coins = s.generator.Coins()
	}

	body, err := TickersPayload(coins)
	if err != nil {
		s.logger.Error("failed to encode tickers", slog.Any("error", err))
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}

	s.write(w, body)
}

func (s *UpstreamServer) handleExchanges(w http.ResponseWriter, r *http.Request) {
	s.exchangeHits.Add(1)

	s.mu.RLock()
	fail := s.failExchanges
	exchanges := s.exchanges
	s.mu.RUnlock()

	if fail {
		http.Error(w, "exchanges unavailable", http.StatusInternalServerError)
		return
	}
	if exchanges == nil {
		exchanges = s.generator.Exchanges()
	}

	body, err := ExchangesPayload(exchanges)
	if err != nil {
		s.logger.Error("failed to encode exchanges", slog.Any("error", err))
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}

	s.write(w, body)
}

func (s *UpstreamServer) write(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("failed to write upstream response", slog.Any("error", err))
	}
}
