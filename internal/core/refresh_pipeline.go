package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/AaronSotoPacheco/criptoapi/internal/service"
)

// Resources fetched on every refresh
const (
	ResourceCoins     = "coins"
	ResourceExchanges = "exchanges"
)

// Pipeline defaults
const (
	DefaultExchangeLimit = 100
	DefaultChartTopN     = service.DefaultChartTopN
)

// FetchFailure aborts a refresh. It names the upstream resource that failed.
type FetchFailure struct {
	Resource string
	Err      error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", f.Resource, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

type Fetcher interface {
	FetchCoins(ctx context.Context) ([]model.Coin, error)
	FetchExchanges(ctx context.Context) ([]model.Exchange, error)
}

type SnapshotStore interface {
	Replace(coins []model.Coin, exchanges []model.Exchange) model.Snapshot
}

type ChartHandle interface {
	Replace(spec model.ChartSpec) model.ChartSpec
}

// Notifier receives the KPI summary after every successful refresh
type Notifier interface {
	Publish(kpis model.KPISummary)
}

// Config holds the refresh pipeline settings
type Config struct {
	ExchangeLimit int // 0 keeps every exchange
	ChartTopN     int
	Interval      time.Duration // 0 disables periodic refresh
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		ExchangeLimit: DefaultExchangeLimit,
		ChartTopN:     DefaultChartTopN,
	}
}

// RefreshService fetches coins and exchanges, stores them as one snapshot
// and republishes the charts. Refreshes never overlap.
type RefreshService struct {
	fetcher       Fetcher
	store         SnapshotStore
	coinChart     ChartHandle
	exchangeChart ChartHandle
	config        Config
	logger        *slog.Logger
	now           func() time.Time

	refreshMu sync.Mutex
	trigger   chan struct{}

	mu        sync.RWMutex
	status    model.RefreshStatus
	notifiers []Notifier
}

// NewRefreshService creates a new refresh pipeline. Chart handles may be nil.
func NewRefreshService(fetcher Fetcher, store SnapshotStore, coinChart, exchangeChart ChartHandle, config Config) *RefreshService {
	if config.ExchangeLimit < 0 {
		config.ExchangeLimit = 0
	}
	if config.ChartTopN <= 0 {
		config.ChartTopN = DefaultChartTopN
	}

	return &RefreshService{
		fetcher:       fetcher,
		store:         store,
		coinChart:     coinChart,
		exchangeChart: exchangeChart,
		config:        config,
		logger:        slog.Default(),
		now:           time.Now,
		trigger:       make(chan struct{}, 1),
	}
}

// Subscribe registers a notifier for future refreshes
func (rs *RefreshService) Subscribe(n Notifier) {
	if n == nil {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.notifiers = append(rs.notifiers, n)
}

// Refresh runs one full cycle. On failure the stored snapshot and the charts
// are left untouched and a *FetchFailure is returned.
func (rs *RefreshService) Refresh(ctx context.Context) error {
	rs.refreshMu.Lock()
	defer rs.refreshMu.Unlock()

	started := rs.now()
	rs.logger.Debug("refreshing market data")

	coins, exchanges, err := rs.fetch(ctx)
	if err != nil {
		rs.logger.Error("refresh failed, keeping previous snapshot", slog.Any("error", err))
		rs.recordAttempt(started, "", err)
		return err
	}

	exchanges = service.TopN(service.SortExchangesByVolume(exchanges), rs.config.ExchangeLimit)

	snapshot := rs.store.Replace(coins, exchanges)
	kpis := service.ComputeKPIs(snapshot)

	rs.replaceChart(rs.coinChart, service.CoinChartSpec(snapshot.Coins, rs.config.ChartTopN))
	rs.replaceChart(rs.exchangeChart, service.ExchangeChartSpec(snapshot.Exchanges, rs.config.ChartTopN))

	rs.recordAttempt(started, snapshot.ID, nil)

	rs.logger.Info("market data refreshed",
		slog.String("snapshot_id", snapshot.ID),
		slog.Int("coins", len(snapshot.Coins)),
		slog.Int("exchanges", len(snapshot.Exchanges)),
		slog.Duration("took", rs.now().Sub(started)))

	rs.publish(kpis)
	return nil
}

// fetch runs both requests in parallel. The first failure cancels the other.
func (rs *RefreshService) fetch(ctx context.Context) ([]model.Coin, []model.Exchange, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		once      sync.Once
		firstErr  error
		coins     []model.Coin
		exchanges []model.Exchange
	)

	fail := func(resource string, err error) {
		once.Do(func() {
			firstErr = &FetchFailure{Resource: resource, Err: err}
			cancel()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := rs.fetcher.FetchCoins(ctx)
		if err != nil {
			fail(ResourceCoins, err)
			return
		}
		coins = result
	}()
	go func() {
		defer wg.Done()
		result, err := rs.fetcher.FetchExchanges(ctx)
		if err != nil {
			fail(ResourceExchanges, err)
			return
		}
		exchanges = result
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return coins, exchanges, nil
}

func (rs *RefreshService) replaceChart(handle ChartHandle, spec model.ChartSpec) {
	if handle == nil {
		return
	}
	published := handle.Replace(spec)

	rs.logger.Debug("chart replaced",
		slog.String("label", published.Label),
		slog.Uint64("version", published.Version),
		slog.Int("bars", len(published.Labels)))
}

func (rs *RefreshService) recordAttempt(at time.Time, snapshotID string, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.status.LastAttempt = at
	if err != nil {
		rs.status.LastError = err.Error()
		return
	}
	rs.status.SnapshotID = snapshotID
	rs.status.LastSuccess = at
	rs.status.LastError = ""
}

func (rs *RefreshService) publish(kpis model.KPISummary) {
	rs.mu.RLock()
	notifiers := append([]Notifier(nil), rs.notifiers...)
	rs.mu.RUnlock()

	for _, n := range notifiers {
		n.Publish(kpis)
	}
}

// Status returns the outcome of the latest refresh attempt
func (rs *RefreshService) Status() model.RefreshStatus {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.status
}

// Trigger requests a refresh from the scheduler without blocking.
// Requests made while one is already pending are merged.
func (rs *RefreshService) Trigger() {
	select {
	case rs.trigger <- struct{}{}:
	default:
	}
}

// Start runs an initial refresh and then serves triggers and the optional
// interval until ctx is cancelled
func (rs *RefreshService) Start(ctx context.Context) {
	rs.logger.Info("starting refresh scheduler",
		slog.Int("exchange_limit", rs.config.ExchangeLimit),
		slog.Duration("interval", rs.config.Interval))

	go func() {
		defer rs.logger.Info("refresh scheduler stopped")

		// Failures are logged by Refresh; the scheduler keeps going
		_ = rs.Refresh(ctx)

		var tick <-chan time.Time
		if rs.config.Interval > 0 {
			ticker := time.NewTicker(rs.config.Interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-rs.trigger:
				_ = rs.Refresh(ctx)
			case <-tick:
				_ = rs.Refresh(ctx)
			}
		}
	}()
}
