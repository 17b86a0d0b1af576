package core

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/chart"
	"github.com/AaronSotoPacheco/criptoapi/internal/coinlore"
	"github.com/AaronSotoPacheco/criptoapi/internal/data"
	"github.com/AaronSotoPacheco/criptoapi/internal/mock"
	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/AaronSotoPacheco/criptoapi/internal/service"
	"github.com/shopspring/decimal"
)

// MockFetcher implements Fetcher for testing
type MockFetcher struct {
	coins        []model.Coin
	exchanges    []model.Exchange
	coinsErr     error
	exchangesErr error
	delay        time.Duration
	blockCoins   bool

	coinCalls atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64
}

func (m *MockFetcher) FetchCoins(ctx context.Context) ([]model.Coin, error) {
	m.coinCalls.Add(1)
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	for {
		peak := m.maxFlight.Load()
		if current <= peak || m.maxFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	if m.blockCoins {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.coinsErr != nil {
		return nil, m.coinsErr
	}
	return m.coins, nil
}

func (m *MockFetcher) FetchExchanges(ctx context.Context) ([]model.Exchange, error) {
	if m.exchangesErr != nil {
		return nil, m.exchangesErr
	}
	return m.exchanges, nil
}

// MockNotifier records published KPI summaries
type MockNotifier struct {
	mu        sync.Mutex
	published []model.KPISummary
}

func (m *MockNotifier) Publish(kpis model.KPISummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, kpis)
}

func (m *MockNotifier) Published() []model.KPISummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.KPISummary{}, m.published...)
}

// Helper function to create upstream coin records priced 1..n
func createCoinRecords(n int) []mock.CoinRecord {
	records := make([]mock.CoinRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, mock.CoinRecord{
			ID:       fmt.Sprintf("%d", i),
			Rank:     i,
			Name:     fmt.Sprintf("Coin %d", i),
			Symbol:   fmt.Sprintf("C%d", i),
			PriceUSD: fmt.Sprintf("%d.00", i),
		})
	}
	return records
}

func createExchangeRecords(n int) []mock.ExchangeRecord {
	records := make([]mock.ExchangeRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, mock.ExchangeRecord{
			ID:          fmt.Sprintf("%d", i),
			Name:        fmt.Sprintf("Exchange %d", i),
			VolumeUSD:   float64(i * 1000),
			ActivePairs: "10",
		})
	}
	return records
}

type pipeline struct {
	upstream      *mock.UpstreamServer
	storage       *data.InMemorySnapshotStorage
	coinChart     *chart.Handle
	exchangeChart *chart.Handle
	notifier      *MockNotifier
	service       *RefreshService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	upstream := mock.NewUpstreamServer(nil, nil)
	server := httptest.NewServer(upstream.Handler())
	t.Cleanup(server.Close)

	client := coinlore.NewClientWithConfig(coinlore.Config{
		CoinsURL:     server.URL + mock.TickersPath,
		ExchangesURL: server.URL + mock.ExchangesPath,
		Timeout:      2 * time.Second,
	})

	p := &pipeline{
		upstream:      upstream,
		storage:       data.NewInMemorySnapshotStorage(),
		coinChart:     chart.NewHandle("coins", nil),
		exchangeChart: chart.NewHandle("exchanges", nil),
		notifier:      &MockNotifier{},
	}
	p.service = NewRefreshService(client, p.storage, p.coinChart, p.exchangeChart, DefaultConfig())
	p.service.Subscribe(p.notifier)
	return p
}

func TestRefreshEndToEnd(t *testing.T) {
	p := newPipeline(t)
	p.upstream.SetCoins(createCoinRecords(12))
	p.upstream.SetExchanges(createExchangeRecords(5))

	if err := p.service.Refresh(context.Background()); err != nil {
		t.Fatalf("Unexpected refresh error: %v", err)
	}

	spec, ok := p.coinChart.Current()
	if !ok {
		t.Fatal("Expected coin chart to be published")
	}
	if len(spec.Labels) != 10 {
		t.Fatalf("Expected 10 coins in chart, got %d", len(spec.Labels))
	}
	for i, label := range spec.Labels {
		expected := fmt.Sprintf("Coin %d", 12-i)
		if label != expected {
			t.Errorf("Chart position %d: expected %s, got %s", i, expected, label)
		}
	}

	snapshot, ok := p.storage.Snapshot(context.Background())
	if !ok {
		t.Fatal("Expected snapshot to be stored")
	}
	kpis := service.ComputeKPIs(snapshot)
	if kpis.ExchangeCount != 5 {
		t.Errorf("Expected exchange_count 5, got %d", kpis.ExchangeCount)
	}
	if snapshot.Exchanges[0].Name != "Exchange 5" {
		t.Errorf("Expected exchanges sorted by volume, got %s first", snapshot.Exchanges[0].Name)
	}

	exchangeSpec, ok := p.exchangeChart.Current()
	if !ok || exchangeSpec.IndexAxis != model.AxisHorizontal || len(exchangeSpec.Labels) != 5 {
		t.Errorf("Unexpected exchange chart: %+v", exchangeSpec)
	}

	published := p.notifier.Published()
	if len(published) != 1 || published[0].ExchangeCount != 5 || published[0].TopCoinName != "Coin 12" {
		t.Errorf("Unexpected published KPIs: %+v", published)
	}

	status := p.service.Status()
	if status.SnapshotID != snapshot.ID || status.LastError != "" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestRefreshFailureKeepsState(t *testing.T) {
	p := newPipeline(t)
	p.upstream.SetCoins(createCoinRecords(12))
	p.upstream.SetExchanges(createExchangeRecords(5))

	if err := p.service.Refresh(context.Background()); err != nil {
		t.Fatalf("Unexpected refresh error: %v", err)
	}
	before, _ := p.storage.Snapshot(context.Background())
	chartBefore, _ := p.coinChart.Current()

	p.upstream.SetCoins(createCoinRecords(3))
	p.upstream.FailExchanges(true)

	err := p.service.Refresh(context.Background())
	if err == nil {
		t.Fatal("Expected refresh to fail")
	}

	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *FetchFailure, got %T", err)
	}
	if failure.Resource != ResourceExchanges {
		t.Errorf("Expected failing resource %s, got %s", ResourceExchanges, failure.Resource)
	}

	after, _ := p.storage.Snapshot(context.Background())
	if after.ID != before.ID || len(after.Coins) != 12 || len(after.Exchanges) != 5 {
		t.Errorf("Expected snapshot to be unchanged, got id %s with %d coins", after.ID, len(after.Coins))
	}

	chartAfter, _ := p.coinChart.Current()
	if chartAfter.Version != chartBefore.Version {
		t.Errorf("Expected chart version %d to be kept, got %d", chartBefore.Version, chartAfter.Version)
	}

	if got := len(p.notifier.Published()); got != 1 {
		t.Errorf("Expected no notification for failed refresh, got %d total", got)
	}

	status := p.service.Status()
	if status.LastError == "" || status.SnapshotID != before.ID {
		t.Errorf("Unexpected status after failure: %+v", status)
	}
}

func TestRefreshExchangeLimit(t *testing.T) {
	exchanges := []model.Exchange{
		{Name: "small", VolumeUSD: decimal.NewFromInt(1)},
		{Name: "large", VolumeUSD: decimal.NewFromInt(3)},
		{Name: "medium", VolumeUSD: decimal.NewFromInt(2)},
	}

	tests := []struct {
		name     string
		limit    int
		expected []string
	}{
		{"capped", 2, []string{"large", "medium"}},
		{"unbounded", 0, []string{"large", "medium", "small"}},
		{"limit above size", 100, []string{"large", "medium", "small"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := data.NewInMemorySnapshotStorage()
			fetcher := &MockFetcher{exchanges: exchanges}
			rs := NewRefreshService(fetcher, storage, nil, nil, Config{ExchangeLimit: tt.limit})

			if err := rs.Refresh(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			snapshot, _ := storage.Snapshot(context.Background())
			if len(snapshot.Exchanges) != len(tt.expected) {
				t.Fatalf("Expected %d exchanges, got %d", len(tt.expected), len(snapshot.Exchanges))
			}
			for i, name := range tt.expected {
				if snapshot.Exchanges[i].Name != name {
					t.Errorf("Position %d: expected %s, got %s", i, name, snapshot.Exchanges[i].Name)
				}
			}
		})
	}
}

func TestRefreshCancelsSiblingFetch(t *testing.T) {
	upstreamErr := errors.New("exchanges down")
	fetcher := &MockFetcher{blockCoins: true, exchangesErr: upstreamErr}
	storage := data.NewInMemorySnapshotStorage()
	rs := NewRefreshService(fetcher, storage, nil, nil, DefaultConfig())

	done := make(chan error, 1)
	go func() {
		done <- rs.Refresh(context.Background())
	}()

	select {
	case err := <-done:
		if !errors.Is(err, upstreamErr) {
			t.Errorf("Expected error to wrap upstream error, got %v", err)
		}
		var failure *FetchFailure
		if errors.As(err, &failure) && failure.Resource != ResourceExchanges {
			t.Errorf("Expected exchanges to be reported, got %s", failure.Resource)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not return after exchange fetch failed")
	}

	if _, ok := storage.Snapshot(context.Background()); ok {
		t.Error("Expected no snapshot after failed refresh")
	}
}

func TestRefreshIsSerialized(t *testing.T) {
	fetcher := &MockFetcher{delay: 10 * time.Millisecond}
	rs := NewRefreshService(fetcher, data.NewInMemorySnapshotStorage(), nil, nil, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rs.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if got := fetcher.coinCalls.Load(); got != 5 {
		t.Errorf("Expected 5 refreshes, got %d", got)
	}
	if got := fetcher.maxFlight.Load(); got != 1 {
		t.Errorf("Expected at most one refresh in flight, got %d", got)
	}
}

func TestFetchFailureError(t *testing.T) {
	inner := errors.New("boom")
	failure := &FetchFailure{Resource: ResourceCoins, Err: inner}

	if failure.Error() != "fetch coins: boom" {
		t.Errorf("Unexpected message: %s", failure.Error())
	}
	if !errors.Is(failure, inner) {
		t.Error("Expected FetchFailure to unwrap to its cause")
	}
}

func TestStartAndTrigger(t *testing.T) {
	fetcher := &MockFetcher{}
	rs := NewRefreshService(fetcher, data.NewInMemorySnapshotStorage(), nil, nil, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rs.Start(ctx)
	waitForCalls(t, fetcher, 1)

	rs.Trigger()
	waitForCalls(t, fetcher, 2)
}

func TestStartWithInterval(t *testing.T) {
	fetcher := &MockFetcher{}
	rs := NewRefreshService(fetcher, data.NewInMemorySnapshotStorage(), nil, nil, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rs.Start(ctx)
	waitForCalls(t, fetcher, 3)
}

func TestTriggerDoesNotBlock(t *testing.T) {
	rs := NewRefreshService(&MockFetcher{}, data.NewInMemorySnapshotStorage(), nil, nil, DefaultConfig())

	// Nothing is consuming triggers yet
	for i := 0; i < 10; i++ {
		rs.Trigger()
	}

	if len(rs.trigger) != 1 {
		t.Errorf("Expected pending triggers to be merged, got %d", len(rs.trigger))
	}
}

func waitForCalls(t *testing.T, fetcher *MockFetcher, n int64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fetcher.coinCalls.Load() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Expected at least %d refreshes, got %d", n, fetcher.coinCalls.Load())
}

// Benchmark tests
func BenchmarkRefresh(b *testing.B) {
	generator := mock.NewMarketDataGeneratorWithConfig(mock.DefaultGeneratorConfig())
	coins := make([]model.Coin, 0)
	for _, r := range generator.Coins() {
		coins = append(coins, model.Coin{Name: r.Name, Symbol: r.Symbol, PriceUSD: decimal.RequireFromString(r.PriceUSD)})
	}
	fetcher := &MockFetcher{coins: coins}
	rs := NewRefreshService(fetcher, data.NewInMemorySnapshotStorage(), chart.NewHandle("coins", nil), nil, DefaultConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.Refresh(context.Background())
	}
}
