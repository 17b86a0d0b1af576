package service

import (
	"context"
	"errors"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
)

// ErrNoSnapshot is returned until the first refresh succeeds
var ErrNoSnapshot = errors.New("no market data loaded yet")

type SnapshotStorage interface {
	Snapshot(ctx context.Context) (model.Snapshot, bool)
}

type ChartSource interface {
	Current() (model.ChartSpec, bool)
}

// DashboardService provides KPIs, tables and charts for the API
type DashboardService struct {
	storage       SnapshotStorage
	coinChart     ChartSource
	exchangeChart ChartSource
	chartTopN     int
}

// NewDashboardService creates a new dashboard service. Chart sources may be nil;
// charts are then built from the snapshot on demand.
func NewDashboardService(storage SnapshotStorage, coinChart, exchangeChart ChartSource, chartTopN int) *DashboardService {
	if chartTopN <= 0 {
		chartTopN = DefaultChartTopN
	}

	return &DashboardService{
		storage:       storage,
		coinChart:     coinChart,
		exchangeChart: exchangeChart,
		chartTopN:     chartTopN,
	}
}

// KPIs returns the headline values computed over the full, unfiltered snapshot
func (ds *DashboardService) KPIs(ctx context.Context) (model.KPISummary, error) {
	snapshot, err := ds.snapshot(ctx)
	if err != nil {
		return model.KPISummary{}, err
	}

	return ComputeKPIs(snapshot), nil
}

// Coins returns the coins table, optionally filtered by name or symbol
func (ds *DashboardService) Coins(ctx context.Context, search string) ([]model.CoinRow, error) {
	snapshot, err := ds.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return CoinRows(FilterCoins(snapshot.Coins, search)), nil
}

// Exchanges returns the exchanges table, optionally filtered by name
func (ds *DashboardService) Exchanges(ctx context.Context, search string) ([]model.ExchangeRow, error) {
	snapshot, err := ds.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return ExchangeRows(FilterExchanges(snapshot.Exchanges, search)), nil
}

// CoinChart returns the top coins by price. Without a search term it serves the
// live chart handle; with one it re-ranks the filtered list.
func (ds *DashboardService) CoinChart(ctx context.Context, search string) (model.ChartSpec, error) {
	if search == "" {
		if spec, ok := current(ds.coinChart); ok {
			return spec, nil
		}
	}

	snapshot, err := ds.snapshot(ctx)
	if err != nil {
		return model.ChartSpec{}, err
	}

	spec := CoinChartSpec(FilterCoins(snapshot.Coins, search), ds.chartTopN)
	if live, ok := current(ds.coinChart); ok {
		spec.Version = live.Version
	}
	return spec, nil
}

// ExchangeChart returns the top exchanges by volume
func (ds *DashboardService) ExchangeChart(ctx context.Context) (model.ChartSpec, error) {
	if spec, ok := current(ds.exchangeChart); ok {
		return spec, nil
	}

	snapshot, err := ds.snapshot(ctx)
	if err != nil {
		return model.ChartSpec{}, err
	}

	return ExchangeChartSpec(snapshot.Exchanges, ds.chartTopN), nil
}

func (ds *DashboardService) snapshot(ctx context.Context) (model.Snapshot, error) {
	snapshot, ok := ds.storage.Snapshot(ctx)
	if !ok {
		return model.Snapshot{}, ErrNoSnapshot
	}
	return snapshot, nil
}

// current tolerates a missing chart source, including a typed nil
func current(source ChartSource) (model.ChartSpec, bool) {
	if source == nil {
		return model.ChartSpec{}, false
	}
	return source.Current()
}
