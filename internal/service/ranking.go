package service

import (
	"slices"
	"strconv"
	"strings"

	"github.com/AaronSotoPacheco/criptoapi/internal/format"
	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/shopspring/decimal"
)

// Chart defaults
const (
	DefaultChartTopN   = 10
	CoinChartLabel     = "Price (USD)"
	ExchangeChartLabel = "24h Volume (USD)"
)

// SortCoinsByPrice returns a copy of coins ordered by price, highest first.
// Ties keep their input order.
func SortCoinsByPrice(coins []model.Coin) []model.Coin {
	sorted := slices.Clone(coins)
	slices.SortStableFunc(sorted, func(a, b model.Coin) int {
		return b.PriceUSD.Cmp(a.PriceUSD)
	})
	return sorted
}

// SortExchangesByVolume returns a copy of exchanges ordered by volume, highest first.
// Ties keep their input order.
func SortExchangesByVolume(exchanges []model.Exchange) []model.Exchange {
	sorted := slices.Clone(exchanges)
	slices.SortStableFunc(sorted, func(a, b model.Exchange) int {
		return b.VolumeUSD.Cmp(a.VolumeUSD)
	})
	return sorted
}

// TopN returns the first n items; n <= 0 means all of them
func TopN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// FilterCoins keeps coins whose name or symbol contains term, case-insensitively.
// An empty term keeps everything, in input order.
func FilterCoins(coins []model.Coin, term string) []model.Coin {
	term = strings.ToLower(term)
	result := make([]model.Coin, 0, len(coins))

	for _, c := range coins {
		if term == "" ||
			strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Symbol), term) {
			result = append(result, c)
		}
	}
	return result
}

// FilterExchanges keeps exchanges whose name contains term, case-insensitively
func FilterExchanges(exchanges []model.Exchange, term string) []model.Exchange {
	term = strings.ToLower(term)
	result := make([]model.Exchange, 0, len(exchanges))

	for _, e := range exchanges {
		if term == "" || strings.Contains(strings.ToLower(e.Name), term) {
			result = append(result, e)
		}
	}
	return result
}

// ComputeKPIs derives the headline values from a full snapshot.
// With no coins the average and top coin carry the placeholder instead of NaN.
func ComputeKPIs(snapshot model.Snapshot) model.KPISummary {
	kpis := model.KPISummary{
		ExchangeCount:       len(snapshot.Exchanges),
		ExchangeCountText:   strconv.Itoa(len(snapshot.Exchanges)),
		TopCoinName:         format.Placeholder,
		AveragePriceDisplay: format.Placeholder,
		SnapshotID:          snapshot.ID,
		FetchedAt:           snapshot.FetchedAt,
	}

	coins := snapshot.Coins
	if len(coins) == 0 {
		return kpis
	}

	sum := decimal.Zero
	top := coins[0]
	for _, c := range coins {
		sum = sum.Add(c.PriceUSD)
		if c.PriceUSD.GreaterThan(top.PriceUSD) {
			top = c
		}
	}

	average := sum.Div(decimal.NewFromInt(int64(len(coins)))).InexactFloat64()

	kpis.AveragePrice = average
	kpis.AveragePriceOK = true
	kpis.AveragePriceDisplay = format.FmtUSD(average)
	kpis.TopCoinName = top.Name

	return kpis
}

// CoinRows renders coins as table rows sorted by price, keeping the upstream rank
func CoinRows(coins []model.Coin) []model.CoinRow {
	sorted := SortCoinsByPrice(coins)
	rows := make([]model.CoinRow, 0, len(sorted))

	for _, c := range sorted {
		rows = append(rows, model.CoinRow{
			Rank:     c.Rank,
			Name:     c.Name,
			Symbol:   c.Symbol,
			PriceUSD: c.Price(),
			Price:    format.FmtUSD(c.PriceUSD),
		})
	}
	return rows
}

// ExchangeRows renders exchanges as table rows sorted by volume, ranked 1..n
func ExchangeRows(exchanges []model.Exchange) []model.ExchangeRow {
	sorted := SortExchangesByVolume(exchanges)
	rows := make([]model.ExchangeRow, 0, len(sorted))

	for i, e := range sorted {
		rows = append(rows, model.ExchangeRow{
			Rank:      i + 1,
			Name:      e.Name,
			VolumeUSD: e.Volume(),
			Volume:    format.FmtUSD(e.VolumeUSD),
		})
	}
	return rows
}

// CoinChartSpec builds a vertical bar chart of the n most expensive coins
func CoinChartSpec(coins []model.Coin, n int) model.ChartSpec {
	top := TopN(SortCoinsByPrice(coins), n)

	labels := make([]string, 0, len(top))
	values := make([]float64, 0, len(top))
	for _, c := range top {
		labels = append(labels, c.Name)
		values = append(values, c.Price())
	}

	return model.ChartSpec{
		Kind:      "bar",
		IndexAxis: model.AxisVertical,
		Label:     CoinChartLabel,
		Labels:    labels,
		Values:    values,
		Colors:    format.ColorPalette(len(labels)),
	}
}

// ExchangeChartSpec builds a horizontal bar chart of the n largest exchanges by volume
func ExchangeChartSpec(exchanges []model.Exchange, n int) model.ChartSpec {
	top := TopN(SortExchangesByVolume(exchanges), n)

	labels := make([]string, 0, len(top))
	values := make([]float64, 0, len(top))
	for _, e := range top {
		labels = append(labels, e.Name)
		values = append(values, e.Volume())
	}

	return model.ChartSpec{
		Kind:      "bar",
		IndexAxis: model.AxisHorizontal,
		Label:     ExchangeChartLabel,
		Labels:    labels,
		Values:    values,
		Colors:    format.ColorPalette(len(labels)),
	}
}
