package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coin represents a single ticker as returned by the upstream API
type Coin struct {
	ID               string              `json:"id"`
	Rank             int                 `json:"rank"`
	Name             string              `json:"name"`
	Symbol           string              `json:"symbol"`
	PriceUSD         decimal.Decimal     `json:"price_usd"`
	PercentChange24h decimal.NullDecimal `json:"percent_change_24h"`
	MarketCapUSD     decimal.NullDecimal `json:"market_cap_usd"`
}

// Price returns the coin price as a float for aggregation and charts
func (c Coin) Price() float64 {
	return c.PriceUSD.InexactFloat64()
}

// Exchange represents a single exchange record
type Exchange struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	VolumeUSD   decimal.Decimal `json:"volume_usd"`
	ActivePairs int             `json:"active_pairs,omitempty"`
	URL         string          `json:"url,omitempty"`
	Country     string          `json:"country,omitempty"`
}

// Volume returns the 24h volume as a float
func (e Exchange) Volume() float64 {
	return e.VolumeUSD.InexactFloat64()
}

// Snapshot is the full set of data produced by one successful refresh.
// Coins and Exchanges are always replaced together.
type Snapshot struct {
	ID        string     `json:"id"`
	FetchedAt time.Time  `json:"fetched_at"`
	Coins     []Coin     `json:"coins"`
	Exchanges []Exchange `json:"exchanges"`
}

// KPISummary holds the derived headline values for the dashboard
type KPISummary struct {
	ExchangeCount  int     `json:"exchange_count"`
	AveragePrice   float64 `json:"average_price"`
	AveragePriceOK bool    `json:"average_price_ok"`
	TopCoinName    string  `json:"top_coin_name"`

	// Display strings, placeholders included
	AveragePriceDisplay string `json:"average_price_display"`
	ExchangeCountText   string `json:"exchange_count_display"`

	SnapshotID string    `json:"snapshot_id"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// CoinRow is one rendered row of the coins table
type CoinRow struct {
	Rank     int     `json:"rank"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	PriceUSD float64 `json:"price_usd"`
	Price    string  `json:"price"`
}

// ExchangeRow is one rendered row of the exchanges table.
// Rank is the 1-based position after sorting by volume.
type ExchangeRow struct {
	Rank      int     `json:"rank"`
	Name      string  `json:"name"`
	VolumeUSD float64 `json:"volume_usd"`
	Volume    string  `json:"volume"`
}

// Chart axis orientation
const (
	AxisVertical   = "x"
	AxisHorizontal = "y"
)

// ChartSpec describes a bar chart widget
type ChartSpec struct {
	Kind      string    `json:"kind"`
	IndexAxis string    `json:"index_axis"`
	Label     string    `json:"label"`
	Labels    []string  `json:"labels"`
	Values    []float64 `json:"values"`
	Colors    []string  `json:"colors"`
	Version   uint64    `json:"version"`
}

// RefreshStatus reports the outcome of the latest refresh attempt
type RefreshStatus struct {
	SnapshotID  string    `json:"snapshot_id,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}
