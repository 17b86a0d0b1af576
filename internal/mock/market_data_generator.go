package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CoinRecord is a ticker in the upstream wire format
type CoinRecord struct {
	ID               string `json:"id"`
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	NameID           string `json:"nameid"`
	Rank             int    `json:"rank"`
	PriceUSD         string `json:"price_usd"`
	PercentChange24h string `json:"percent_change_24h,omitempty"`
	MarketCapUSD     string `json:"market_cap_usd,omitempty"`
}

// ExchangeRecord is an exchange in the upstream wire format.
// The upstream sends volume_usd as a number and active_pairs as a string.
type ExchangeRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	NameID      string  `json:"name_id"`
	VolumeUSD   float64 `json:"volume_usd"`
	ActivePairs string  `json:"active_pairs"`
	URL         string  `json:"url"`
	Country     string  `json:"country"`
}

// GeneratorConfig holds configuration for the market data generator
type GeneratorConfig struct {
	CoinCount     int
	ExchangeCount int
	BasePrices    map[string]float64
	MaxVolume     float64
	Volatility    float64
	Seed          int64
}

// DefaultGeneratorConfig returns a sensible default configuration
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		CoinCount:     100,
		ExchangeCount: 150,
		BasePrices: map[string]float64{
			"BTC": 65000.0,
			"ETH": 3200.0,
			"BNB": 580.0,
			"SOL": 150.0,
			"XRP": 0.52,
		},
		MaxVolume:  5e9,
		Volatility: 0.01, // 1% volatility
		Seed:       time.Now().UnixNano(),
	}
}

var knownCoins = []struct{ symbol, name string }{
	{"BTC", "Bitcoin"},
	{"ETH", "Ethereum"},
	{"BNB", "Binance Coin"},
	{"SOL", "Solana"},
	{"XRP", "XRP"},
}

var knownExchanges = []struct{ name, country string }{
	{"Binance", "Japan"},
	{"Coinbase Pro", "United States"},
	{"Kraken", "United States"},
	{"Bitfinex", "Hong Kong"},
	{"OKX", "Seychelles"},
}

// MarketDataGenerator produces Coinlore-shaped coin and exchange data
type MarketDataGenerator struct {
	config    GeneratorConfig
	basePrice map[string]float64
	rng       *rand.Rand
	mu        sync.Mutex
}

// NewMarketDataGenerator creates a new generator with default config
func NewMarketDataGenerator() *MarketDataGenerator {
	return NewMarketDataGeneratorWithConfig(DefaultGeneratorConfig())
}

// NewMarketDataGeneratorWithConfig creates a new generator with custom config
func NewMarketDataGeneratorWithConfig(config GeneratorConfig) *MarketDataGenerator {
	// Create a copy of base prices for modification
	basePrice := make(map[string]float64)
	for k, v := range config.BasePrices {
		basePrice[k] = v
	}

	return &MarketDataGenerator{
		config:    config,
		basePrice: basePrice,
		rng:       rand.New(rand.NewSource(config.Seed)),
	}
}

// Coins generates the next ticker list, ranked 1..CoinCount.
// Prices random-walk between calls.
func (g *MarketDataGenerator) Coins() []CoinRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	coins := make([]CoinRecord, 0, g.config.CoinCount)
	for i := 0; i < g.config.CoinCount; i++ {
		symbol, name := coinIdentity(i)

		price, exists := g.basePrice[symbol]
		if !exists {
			// Unknown coins start somewhere between $0.01 and $100
			price = 0.01 + g.rng.Float64()*100
		}
		price = g.nextPrice(price)
		g.basePrice[symbol] = price

		change := g.rng.NormFloat64() * 5
		supply := 1e6 + g.rng.Float64()*1e9

		coins = append(coins, CoinRecord{
			ID:               strconv.Itoa(90 + i),
			Symbol:           symbol,
			Name:             name,
			NameID:           strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			Rank:             i + 1,
			PriceUSD:         strconv.FormatFloat(price, 'f', 2, 64),
			PercentChange24h: strconv.FormatFloat(change, 'f', 2, 64),
			MarketCapUSD:     strconv.FormatFloat(price*supply, 'f', 2, 64),
		})
	}

	return coins
}

// Exchanges generates the next exchange collection in upstream order (by id)
func (g *MarketDataGenerator) Exchanges() []ExchangeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	exchanges := make([]ExchangeRecord, 0, g.config.ExchangeCount)
	for i := 0; i < g.config.ExchangeCount; i++ {
		name, country := exchangeIdentity(i)

		exchanges = append(exchanges, ExchangeRecord{
			ID:          strconv.Itoa(i + 1),
			Name:        name,
			NameID:      strings.ToLower(strings.ReplaceAll(name, " ", "")),
			VolumeUSD:   g.rng.Float64() * g.config.MaxVolume,
			ActivePairs: strconv.Itoa(1 + g.rng.Intn(1500)),
			URL:         fmt.Sprintf("https://exchange-%d.example.com", i+1),
			Country:     country,
		})
	}

	return exchanges
}

func (g *MarketDataGenerator) nextPrice(price float64) float64 {
	variation := g.rng.NormFloat64() * g.config.Volatility * price
	next := price + variation

	// Ensure price doesn't go negative
	if next <= 0 {
		next = price * 0.99
	}
	return next
}

func coinIdentity(i int) (string, string) {
	if i < len(knownCoins) {
		return knownCoins[i].symbol, knownCoins[i].name
	}
	return fmt.Sprintf("TK%d", i), fmt.Sprintf("Token %d", i)
}

func exchangeIdentity(i int) (string, string) {
	if i < len(knownExchanges) {
		return knownExchanges[i].name, knownExchanges[i].country
	}
	return fmt.Sprintf("Exchange %d", i), ""
}

// TickersPayload wraps coins in the tickers envelope: {"data": [...], "info": {...}}
func TickersPayload(coins []CoinRecord) ([]byte, error) {
	if coins == nil {
		coins = []CoinRecord{}
	}

	return json.Marshal(struct {
		Data []CoinRecord `json:"data"`
		Info struct {
			CoinsNum int   `json:"coins_num"`
			Time     int64 `json:"time"`
		} `json:"info"`
	}{
		Data: coins,
		Info: struct {
			CoinsNum int   `json:"coins_num"`
			Time     int64 `json:"time"`
		}{CoinsNum: len(coins), Time: time.Now().Unix()},
	})
}

// ExchangesPayload renders exchanges as an object keyed by id, keeping slice order.
// encoding/json sorts map keys, so the object is written by hand.
func ExchangesPayload(exchanges []ExchangeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, ex := range exchanges {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(ex.ID)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(ex)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
