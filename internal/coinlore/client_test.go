package coinlore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, upstream *mock.UpstreamServer) *Client {
	t.Helper()

	srv := httptest.NewServer(upstream.Handler())
	t.Cleanup(srv.Close)

	return NewClientWithConfig(Config{
		CoinsURL:     srv.URL + mock.TickersPath,
		ExchangesURL: srv.URL + mock.ExchangesPath,
		Timeout:      2 * time.Second,
	})
}

func TestNewClientWithConfigDefaults(t *testing.T) {
	client := NewClientWithConfig(Config{})

	assert.Equal(t, DefaultCoinsURL, client.config.CoinsURL)
	assert.Equal(t, DefaultExchangesURL, client.config.ExchangesURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
}

func TestFetchCoins(t *testing.T) {
	upstream := mock.NewUpstreamServer(nil, nil)
	upstream.SetCoins([]mock.CoinRecord{
		{ID: "90", Symbol: "BTC", Name: "Bitcoin", Rank: 1, PriceUSD: "65000.12", PercentChange24h: "1.5", MarketCapUSD: "1200000000000"},
		{ID: "80", Symbol: "ETH", Name: "Ethereum", Rank: 2, PriceUSD: "3200.50"},
	})
	client := newTestClient(t, upstream)

	coins, err := client.FetchCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)

	assert.Equal(t, "Bitcoin", coins[0].Name)
	assert.Equal(t, 1, coins[0].Rank)
	assert.Equal(t, "65000.12", coins[0].PriceUSD.String())
	assert.InDelta(t, 3200.50, coins[1].Price(), 1e-9)
	assert.True(t, coins[0].PercentChange24h.Valid)
	assert.False(t, coins[1].PercentChange24h.Valid)
}

func TestFetchExchanges(t *testing.T) {
	upstream := mock.NewUpstreamServer(nil, nil)
	upstream.SetExchanges([]mock.ExchangeRecord{
		{ID: "5", Name: "Binance", VolumeUSD: 30, ActivePairs: "1167"},
		{ID: "1", Name: "Kraken", VolumeUSD: 10, ActivePairs: "300"},
	})
	client := newTestClient(t, upstream)

	exchanges, err := client.FetchExchanges(context.Background())
	require.NoError(t, err)
	require.Len(t, exchanges, 2)

	// Document order, not key order
	assert.Equal(t, "Binance", exchanges[0].Name)
	assert.Equal(t, "Kraken", exchanges[1].Name)
	assert.Equal(t, 1167, exchanges[0].ActivePairs)
	assert.InDelta(t, 30.0, exchanges[0].Volume(), 1e-9)
}

func TestFetchUpstreamFailure(t *testing.T) {
	upstream := mock.NewUpstreamServer(nil, nil)
	upstream.FailTickers(true)
	upstream.FailExchanges(true)
	client := newTestClient(t, upstream)

	_, err := client.FetchCoins(context.Background())
	assert.ErrorContains(t, err, "unexpected status code 500")

	_, err = client.FetchExchanges(context.Background())
	assert.ErrorContains(t, err, "unexpected status code 500")
}

func TestFetchCancelledContext(t *testing.T) {
	client := newTestClient(t, mock.NewUpstreamServer(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchCoins(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := NewClientWithConfig(Config{CoinsURL: srv.URL, UserAgent: "test-agent"})
	coins, err := client.FetchCoins(context.Background())

	require.NoError(t, err)
	assert.Empty(t, coins)
	assert.Equal(t, "test-agent", gotUA)
}

func TestParseCoins(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedLen int
		expectError bool
	}{
		{
			name:        "valid payload",
			body:        `{"data":[{"id":"90","rank":1,"name":"Bitcoin","symbol":"BTC","price_usd":"2"},{"id":"80","rank":2,"name":"Ethereum","symbol":"ETH","price_usd":"4"}]}`,
			expectedLen: 2,
		},
		{
			name:        "empty data",
			body:        `{"data":[]}`,
			expectedLen: 0,
		},
		{
			name:        "missing data key",
			body:        `{"info":{}}`,
			expectError: true,
		},
		{
			name:        "malformed price",
			body:        `{"data":[{"id":"1","rank":1,"name":"Bad","symbol":"BAD","price_usd":"abc"}]}`,
			expectError: true,
		},
		{
			name:        "not json",
			body:        `<html>`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coins, err := ParseCoins([]byte(tt.body))

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, coins, tt.expectedLen)
		})
	}
}

func TestParseExchanges(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectedNames []string
		expectError   bool
		expectErrIs   error
	}{
		{
			name:          "keyed object",
			body:          `{"7":{"name":"A","volume_usd":10},"3":{"name":"B","volume_usd":"30"}}`,
			expectedNames: []string{"A", "B"},
		},
		{
			name:          "array",
			body:          `[{"name":"A","volume_usd":"10"},{"name":"B","volume_usd":30}]`,
			expectedNames: []string{"A", "B"},
		},
		{
			name:          "null volume",
			body:          `{"1":{"name":"A","volume_usd":null}}`,
			expectedNames: []string{"A"},
		},
		{
			name:          "empty object",
			body:          `{}`,
			expectedNames: []string{},
		},
		{
			name:        "malformed volume",
			body:        `{"1":{"name":"A","volume_usd":"lots"}}`,
			expectError: true,
		},
		{
			name:        "record is not an object",
			body:        `{"1":"A"}`,
			expectError: true,
			expectErrIs: ErrMalformedPayload,
		},
		{
			name:        "malformed active pairs",
			body:        `{"1":{"name":"A","volume_usd":1,"active_pairs":"many"}}`,
			expectError: true,
			expectErrIs: ErrMalformedPayload,
		},
		{
			name:        "scalar payload",
			body:        `"nope"`,
			expectError: true,
			expectErrIs: ErrMalformedPayload,
		},
		{
			name:        "empty body",
			body:        ``,
			expectError: true,
			expectErrIs: ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exchanges, err := ParseExchanges([]byte(tt.body))

			if tt.expectError {
				require.Error(t, err)
				if tt.expectErrIs != nil {
					assert.True(t, errors.Is(err, tt.expectErrIs), "expected %v, got %v", tt.expectErrIs, err)
				}
				return
			}

			require.NoError(t, err)
			names := make([]string, 0, len(exchanges))
			for _, ex := range exchanges {
				names = append(names, ex.Name)
			}
			assert.Equal(t, tt.expectedNames, names)
		})
	}
}

func TestParseExchangesUsesKeyAsID(t *testing.T) {
	exchanges, err := ParseExchanges([]byte(`{"42":{"name":"A","volume_usd":1},"43":{"id":43,"name":"B","volume_usd":2}}`))

	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, "42", exchanges[0].ID)
	assert.Equal(t, "43", exchanges[1].ID)
}
