package coinlore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/buger/jsonparser"
	"github.com/shopspring/decimal"
)

const (
	DefaultCoinsURL     = "https://api.coinlore.net/api/tickers/"
	DefaultExchangesURL = "https://api.coinlore.net/api/exchanges/"
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "criptoapi/1.0 (+https://github.com/AaronSotoPacheco/criptoapi)"
)

// ErrMalformedPayload is returned when a response body does not have the expected shape
var ErrMalformedPayload = errors.New("malformed payload")

// tickersResponse is the envelope of the tickers endpoint
type tickersResponse struct {
	Data []model.Coin `json:"data"`
}

// rawExchange mirrors one exchange record; id and active_pairs arrive as either strings or numbers
type rawExchange struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	VolumeUSD   decimal.Decimal `json:"volume_usd"`
	ActivePairs json.RawMessage `json:"active_pairs"`
	URL         string          `json:"url"`
	Country     string          `json:"country"`
}

// Config holds the upstream endpoints and transport settings
type Config struct {
	CoinsURL     string
	ExchangesURL string
	Timeout      time.Duration
	UserAgent    string
}

// DefaultConfig returns the public Coinlore endpoints
func DefaultConfig() Config {
	return Config{
		CoinsURL:     DefaultCoinsURL,
		ExchangesURL: DefaultExchangesURL,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
	}
}

// Client fetches coin tickers and exchanges from the Coinlore API
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a client for the public Coinlore API
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom endpoints; empty fields fall back to defaults
func NewClientWithConfig(config Config) *Client {
	def := DefaultConfig()
	if config.CoinsURL == "" {
		config.CoinsURL = def.CoinsURL
	}
	if config.ExchangesURL == "" {
		config.ExchangesURL = def.ExchangesURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// FetchCoins retrieves the ticker list. The API already ranks and bounds it.
func (c *Client) FetchCoins(ctx context.Context) ([]model.Coin, error) {
	body, err := c.get(ctx, c.config.CoinsURL)
	if err != nil {
		return nil, err
	}

	return ParseCoins(body)
}

// FetchExchanges retrieves the exchange collection, normalized to a list
func (c *Client) FetchExchanges(ctx context.Context) ([]model.Exchange, error) {
	body, err := c.get(ctx, c.config.ExchangesURL)
	if err != nil {
		return nil, err
	}

	return ParseExchanges(body)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

// ParseCoins decodes a tickers payload of the form {"data": [...]}
func ParseCoins(body []byte) ([]model.Coin, error) {
	var resp tickersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("decode tickers: missing data key: %w", ErrMalformedPayload)
	}

	return resp.Data, nil
}

// ParseExchanges decodes an exchanges payload. A keyed object is turned into
// a list in document order; an array is accepted as-is.
func ParseExchanges(body []byte) ([]model.Exchange, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode exchanges: empty body: %w", ErrMalformedPayload)
	}

	var exchanges []model.Exchange
	var decodeErr error

	collect := func(key string, value []byte, dataType jsonparser.ValueType) {
		if decodeErr != nil {
			return
		}
		if dataType != jsonparser.Object {
			decodeErr = fmt.Errorf("decode exchanges: record %q is not an object: %w", key, ErrMalformedPayload)
			return
		}

		ex, err := parseExchange(value)
		if err != nil {
			decodeErr = fmt.Errorf("decode exchanges: record %q: %w", key, err)
			return
		}
		if ex.ID == "" {
			ex.ID = key
		}
		exchanges = append(exchanges, ex)
	}

	switch trimmed[0] {
	case '{':
		err := jsonparser.ObjectEach(trimmed, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
			collect(string(key), value, dataType)
			return decodeErr
		})
		if err != nil {
			if decodeErr != nil {
				return nil, decodeErr
			}
			return nil, fmt.Errorf("decode exchanges: %w", err)
		}
	case '[':
		index := 0
		_, err := jsonparser.ArrayEach(trimmed, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
			collect(strconv.Itoa(index), value, dataType)
			index++
		})
		if err != nil {
			return nil, fmt.Errorf("decode exchanges: %w", err)
		}
		if decodeErr != nil {
			return nil, decodeErr
		}
	default:
		return nil, fmt.Errorf("decode exchanges: unexpected payload: %w", ErrMalformedPayload)
	}

	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	return exchanges, nil
}

func parseExchange(value []byte) (model.Exchange, error) {
	var raw rawExchange
	if err := json.Unmarshal(value, &raw); err != nil {
		return model.Exchange{}, err
	}

	pairs, err := parseActivePairs(unquote(raw.ActivePairs))
	if err != nil {
		return model.Exchange{}, err
	}

	return model.Exchange{
		ID:          unquote(raw.ID),
		Name:        raw.Name,
		VolumeUSD:   raw.VolumeUSD,
		ActivePairs: pairs,
		URL:         raw.URL,
		Country:     raw.Country,
	}, nil
}

func parseActivePairs(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	pairs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("active_pairs %q: %w", s, ErrMalformedPayload)
	}
	return pairs, nil
}

func unquote(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
