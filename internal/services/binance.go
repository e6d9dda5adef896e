package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"
)

// BinanceClient implements Transport against the Binance spot REST API.
// One attempt per call; retry policy lives with the scheduler, across
// cycles, never here.
type BinanceClient struct {
	endpoint string
	client   *http.Client
}

// NewBinanceClient creates a Binance market data client.
func NewBinanceClient(cfg *config.UpstreamConfig) *BinanceClient {
	return &BinanceClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// tickerResponse is the /api/v3/ticker/price payload. Binance returns
// the price as a decimal string.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchQuote fetches the current price for a symbol like "BTC/USDT".
func (b *BinanceClient) FetchQuote(ctx context.Context, symbol string) (models.Quote, error) {
	pair := normalizeSymbol(symbol)
	if pair == "" {
		return models.Quote{}, fmt.Errorf("invalid symbol %q", symbol)
	}

	reqURL := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.endpoint, url.QueryEscape(pair))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Quote{}, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return models.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("ticker request for %s returned status %d", pair, resp.StatusCode)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode ticker response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("unparseable price %q for %s: %w", ticker.Price, pair, err)
	}

	return models.Quote{
		Symbol: symbol,
		Price:  price,
		At:     time.Now().UTC(),
	}, nil
}

// IsHealthy checks if the upstream endpoint is responsive.
func (b *BinanceClient) IsHealthy(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, b.endpoint+"/api/v3/ping", nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream health check returned status %d", resp.StatusCode)
	}
	return nil
}

// normalizeSymbol maps "BTC/USDT" to Binance's "BTCUSDT" form.
func normalizeSymbol(symbol string) string {
	pair := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if pair == "" || strings.ContainsAny(pair, " \t") {
		return ""
	}
	return pair
}
