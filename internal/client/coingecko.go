package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// CoinGeckoClient handles communication with the CoinGecko API. All calls
// pass through a shared token bucket because the remote rate limit is
// account-wide, not per-symbol.
type CoinGeckoClient struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	gate          *tokenBucket
	retryAttempts int
	retryDelay    time.Duration
	logger        *zap.Logger
}

// NewCoinGeckoClient creates a new CoinGecko API client
func NewCoinGeckoClient(cfg config.CoinGeckoConfig, logger *zap.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		gate:          newTokenBucket(cfg.CallSpacing, 1),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logger,
	}
}

// GetSimplePrice retrieves the current price of one token in the given
// quote currency. Network-level failures are retried with a fixed delay;
// error responses and missing-price responses fail immediately.
func (c *CoinGeckoClient) GetSimplePrice(ctx context.Context, id, vsCurrency string) (float64, error) {
	var price float64

	operation := func() error {
		p, err := c.getSimplePriceOnce(ctx, id, vsCurrency)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		price = p
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(c.retryAttempts)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, err
	}
	return price, nil
}

func (c *CoinGeckoClient) getSimplePriceOnce(ctx context.Context, id, vsCurrency string) (float64, error) {
	if err := c.gate.wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: waiting for rate limit: %v", model.ErrUpstreamNetwork, err)
	}

	params := url.Values{}
	params.Add("ids", id)
	params.Add("vs_currencies", vsCurrency)
	if c.apiKey != "" {
		params.Add("x_cg_demo_api_key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/simple/price?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to fetch price from CoinGecko",
			zap.Error(err),
			zap.String("id", id))
		return 0, fmt.Errorf("%w: %v", model.ErrUpstreamNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("CoinGecko API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return 0, fmt.Errorf("%w: status code %d", model.ErrUpstreamRemote, resp.StatusCode)
	}

	// Response shape: {"bitcoin": {"usd": 35000.5}}
	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %v", model.ErrUpstreamData, err)
	}

	price, ok := body[id][vsCurrency]
	if !ok {
		c.logger.Warn("Price missing from CoinGecko response",
			zap.String("id", id),
			zap.String("vs_currency", vsCurrency))
		return 0, fmt.Errorf("%w: price for %s not in response", model.ErrUpstreamData, id)
	}
	return price, nil
}

// GetMarketChart retrieves up to days of daily historical prices for a
// token. Used by the backfill job; a single attempt, still gated by the
// shared bucket.
func (c *CoinGeckoClient) GetMarketChart(ctx context.Context, id string, days int) ([]model.PricePoint, error) {
	if err := c.gate.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limit: %v", model.ErrUpstreamNetwork, err)
	}

	params := url.Values{}
	params.Add("vs_currency", "usd")
	params.Add("days", strconv.Itoa(days))
	params.Add("interval", "daily")
	if c.apiKey != "" {
		params.Add("x_cg_demo_api_key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(id), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("CoinGecko market chart error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("%w: status code %d", model.ErrUpstreamRemote, resp.StatusCode)
	}

	// Response shape: {"prices": [[ms_timestamp, price], ...]}
	var body struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", model.ErrUpstreamData, err)
	}

	points := make([]model.PricePoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, model.PricePoint{
			Timestamp: time.UnixMilli(int64(pair[0])).UTC(),
			Price:     pair[1],
		})
	}
	return points, nil
}

// isRetryable reports whether the fetch failure is transport-level.
func isRetryable(err error) bool {
	return errors.Is(err, model.ErrUpstreamNetwork)
}
