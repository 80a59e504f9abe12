package pricing

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultCoins maps the seeded pairs onto CoinGecko ids.
var DefaultCoins = []config.CoinMapping{
	{Pair: "XXBTZUSD", Coin: "bitcoin", Currency: "usd"},
	{Pair: "XETHZUSD", Coin: "ethereum", Currency: "usd"},
	{Pair: "XXBTZAUD", Coin: "bitcoin", Currency: "aud"},
	{Pair: "XETHZAUD", Coin: "ethereum", Currency: "aud"},
}

// CoinGecko fetches spot prices from the CoinGecko simple price API.
type CoinGecko struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	coins   map[string]config.CoinMapping
	backoff time.Duration
}

var _ Source = (*CoinGecko)(nil)

// NewCoinGecko creates a new CoinGecko client.
func NewCoinGecko(cfg *config.CoinGecko, logger *zap.Logger) *CoinGecko {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Accept", "application/json")

	coins := cfg.Coins
	if len(coins) == 0 {
		coins = DefaultCoins
	}
	byPair := make(map[string]config.CoinMapping, len(coins))
	for _, c := range coins {
		byPair[c.Pair] = c
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &CoinGecko{
		client:  client,
		logger:  logger.Named("coingecko"),
		limiter: limiter,
		coins:   byPair,
		backoff: time.Second,
	}
}

// PriceFor fetches the current price of pair.
func (c *CoinGecko) PriceFor(ctx context.Context, pair string) (decimal.Decimal, error) {
	coin, ok := c.coins[pair]
	if !ok {
		return decimal.Zero, apperr.MarketData(fmt.Errorf("no coingecko mapping for %s", pair))
	}

	var prices map[string]map[string]decimal.Decimal
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("ids", coin.Coin).
		SetQueryParam("vs_currencies", coin.Currency).
		SetResult(&prices)

	if _, err := c.doRequest(ctx, http.MethodGet, "/simple/price", req); err != nil {
		c.logger.Error("Failed to get price", zap.String("pair", pair), zap.Error(err))
		return decimal.Zero, apperr.MarketData(fmt.Errorf("failed to get price for %s: %w", pair, err))
	}

	price, ok := prices[coin.Coin][strings.ToLower(coin.Currency)]
	if !ok {
		return decimal.Zero, apperr.MarketData(fmt.Errorf("coingecko returned no %s/%s price", coin.Coin, coin.Currency))
	}
	return checkPositive(pair, price)
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *CoinGecko) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.RawResponse != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}
		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
