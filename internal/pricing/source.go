// Package pricing supplies the reference price the engine fills against.
package pricing

import (
	"context"
	"fmt"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SourceStatic    = "static"
	SourceCoinGecko = "coingecko"
)

// Source returns the current reference price for a canonical pair name.
// Implementations return a MarketData error when no positive price exists.
type Source interface {
	PriceFor(ctx context.Context, pair string) (decimal.Decimal, error)
}

// New builds the configured source. Live sources are cached and fall back to
// the static table when the upstream is unavailable.
func New(cfg *config.Pricing, logger *zap.Logger) (Source, error) {
	static, err := NewStatic(cfg.Static)
	if err != nil {
		return nil, err
	}

	switch cfg.Source {
	case "", SourceStatic:
		return static, nil
	case SourceCoinGecko:
		live := NewCoinGecko(&cfg.CoinGecko, logger)
		ttl := time.Duration(cfg.CacheTTL) * time.Second
		return NewFallback(NewCached(live, ttl), static, logger), nil
	default:
		return nil, fmt.Errorf("unknown pricing source %q", cfg.Source)
	}
}

func checkPositive(pair string, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, apperr.MarketData(fmt.Errorf("non-positive price %s for %s", price.String(), pair))
	}
	return price, nil
}
