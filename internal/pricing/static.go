package pricing

import (
	"context"
	"fmt"
	"sync"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"

	"github.com/shopspring/decimal"
)

// DefaultStaticPrices is used when no static prices are configured.
var DefaultStaticPrices = []config.StaticPrice{
	{Pair: "XXBTZUSD", Price: "30000"},
	{Pair: "XETHZUSD", Price: "2000"},
	{Pair: "XXBTZAUD", Price: "45000"},
	{Pair: "XETHZAUD", Price: "3000"},
}

// Static serves fixed prices.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices []config.StaticPrice) (*Static, error) {
	if len(prices) == 0 {
		prices = DefaultStaticPrices
	}
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for _, p := range prices {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid static price for %s: %w", p.Pair, err)
		}
		s.prices[p.Pair] = price
	}
	return s, nil
}

func (s *Static) PriceFor(_ context.Context, pair string) (decimal.Decimal, error) {
	s.mu.RLock()
	price, ok := s.prices[pair]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, apperr.MarketData(fmt.Errorf("no price for %s", pair))
	}
	return checkPositive(pair, price)
}

// Set replaces the price of a pair.
func (s *Static) Set(pair string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[pair] = price
}
