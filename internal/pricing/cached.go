package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cacheEntry struct {
	price   decimal.Decimal
	fetched time.Time
}

// Cached remembers each pair's price for ttl. Errors are not cached.
type Cached struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(source Source, ttl time.Duration) *Cached {
	return &Cached{source: source, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cached) PriceFor(ctx context.Context, pair string) (decimal.Decimal, error) {
	c.mu.Lock()
	entry, ok := c.entries[pair]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.price, nil
	}

	price, err := c.source.PriceFor(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.entries[pair] = cacheEntry{price: price, fetched: c.now()}
	c.mu.Unlock()
	return price, nil
}

// Fallback asks primary first and secondary when primary fails.
type Fallback struct {
	primary   Source
	secondary Source
	logger    *zap.Logger
}

func NewFallback(primary, secondary Source, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger.Named("pricing")}
}

func (f *Fallback) PriceFor(ctx context.Context, pair string) (decimal.Decimal, error) {
	price, err := f.primary.PriceFor(ctx, pair)
	if err == nil {
		return price, nil
	}
	f.logger.Warn("Primary price source failed, using fallback", zap.String("pair", pair), zap.Error(err))
	return f.secondary.PriceFor(ctx, pair)
}
