// Package marketdata synthesizes public market data around the reference
// price. Nothing here is persisted; every call draws fresh random values.
package marketdata

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"kraken-sandbox-go/internal/models"
	"kraken-sandbox-go/internal/pricing"
)

const (
	MaxDepth      = 500
	MaxTrades     = 1000
	MaxCandles    = 720
	spreadEntries = 50
)

// Ticker mirrors the Kraken ticker object.
type Ticker struct {
	Ask    [3]string `json:"a"`
	Bid    [3]string `json:"b"`
	Last   [2]string `json:"c"`
	Volume [2]string `json:"v"`
	VWAP   [2]string `json:"p"`
	Trades [2]int    `json:"t"`
	Low    [2]string `json:"l"`
	High   [2]string `json:"h"`
	Open   string    `json:"o"`
}

// Book is one side pair of an order book snapshot. Levels are
// [price, volume, timestamp].
type Book struct {
	Asks [][]interface{} `json:"asks"`
	Bids [][]interface{} `json:"bids"`
}

type Synthesizer struct {
	prices pricing.Source
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func New(prices pricing.Source) *Synthesizer {
	return &Synthesizer{
		prices: prices,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// between returns a uniform value in [lo, hi).
func (s *Synthesizer) between(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Synthesizer) reference(ctx context.Context, pair models.AssetPair) (float64, error) {
	price, err := s.prices.PriceFor(ctx, pair.PairName)
	if err != nil {
		return 0, err
	}
	return price.InexactFloat64(), nil
}

func priceString(pair models.AssetPair, v float64) string {
	return fmt.Sprintf("%.*f", pair.PairDecimals, v)
}

func volumeString(v float64) string {
	return fmt.Sprintf("%.8f", v)
}

// Ticker builds a 24h summary around the reference price.
func (s *Synthesizer) Ticker(ctx context.Context, pair models.AssetPair) (Ticker, error) {
	r, err := s.reference(ctx, pair)
	if err != nil {
		return Ticker{}, err
	}

	volume24h := s.between(100, 5000)
	volumeToday := volume24h * s.between(0.3, 0.8)
	trades24h := int(volume24h * s.between(5, 15))
	high24h := r * s.between(1.01, 1.05)
	low24h := r * s.between(0.95, 0.99)

	return Ticker{
		Ask:    [3]string{priceString(pair, r*1.0005), "1", "1.000"},
		Bid:    [3]string{priceString(pair, r*0.9995), "1", "1.000"},
		Last:   [2]string{priceString(pair, r), volumeString(s.between(0.00001, 0.1))},
		Volume: [2]string{volumeString(volumeToday), volumeString(volume24h)},
		VWAP:   [2]string{priceString(pair, r*s.between(0.99, 1.01)), priceString(pair, r*s.between(0.98, 1.02))},
		Trades: [2]int{int(float64(trades24h) * s.between(0.3, 0.8)), trades24h},
		Low:    [2]string{priceString(pair, max(low24h, r*s.between(0.97, 0.995))), priceString(pair, low24h)},
		High:   [2]string{priceString(pair, min(high24h, r*s.between(1.005, 1.03))), priceString(pair, high24h)},
		Open:   priceString(pair, r*s.between(0.97, 1.03)),
	}, nil
}

// Depth builds count levels on each side, stepping one basis point away from
// the reference per level.
func (s *Synthesizer) Depth(ctx context.Context, pair models.AssetPair, count int) (Book, error) {
	r, err := s.reference(ctx, pair)
	if err != nil {
		return Book{}, err
	}
	count = clamp(count, 1, MaxDepth)
	ts := s.now().Unix()

	book := Book{Asks: make([][]interface{}, 0, count), Bids: make([][]interface{}, 0, count)}
	for i := 1; i <= count; i++ {
		step := float64(i) * 0.0001
		book.Asks = append(book.Asks, []interface{}{priceString(pair, r*(1+step)), volumeString(s.between(0.1, 10)), ts})
		book.Bids = append(book.Bids, []interface{}{priceString(pair, r*(1-step)), volumeString(s.between(0.1, 10)), ts})
	}
	return book, nil
}

// OHLC builds candles of interval minutes ending now, as
// [time, open, high, low, close, vwap, volume, count]. since limits how far
// back the series reaches. It also returns the id of the last candle.
func (s *Synthesizer) OHLC(ctx context.Context, pair models.AssetPair, interval int, since int64) ([][]interface{}, int64, error) {
	r, err := s.reference(ctx, pair)
	if err != nil {
		return nil, 0, err
	}
	if interval <= 0 {
		interval = 1
	}
	now := s.now().Unix()
	step := int64(interval) * 60

	count := MaxCandles
	if since > 0 {
		count = clamp(int((now-since)/step), 1, MaxCandles)
	}

	candles := make([][]interface{}, 0, count)
	base := r
	for i := 0; i < count; i++ {
		at := now - int64(count-i)*step
		open := base * s.between(0.99, 1.01)
		high := open * s.between(1, 1.02)
		low := open * s.between(0.98, 1)
		closing := s.between(low, high)
		base = closing
		candles = append(candles, []interface{}{
			at,
			priceString(pair, open),
			priceString(pair, high),
			priceString(pair, low),
			priceString(pair, closing),
			priceString(pair, closing),
			volumeString(s.between(0.1, 10)),
			int(s.between(5, 100)),
		})
	}
	return candles, now - step, nil
}

// Trades builds recent public trades since the given unix time (default one
// hour ago) as [price, volume, time, side, type, misc, id].
func (s *Synthesizer) Trades(ctx context.Context, pair models.AssetPair, since int64, count int) ([][]interface{}, string, error) {
	r, err := s.reference(ctx, pair)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	if since <= 0 || since > now.Unix() {
		since = now.Unix() - 3600
	}
	count = clamp(count, 1, MaxTrades)
	span := now.Unix() - since

	trades := make([][]interface{}, 0, count)
	for i := 0; i < count; i++ {
		at := float64(since) + float64(int64(i)*span)/float64(count)
		side, kind := "s", "l"
		if s.between(0, 1) > 0.5 {
			side = "b"
		}
		if s.between(0, 1) > 0.8 {
			kind = "m"
		}
		trades = append(trades, []interface{}{
			priceString(pair, r*s.between(0.99, 1.01)),
			volumeString(s.between(0.001, 2)),
			at,
			side,
			kind,
			"",
			i + 1,
		})
	}
	return trades, fmt.Sprintf("%d", now.UnixNano()), nil
}

// Spread builds recent best bid/ask snapshots as [time, bid, ask].
func (s *Synthesizer) Spread(ctx context.Context, pair models.AssetPair, since int64) ([][]interface{}, int64, error) {
	r, err := s.reference(ctx, pair)
	if err != nil {
		return nil, 0, err
	}
	now := s.now().Unix()
	if since <= 0 || since > now {
		since = now - 3600
	}
	span := now - since

	entries := make([][]interface{}, 0, spreadEntries)
	for i := 0; i < spreadEntries; i++ {
		entries = append(entries, []interface{}{
			since + int64(i)*span/spreadEntries,
			priceString(pair, r*(1-s.between(0.001, 0.005))),
			priceString(pair, r*(1+s.between(0.001, 0.005))),
		})
	}
	return entries, now, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
