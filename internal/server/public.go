package server

import (
	"math"
	"net/http"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/models"
)

const defaultDepth = 100

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	s.respond(w, map[string]interface{}{
		"unixtime": now.Unix(),
		"rfc1123":  now.Format("Mon, 02 Jan 06 15:04:05 -0700"),
	})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]interface{}{
		"status":    "online",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func assetInfo(a models.Asset) map[string]interface{} {
	return map[string]interface{}{
		"aclass":           "currency",
		"altname":          a.DisplayName,
		"decimals":         a.Decimals,
		"display_decimals": a.DisplayDecimals,
		"collateral_value": a.CollateralValue.InexactFloat64(),
		"status":           a.Status,
	}
}

func feeSchedule(tiers []models.FeeTier) [][]interface{} {
	out := make([][]interface{}, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, []interface{}{t.Volume, t.Percent})
	}
	return out
}

func pairInfo(p models.AssetPair) map[string]interface{} {
	return map[string]interface{}{
		"altname":              p.AltName,
		"wsname":               p.WSName,
		"aclass_base":          "currency",
		"base":                 p.BaseSymbol,
		"aclass_quote":         "currency",
		"quote":                p.QuoteSymbol,
		"lot":                  "unit",
		"cost_decimals":        p.CostDecimals,
		"pair_decimals":        p.PairDecimals,
		"lot_decimals":         p.LotDecimals,
		"lot_multiplier":       1,
		"leverage_buy":         p.LeverageBuy,
		"leverage_sell":        p.LeverageSell,
		"fees":                 feeSchedule(p.Fees),
		"fees_maker":           feeSchedule(p.FeesMaker),
		"fee_volume_currency":  p.FeeVolumeCurrency,
		"margin_call":          p.MarginCall,
		"margin_stop":          p.MarginStop,
		"ordermin":             p.OrderMin.String(),
		"costmin":              p.CostMin.String(),
		"tick_size":            p.TickSize.String(),
		"status":               p.Status,
		"long_position_limit":  p.LongPositionLimit,
		"short_position_limit": p.ShortPositionLimit,
	}
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	assets, err := s.deps.Catalog.Assets(r.Context(), p.list("asset")...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result := make(map[string]interface{}, len(assets))
	for _, a := range assets {
		result[a.Symbol] = assetInfo(a)
	}
	s.respond(w, result)
}

func (s *Server) handleAssetPairs(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	pairs, err := s.deps.Catalog.Pairs(r.Context(), p.list("pair")...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		result[pair.PairName] = pairInfo(pair)
	}
	s.respond(w, result)
}

// pairParam resolves the required pair parameter through the catalog.
func (s *Server) pairParam(r *http.Request, p params) (models.AssetPair, error) {
	name, err := p.required("pair")
	if err != nil {
		return models.AssetPair{}, err
	}
	return s.deps.Catalog.Pair(r.Context(), name)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	names := p.list("pair")
	if len(names) == 0 {
		s.fail(w, r, apperr.InvalidArgument("pair"))
		return
	}
	pairs, err := s.deps.Catalog.Pairs(r.Context(), names...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		tk, err := s.deps.Market.Ticker(r.Context(), pair)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		result[pair.PairName] = tk
	}
	s.respond(w, result)
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	pair, err := s.pairParam(r, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count, err := p.count("count", defaultDepth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	book, err := s.deps.Market.Depth(r.Context(), pair, count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{pair.PairName: book})
}

func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	pair, err := s.pairParam(r, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	interval, err := p.count("interval", 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	since, err := p.since("since")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	candles, last, err := s.deps.Market.OHLC(r.Context(), pair, interval, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{pair.PairName: candles, "last": last})
}

func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	pair, err := s.pairParam(r, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	since, err := p.since("since")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count, err := p.count("count", 1000)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trades, last, err := s.deps.Market.Trades(r.Context(), pair, since, count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{pair.PairName: trades, "last": last})
}

func (s *Server) handleSpread(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	pair, err := s.pairParam(r, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	since, err := p.since("since")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, last, err := s.deps.Market.Spread(r.Context(), pair, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{pair.PairName: entries, "last": last})
}

// unixSeconds renders a time the way Kraken does, as fractional seconds.
func unixSeconds(t time.Time) float64 {
	return math.Round(float64(t.UnixNano())/1e5) / 1e4
}
