package server

import (
	"net/http"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/engine"
	"kraken-sandbox-go/internal/models"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	cred := credentialFrom(r.Context())

	balances, err := s.deps.Ledger.All(r.Context(), cred.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	assets, err := s.deps.Catalog.AllAssets(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	decimals := make(map[string]int32, len(assets))
	for _, a := range assets {
		decimals[a.Symbol] = a.Decimals
	}

	result := make(map[string]string, len(balances))
	for _, b := range balances {
		places, ok := decimals[b.AssetSymbol]
		if !ok {
			places = 8
		}
		result[b.AssetSymbol] = b.Quantity.StringFixed(places)
	}
	s.respond(w, result)
}

// orderFilter reads the filters shared by the order listings.
func orderFilter(p params) (engine.OrderFilter, error) {
	f := engine.OrderFilter{ClientOrderID: p.str("cl_ord_id")}
	var err error
	if f.UserRef, err = p.optInt64("userref"); err != nil {
		return f, err
	}
	if f.Start, err = p.unixTime("start"); err != nil {
		return f, err
	}
	if f.End, err = p.unixTime("end"); err != nil {
		return f, err
	}
	if f.Offset, err = p.count("ofs", 0); err != nil {
		return f, err
	}
	return f, nil
}

// renderOrders keys orders by id. When withTrades is set each entry lists the
// ids of its trades.
func (s *Server) renderOrders(r *http.Request, key string, orders []models.Order, withTrades bool) (map[string]orderInfo, error) {
	pairs, err := s.pairIndex(r.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[string]orderInfo, len(orders))
	for _, o := range orders {
		var tradeIDs []string
		if withTrades {
			trades, err := s.deps.Engine.TradesForOrder(r.Context(), key, o.OrderID)
			if err != nil {
				return nil, err
			}
			for _, t := range trades {
				tradeIDs = append(tradeIDs, t.TradeID)
			}
		}
		out[o.OrderID] = newOrderInfo(o, pairs[o.PairName], tradeIDs)
	}
	return out, nil
}

func (s *Server) renderTrades(r *http.Request, trades []models.Trade) (map[string]tradeInfo, error) {
	pairs, err := s.pairIndex(r.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[string]tradeInfo, len(trades))
	for _, t := range trades {
		out[t.TradeID] = newTradeInfo(t, pairs[t.PairName])
	}
	return out, nil
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	f, err := orderFilter(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.deps.Engine.OpenOrders(r.Context(), cred.Key, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	open, err := s.renderOrders(r, cred.Key, orders, p.flag("trades"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"open": open})
}

func (s *Server) handleClosedOrders(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	f, err := orderFilter(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, count, err := s.deps.Engine.ClosedOrders(r.Context(), cred.Key, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	closed, err := s.renderOrders(r, cred.Key, orders, p.flag("trades"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"closed": closed, "count": count})
}

func (s *Server) handleQueryOrders(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	userRef, err := p.optInt64("userref")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids := p.list("txid")
	if len(ids) == 0 && userRef == nil {
		s.fail(w, r, apperr.InvalidArgument("txid"))
		return
	}
	orders, err := s.deps.Engine.QueryOrders(r.Context(), cred.Key, ids, userRef)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.renderOrders(r, cred.Key, orders, p.flag("trades"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, result)
}

func (s *Server) handleQueryTrades(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	ids := p.list("txid")
	if len(ids) == 0 {
		s.fail(w, r, apperr.InvalidArgument("txid"))
		return
	}
	trades, err := s.deps.Engine.QueryTrades(r.Context(), cred.Key, ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.renderTrades(r, trades)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, result)
}

func (s *Server) handleTradesHistory(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	var (
		f   engine.TradeFilter
		err error
	)
	if f.Start, err = p.unixTime("start"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.End, err = p.unixTime("end"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.Offset, err = p.count("ofs", 0); err != nil {
		s.fail(w, r, err)
		return
	}

	// Sandbox trades never open or close positions.
	switch p.str("type") {
	case "", "all", "no position":
	case "any position", "closed position", "closing position":
		s.respond(w, map[string]interface{}{"trades": map[string]tradeInfo{}, "count": 0})
		return
	default:
		s.fail(w, r, apperr.InvalidArgument("type"))
		return
	}

	trades, count, err := s.deps.Engine.TradesHistory(r.Context(), cred.Key, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rendered, err := s.renderTrades(r, trades)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"trades": rendered, "count": count})
}

func (s *Server) handleOrderAmends(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	orderID, err := p.required("order_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amends, err := s.deps.Engine.OrderAmends(r.Context(), cred.Key, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(amends))
	for _, a := range amends {
		out = append(out, map[string]interface{}{
			"amend_id":    a.AmendID,
			"amend_type":  "user",
			"order_qty":   a.NewVolume.String(),
			"limit_price": a.NewLimitPrice.String(),
			"timestamp":   a.AmendedAt.UnixMilli(),
		})
	}
	s.respond(w, map[string]interface{}{"amends": out, "count": len(out)})
}
