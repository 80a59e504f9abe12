package server

import (
	"context"
	"net/http"

	"kraken-sandbox-go/internal/engine"
	"kraken-sandbox-go/internal/models"
)

// orderDescr is the nested description of an order.
type orderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Price2    string `json:"price2"`
	Leverage  string `json:"leverage"`
	Order     string `json:"order"`
	Close     string `json:"close"`
}

// orderInfo is the wire form of an order in listings.
type orderInfo struct {
	RefID      *string    `json:"refid"`
	UserRef    *int64     `json:"userref"`
	ClOrdID    string     `json:"cl_ord_id,omitempty"`
	Status     string     `json:"status"`
	Reason     *string    `json:"reason"`
	OpenTime   float64    `json:"opentm"`
	CloseTime  float64    `json:"closetm,omitempty"`
	StartTime  int        `json:"starttm"`
	ExpireTime int        `json:"expiretm"`
	Descr      orderDescr `json:"descr"`
	Volume     string     `json:"vol"`
	VolumeExec string     `json:"vol_exec"`
	Cost       string     `json:"cost"`
	Fee        string     `json:"fee"`
	Price      string     `json:"price"`
	StopPrice  string     `json:"stopprice"`
	LimitPrice string     `json:"limitprice"`
	Misc       string     `json:"misc"`
	OFlags     string     `json:"oflags"`
	Trades     []string   `json:"trades,omitempty"`
}

// tradeInfo is the wire form of a trade in listings.
type tradeInfo struct {
	OrderTxID string  `json:"ordertxid"`
	PosTxID   string  `json:"postxid"`
	Pair      string  `json:"pair"`
	Time      float64 `json:"time"`
	Type      string  `json:"type"`
	OrderType string  `json:"ordertype"`
	Price     string  `json:"price"`
	Cost      string  `json:"cost"`
	Fee       string  `json:"fee"`
	Volume    string  `json:"vol"`
	Margin    string  `json:"margin"`
	Misc      string  `json:"misc"`
}

func newOrderInfo(o models.Order, pair models.AssetPair, trades []string) orderInfo {
	info := orderInfo{
		UserRef:  o.UserRef,
		ClOrdID:  o.ClientOrderID,
		Status:   o.Status,
		OpenTime: unixSeconds(o.OpenedAt),
		Descr: orderDescr{
			Pair:      pair.AltName,
			Type:      o.Side,
			OrderType: o.OrderType,
			Price:     o.LimitPrice.StringFixed(pair.PairDecimals),
			Price2:    o.SecondaryPrice.StringFixed(pair.PairDecimals),
			Leverage:  "none",
			Order:     engine.Describe(&o, pair),
		},
		Volume:     o.Volume.StringFixed(8),
		VolumeExec: o.ExecutedVolume.StringFixed(8),
		Cost:       o.Cost.StringFixed(8),
		Fee:        o.Fee.StringFixed(8),
		Price:      o.AvgPrice.StringFixed(pair.PairDecimals),
		StopPrice:  "0.00000",
		LimitPrice: "0.00000",
		OFlags:     "fciq",
		Trades:     trades,
	}
	if o.Reason != "" {
		reason := o.Reason
		info.Reason = &reason
	}
	if o.ClosedAt != nil {
		info.CloseTime = unixSeconds(*o.ClosedAt)
	}
	return info
}

func newTradeInfo(t models.Trade, pair models.AssetPair) tradeInfo {
	return tradeInfo{
		OrderTxID: t.OrderID,
		Pair:      pair.PairName,
		Time:      unixSeconds(t.ExecutedAt),
		Type:      t.Side,
		OrderType: t.OrderType,
		Price:     t.Price.StringFixed(pair.PairDecimals),
		Cost:      t.Cost.StringFixed(8),
		Fee:       t.Fee.StringFixed(8),
		Volume:    t.Volume.StringFixed(8),
		Margin:    "0.00000",
	}
}

// pairIndex maps pair names to catalog entries for rendering listings.
func (s *Server) pairIndex(ctx context.Context) (map[string]models.AssetPair, error) {
	pairs, err := s.deps.Catalog.AllPairs(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]models.AssetPair, len(pairs))
	for _, p := range pairs {
		index[p.PairName] = p
	}
	return index, nil
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	req := engine.AddOrderRequest{
		Side:          p.str("type"),
		OrderType:     p.str("ordertype"),
		ClientOrderID: p.str("cl_ord_id"),
		Validate:      p.flag("validate"),
	}
	var err error
	if req.Pair, err = p.required("pair"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Volume, err = p.amount("volume"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Price, err = p.amount("price"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Price2, err = p.amount("price2"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.UserRef, err = p.optInt64("userref"); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.deps.Engine.AddOrder(r.Context(), cred.Key, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result := map[string]interface{}{
		"descr": map[string]string{"order": res.Description},
	}
	if ids := res.TxIDs(); ids != nil {
		result["txid"] = ids
	}
	s.respond(w, result)
}

func orderRef(p params) engine.OrderRef {
	return engine.OrderRef{TxID: p.str("txid"), ClientOrderID: p.str("cl_ord_id")}
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	n, err := s.deps.Engine.CancelOrder(r.Context(), cred.Key, orderRef(p))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"count": n})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	cred := credentialFrom(r.Context())

	n, err := s.deps.Engine.CancelAll(r.Context(), cred.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"count": n})
}

func (s *Server) handleEditOrder(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	req := engine.EditOrderRequest{
		OrderRef: engine.OrderRef{TxID: p.str("txid")},
		Pair:     p.str("pair"),
		Validate: p.flag("validate"),
	}
	userRef, err := p.optInt64("userref")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Without a txid the userref selects the order; with one it relabels the
	// replacement.
	if req.TxID == "" {
		req.UserRef = userRef
	} else {
		req.NewUserRef = userRef
	}
	if req.Volume, err = p.optAmount("volume"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Price, err = p.optAmount("price"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Price2, err = p.optAmount("price2"); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.deps.Engine.EditOrder(r.Context(), cred.Key, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result := map[string]interface{}{
		"status":       "ok",
		"originaltxid": res.Original.OrderID,
		"descr":        map[string]string{"order": res.Description},
	}
	if res.Order != nil {
		result["txid"] = res.Order.OrderID
		result["volume"] = res.Order.Volume.String()
		result["price"] = res.Order.LimitPrice.String()
		result["price2"] = res.Order.SecondaryPrice.String()
		result["orders_cancelled"] = 1
		if res.Order.UserRef != nil {
			result["newuserref"] = *res.Order.UserRef
		}
	}
	if res.Original.UserRef != nil {
		result["olduserref"] = *res.Original.UserRef
	}
	s.respond(w, result)
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	p := paramsFrom(r)
	cred := credentialFrom(r.Context())

	req := engine.AmendOrderRequest{OrderRef: orderRef(p)}
	var err error
	if req.OrderQty, err = p.optAmount("order_qty"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.LimitPrice, err = p.optAmount("limit_price"); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TriggerPrice, err = p.optAmount("trigger_price"); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.deps.Engine.AmendOrder(r.Context(), cred.Key, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, map[string]interface{}{"amend_id": res.AmendID})
}
