package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listLimit = 100

// APIHandler holds dependencies for the dashboard endpoints. All of them are
// read-only.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
	now func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, now: time.Now}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > listLimit {
		return listLimit
	}
	return n
}

// StatusHandler reports row counts per table.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int64{}
	tables := map[string]interface{}{
		"credentials": &models.Credential{},
		"orders":      &models.Order{},
		"trades":      &models.Trade{},
		"amendments":  &models.Amendment{},
	}
	for name, model := range tables {
		var n int64
		if err := h.db.WithContext(r.Context()).Model(model).Count(&n).Error; err != nil {
			h.log.Error("Failed to count rows", zap.String("table", name), zap.Error(err))
			http.Error(w, "Failed to get status", http.StatusInternalServerError)
			return
		}
		counts[name] = n
	}
	h.writeJSON(w, map[string]interface{}{"status": "online", "counts": counts})
}

// CredentialView is a credential with its secret masked.
type CredentialView struct {
	Key       string    `json:"key"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// CredentialsHandler lists API keys.
func (h *APIHandler) CredentialsHandler(w http.ResponseWriter, r *http.Request) {
	var creds []models.Credential
	if err := h.db.WithContext(r.Context()).Order("id").Find(&creds).Error; err != nil {
		h.log.Error("Failed to get credentials from database", zap.Error(err))
		http.Error(w, "Failed to get credentials", http.StatusInternalServerError)
		return
	}
	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, CredentialView{Key: c.Key, Secret: maskSecret(c.Secret), CreatedAt: c.CreatedAt})
	}
	h.writeJSON(w, views)
}

// BalanceView is one balance row.
type BalanceView struct {
	Key       string    `json:"key"`
	Asset     string    `json:"asset"`
	Quantity  string    `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalancesHandler lists balances, optionally for a single key.
func (h *APIHandler) BalancesHandler(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Order("credential_key").Order("asset_symbol")
	if key := r.URL.Query().Get("key"); key != "" {
		q = q.Where("credential_key = ?", key)
	}
	var balances []models.Balance
	if err := q.Find(&balances).Error; err != nil {
		h.log.Error("Failed to get balances from database", zap.Error(err))
		http.Error(w, "Failed to get balances", http.StatusInternalServerError)
		return
	}
	views := make([]BalanceView, 0, len(balances))
	for _, b := range balances {
		views = append(views, BalanceView{Key: b.CredentialKey, Asset: b.AssetSymbol, Quantity: b.Quantity.String(), UpdatedAt: b.UpdatedAt})
	}
	h.writeJSON(w, views)
}

// OrdersHandler returns the most recent orders, optionally filtered by key
// and status.
func (h *APIHandler) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Order("id desc").Limit(limitParam(r))
	if key := r.URL.Query().Get("key"); key != "" {
		q = q.Where("credential_key = ?", key)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		h.log.Error("Failed to get orders from database", zap.Error(err))
		http.Error(w, "Failed to get orders", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, orders)
}

// TradesHandler returns the most recent trades.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Order("executed_at desc").Order("id desc").Limit(limitParam(r))
	if key := r.URL.Query().Get("key"); key != "" {
		q = q.Where("credential_key = ?", key)
	}
	var trades []models.Trade
	if err := q.Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, trades)
}

// StatsDetail holds trade statistics for a given period.
type StatsDetail struct {
	TotalTrades int64  `json:"total_trades"`
	BuyTrades   int64  `json:"buy_trades"`
	SellTrades  int64  `json:"sell_trades"`
	TotalVolume string `json:"total_volume"`
	TotalFees   string `json:"total_fees"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

type tally struct {
	trades, buys, sells int64
	volume, fees        decimal.Decimal
}

func (t *tally) add(trade models.Trade) {
	t.trades++
	if trade.Side == models.SideBuy {
		t.buys++
	} else {
		t.sells++
	}
	t.volume = t.volume.Add(trade.Cost)
	t.fees = t.fees.Add(trade.Fee)
}

func (t tally) detail() StatsDetail {
	return StatsDetail{
		TotalTrades: t.trades,
		BuyTrades:   t.buys,
		SellTrades:  t.sells,
		TotalVolume: t.volume.String(),
		TotalFees:   t.fees.String(),
	}
}

// StatisticsHandler sums trade counts, quote volume and fees.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.WithContext(r.Context()).Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := h.now().Add(-24 * time.Hour)
	var day, all tally
	for _, trade := range trades {
		all.add(trade)
		if trade.ExecutedAt.After(since24h) {
			day.add(trade)
		}
	}

	h.writeJSON(w, StatisticsResponse{
		Since24h: day.detail(),
		AllTime:  all.detail(),
	})
}
