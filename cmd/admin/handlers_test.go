package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupHandler(t *testing.T) *APIHandler {
	db, err := database.NewDatabase(&config.Database{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Credential{Key: "key-one", Secret: "c2VjcmV0LXNlY3JldC1zZWNyZXQ="}).Error)
	require.NoError(t, db.Create(&[]models.Balance{
		{CredentialKey: "key-one", AssetSymbol: "ZUSD", Quantity: decimal.RequireFromString("999969.922")},
		{CredentialKey: "key-one", AssetSymbol: "XXBT", Quantity: decimal.RequireFromString("100.001")},
	}).Error)
	trade := func(id, side, cost, fee string, at time.Time) models.Trade {
		return models.Trade{
			TradeID: id, OrderID: "O" + id, CredentialKey: "key-one", PairName: "XXBTZUSD",
			Side: side, OrderType: models.OrderTypeMarket, Price: decimal.NewFromInt(30000),
			Cost: decimal.RequireFromString(cost), Fee: decimal.RequireFromString(fee),
			Volume: decimal.RequireFromString("0.001"), ExecutedAt: at,
		}
	}
	require.NoError(t, db.Create(&[]models.Trade{
		trade("T1", models.SideBuy, "30", "0.078", now.Add(-time.Hour)),
		trade("T2", models.SideSell, "15", "0.039", now.Add(-48*time.Hour)),
	}).Error)

	h := NewAPIHandler(zap.NewNop(), db)
	h.now = func() time.Time { return now }
	return h
}

func get(t *testing.T, h *APIHandler, path string, out interface{}) {
	rec := httptest.NewRecorder()
	newMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestCredentialsHandler_MasksSecret(t *testing.T) {
	h := setupHandler(t)

	var creds []CredentialView
	get(t, h, "/api/credentials", &creds)

	require.Len(t, creds, 1)
	assert.Equal(t, "key-one", creds[0].Key)
	assert.Equal(t, "c2Vj...ZXQ=", creds[0].Secret)
}

func TestBalancesHandler(t *testing.T) {
	h := setupHandler(t)

	var balances []BalanceView
	get(t, h, "/api/balances?key=key-one", &balances)
	require.Len(t, balances, 2)
	assert.Equal(t, "XXBT", balances[0].Asset)
	assert.Equal(t, "100.001", balances[0].Quantity)

	get(t, h, "/api/balances?key=someone-else", &balances)
	assert.Empty(t, balances)
}

func TestTradesHandler_NewestFirst(t *testing.T) {
	h := setupHandler(t)

	var trades []models.Trade
	get(t, h, "/api/trades", &trades)

	require.Len(t, trades, 2)
	assert.Equal(t, "T1", trades[0].TradeID)

	get(t, h, "/api/trades?limit=1", &trades)
	assert.Len(t, trades, 1)
}

func TestStatisticsHandler(t *testing.T) {
	h := setupHandler(t)

	var stats StatisticsResponse
	get(t, h, "/api/statistics", &stats)

	assert.Equal(t, int64(2), stats.AllTime.TotalTrades)
	assert.Equal(t, int64(1), stats.AllTime.BuyTrades)
	assert.Equal(t, int64(1), stats.AllTime.SellTrades)
	assert.Equal(t, "45", stats.AllTime.TotalVolume)
	assert.Equal(t, "0.117", stats.AllTime.TotalFees)

	assert.Equal(t, int64(1), stats.Since24h.TotalTrades)
	assert.Equal(t, "30", stats.Since24h.TotalVolume)
}

func TestStatusHandler(t *testing.T) {
	h := setupHandler(t)

	var status struct {
		Status string           `json:"status"`
		Counts map[string]int64 `json:"counts"`
	}
	get(t, h, "/api/status", &status)

	assert.Equal(t, "online", status.Status)
	assert.Equal(t, int64(1), status.Counts["credentials"])
	assert.Equal(t, int64(2), status.Counts["trades"])
	assert.Equal(t, int64(0), status.Counts["orders"])
}
