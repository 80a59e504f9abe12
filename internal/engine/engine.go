// Package engine implements the order state machine. Orders are either open or
// closed; every transition runs in one database transaction together with any
// trade and balance change it causes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/catalog"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/models"
	"kraken-sandbox-go/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order state error codes.
const (
	CodeCannotCancelClosed = "EOrder:Cannot cancel closed order"
	CodeCannotEditClosed   = "EOrder:Cannot edit closed order"
	CodeCannotAmendClosed  = "EOrder:Cannot amend closed order"
	CodeCannotEditMarket   = "EOrder:Cannot edit market order"
	CodeCannotAmendMarket  = "EOrder:Cannot amend market order"
	CodeDuplicateClientID  = "EOrder:Duplicate cl_ord_id"
	CodeNoParametersToEdit = "EGeneral:No parameters to edit"
)

const (
	amountPlaces = 8
	pageSize     = 50
)

// Engine is the order engine.
type Engine struct {
	db         *gorm.DB
	catalog    *catalog.Catalog
	ledger     *ledger.Ledger
	prices     pricing.Source
	policy     FillPolicy
	feePercent decimal.Decimal
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPolicy replaces the fill policy built from configuration.
func WithPolicy(p FillPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine creates an engine. cfg supplies the fill band and the fallback
// taker fee for pairs without a fee schedule.
func NewEngine(db *gorm.DB, cat *catalog.Catalog, l *ledger.Ledger, prices pricing.Source, cfg *config.Engine, logger *zap.Logger, opts ...Option) (*Engine, error) {
	band, err := decimal.NewFromString(cfg.FillBand)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.fill_band %q: %w", cfg.FillBand, err)
	}
	if band.IsNegative() {
		return nil, fmt.Errorf("engine.fill_band must not be negative")
	}
	fee, err := decimal.NewFromString(cfg.FeePercent)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.fee_percent %q: %w", cfg.FeePercent, err)
	}

	e := &Engine{
		db:         db,
		catalog:    cat,
		ledger:     l,
		prices:     prices,
		policy:     BandPolicy{Band: band},
		feePercent: fee,
		logger:     logger.Named("engine"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// referencePrice fetches R for a pair. Must be called outside a transaction.
func (e *Engine) referencePrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	price, err := e.prices.PriceFor(ctx, pair)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.MarketData(err)
		}
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, apperr.MarketData(fmt.Errorf("non-positive reference price %s for %s", price.String(), pair))
	}
	return price, nil
}

func (e *Engine) takerPercent(pair models.AssetPair) decimal.Decimal {
	if pct, ok := pair.TakerFeePercent(); ok {
		return pct
	}
	return e.feePercent
}

// fill closes an open order at price, records its trade and moves balances.
// The status change is guarded so only one transition can ever close an order.
func (e *Engine) fill(tx *gorm.DB, order *models.Order, pair models.AssetPair, price decimal.Decimal, closedCode string) (*models.Trade, error) {
	now := e.now()
	cost := price.Mul(order.Volume).Round(amountPlaces)
	fee := cost.Mul(e.takerPercent(pair)).Div(decimal.NewFromInt(100)).Round(amountPlaces)

	ok, err := closeOrder(tx, order, models.CloseReasonFilled, now, map[string]interface{}{
		"executed_volume": order.Volume,
		"cost":            cost,
		"fee":             fee,
		"avg_price":       price,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.State(closedCode)
	}
	order.ExecutedVolume = order.Volume
	order.Cost = cost
	order.Fee = fee
	order.AvgPrice = price

	trade := models.Trade{
		TradeID:       newTradeID(),
		OrderID:       order.OrderID,
		CredentialKey: order.CredentialKey,
		PairName:      order.PairName,
		Side:          order.Side,
		OrderType:     order.OrderType,
		Price:         price,
		Cost:          cost,
		Fee:           fee,
		Volume:        order.Volume,
		ExecutedAt:    now,
	}
	if err := tx.Create(&trade).Error; err != nil {
		return nil, fmt.Errorf("failed to record trade: %w", err)
	}

	err = e.ledger.ApplyFill(tx, ledger.Fill{
		CredentialKey: order.CredentialKey,
		Base:          pair.BaseSymbol,
		Quote:         pair.QuoteSymbol,
		Side:          order.Side,
		Volume:        order.Volume,
		Cost:          cost,
		Fee:           fee,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Order filled",
		zap.String("order_id", order.OrderID),
		zap.String("trade_id", trade.TradeID),
		zap.String("pair", order.PairName),
		zap.String("side", order.Side),
		zap.String("volume", order.Volume.String()),
		zap.String("price", price.String()),
	)
	return &trade, nil
}

// closeOrder moves an order from open to closed. It reports false when the
// order was no longer open.
func closeOrder(tx *gorm.DB, order *models.Order, reason string, at time.Time, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":    models.OrderStatusClosed,
		"reason":    reason,
		"closed_at": at,
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.Order{}).
		Where("order_id = ? AND status = ?", order.OrderID, models.OrderStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to close order %s: %w", order.OrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	order.Status = models.OrderStatusClosed
	order.Reason = reason
	order.ClosedAt = &at
	return true, nil
}

// OrderRef identifies an order by id, client order id or user reference.
// The first non-empty field wins.
type OrderRef struct {
	TxID          string
	ClientOrderID string
	UserRef       *int64
}

func (r OrderRef) empty() bool {
	return r.TxID == "" && r.ClientOrderID == "" && r.UserRef == nil
}

// findOrder loads one of the caller's orders. With lock set the row is read
// FOR UPDATE where the database supports it.
func findOrder(db *gorm.DB, credentialKey string, ref OrderRef, lock bool) (*models.Order, error) {
	q := db.Where("credential_key = ?", credentialKey)
	switch {
	case ref.TxID != "":
		q = q.Where("order_id = ?", ref.TxID)
	case ref.ClientOrderID != "":
		q = q.Where("client_order_id = ?", ref.ClientOrderID).Order("id desc")
	case ref.UserRef != nil:
		q = q.Where("user_ref = ?", *ref.UserRef).Order("id desc")
	default:
		return nil, apperr.InvalidArgument("txid")
	}
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	err := q.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.CodeUnknownOrder)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}
