package engine

import (
	"context"
	"fmt"
	"time"

	"kraken-sandbox-go/internal/models"

	"gorm.io/gorm"
)

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	UserRef       *int64
	ClientOrderID string
	Start         *time.Time
	End           *time.Time
	Offset        int
}

// TradeFilter narrows the trade history. Zero values match everything.
type TradeFilter struct {
	Start  *time.Time
	End    *time.Time
	Offset int
}

// OpenOrders lists the caller's resting orders, newest first.
func (e *Engine) OpenOrders(ctx context.Context, credentialKey string, f OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	q := e.ownOrders(ctx, credentialKey).Where("status = ?", models.OrderStatusOpen)
	q = applyOrderFilter(q, f, "opened_at")
	if err := q.Order("id desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	return orders, nil
}

// ClosedOrders returns one page of the caller's closed orders, newest first,
// and the total number matching the filter.
func (e *Engine) ClosedOrders(ctx context.Context, credentialKey string, f OrderFilter) ([]models.Order, int64, error) {
	q := e.ownOrders(ctx, credentialKey).Where("status = ?", models.OrderStatusClosed)
	q = applyOrderFilter(q, f, "closed_at")

	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count closed orders: %w", err)
	}

	var orders []models.Order
	err := q.Order("closed_at desc").Order("id desc").Offset(f.Offset).Limit(pageSize).Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list closed orders: %w", err)
	}
	return orders, count, nil
}

// QueryOrders returns the caller's orders among ids. Unknown or foreign ids are
// left out.
func (e *Engine) QueryOrders(ctx context.Context, credentialKey string, ids []string, userRef *int64) ([]models.Order, error) {
	var orders []models.Order
	q := e.ownOrders(ctx, credentialKey)
	if len(ids) > 0 {
		q = q.Where("order_id IN ?", ids)
	}
	if userRef != nil {
		q = q.Where("user_ref = ?", *userRef)
	}
	if len(ids) == 0 && userRef == nil {
		return orders, nil
	}
	if err := q.Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

// QueryTrades returns the caller's trades among ids. A single id naming one
// of the caller's orders returns that order's trades instead.
func (e *Engine) QueryTrades(ctx context.Context, credentialKey string, ids []string) ([]models.Trade, error) {
	var trades []models.Trade
	if len(ids) == 0 {
		return trades, nil
	}
	if len(ids) == 1 {
		var n int64
		err := e.ownOrders(ctx, credentialKey).Where("order_id = ?", ids[0]).Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up order: %w", err)
		}
		if n > 0 {
			return e.TradesForOrder(ctx, credentialKey, ids[0])
		}
	}

	err := e.ownTrades(ctx, credentialKey).Where("trade_id IN ?", ids).Order("id").Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return trades, nil
}

// TradesForOrder returns the trades produced by one of the caller's orders.
func (e *Engine) TradesForOrder(ctx context.Context, credentialKey, orderID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := e.ownTrades(ctx, credentialKey).Where("order_id = ?", orderID).Order("id").Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for order: %w", err)
	}
	return trades, nil
}

// TradesHistory returns one page of the caller's trades, newest first, and the
// total number matching the filter.
func (e *Engine) TradesHistory(ctx context.Context, credentialKey string, f TradeFilter) ([]models.Trade, int64, error) {
	q := e.ownTrades(ctx, credentialKey)
	if f.Start != nil {
		q = q.Where("executed_at > ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("executed_at <= ?", f.End.UTC())
	}

	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	var trades []models.Trade
	err := q.Order("executed_at desc").Order("id desc").Offset(f.Offset).Limit(pageSize).Find(&trades).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, count, nil
}

// OrderAmends lists the amendments of one of the caller's orders, oldest first.
func (e *Engine) OrderAmends(ctx context.Context, credentialKey, orderID string) ([]models.Amendment, error) {
	if _, err := findOrder(e.db.WithContext(ctx), credentialKey, OrderRef{TxID: orderID}, false); err != nil {
		return nil, err
	}
	var amends []models.Amendment
	err := e.db.WithContext(ctx).
		Where("credential_key = ? AND order_id = ?", credentialKey, orderID).
		Order("id").
		Find(&amends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list amendments: %w", err)
	}
	return amends, nil
}

func (e *Engine) ownOrders(ctx context.Context, credentialKey string) *gorm.DB {
	return e.db.WithContext(ctx).Model(&models.Order{}).Where("credential_key = ?", credentialKey)
}

func (e *Engine) ownTrades(ctx context.Context, credentialKey string) *gorm.DB {
	return e.db.WithContext(ctx).Model(&models.Trade{}).Where("credential_key = ?", credentialKey)
}

func applyOrderFilter(q *gorm.DB, f OrderFilter, timeColumn string) *gorm.DB {
	if f.UserRef != nil {
		q = q.Where("user_ref = ?", *f.UserRef)
	}
	if f.ClientOrderID != "" {
		q = q.Where("client_order_id = ?", f.ClientOrderID)
	}
	if f.Start != nil {
		q = q.Where(timeColumn+" > ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where(timeColumn+" <= ?", f.End.UTC())
	}
	return q
}
