package engine

import (
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
)

// FillPolicy decides whether an order executes immediately against the
// reference price.
type FillPolicy interface {
	Marketable(order *models.Order, reference decimal.Decimal) bool
}

// BandPolicy fills market orders always and limit orders whose price lies
// within Band (a fraction of the reference price, inclusive) of the reference.
type BandPolicy struct {
	Band decimal.Decimal
}

func (p BandPolicy) Marketable(order *models.Order, reference decimal.Decimal) bool {
	if order.OrderType == models.OrderTypeMarket {
		return true
	}
	if !reference.IsPositive() || !order.LimitPrice.IsPositive() {
		return false
	}
	// |limit - R| <= band * R, without dividing.
	return order.LimitPrice.Sub(reference).Abs().LessThanOrEqual(p.Band.Mul(reference))
}
