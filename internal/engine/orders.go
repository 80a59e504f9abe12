package engine

import (
	"context"
	"errors"
	"fmt"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddOrderRequest carries the parameters of a new order.
type AddOrderRequest struct {
	Pair          string
	Side          string
	OrderType     string
	Volume        decimal.Decimal
	Price         decimal.Decimal
	Price2        decimal.Decimal
	UserRef       *int64
	ClientOrderID string
	Validate      bool
}

// AddOrderResult is the outcome of AddOrder. Order is nil when only validating.
type AddOrderResult struct {
	Description string
	Order       *models.Order
	Trade       *models.Trade
}

// TxIDs returns the ids of the created orders.
func (r AddOrderResult) TxIDs() []string {
	if r.Order == nil {
		return nil
	}
	return []string{r.Order.OrderID}
}

// AddOrder validates and places an order, filling it at once when the fill
// policy says it is marketable.
func (e *Engine) AddOrder(ctx context.Context, credentialKey string, req AddOrderRequest) (AddOrderResult, error) {
	pair, err := e.catalog.Pair(ctx, req.Pair)
	if err != nil {
		return AddOrderResult{}, err
	}
	order := models.Order{
		CredentialKey:  credentialKey,
		PairName:       pair.PairName,
		Side:           req.Side,
		OrderType:      req.OrderType,
		LimitPrice:     req.Price,
		SecondaryPrice: req.Price2,
		Volume:         req.Volume,
		UserRef:        req.UserRef,
		ClientOrderID:  req.ClientOrderID,
	}
	if order.OrderType == models.OrderTypeMarket {
		order.LimitPrice = decimal.Zero
	}
	if err := validateOrder(&order, pair); err != nil {
		return AddOrderResult{}, err
	}

	result := AddOrderResult{Description: Describe(&order, pair)}
	if req.Validate {
		return result, nil
	}

	reference, err := e.referencePrice(ctx, pair.PairName)
	if err != nil {
		return AddOrderResult{}, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trade, err := e.create(tx, &order, pair, reference)
		result.Trade = trade
		return err
	})
	if err != nil {
		return AddOrderResult{}, err
	}

	result.Order = &order
	return result, nil
}

// create inserts a new open order and fills it when marketable. The store
// rejects a client order id already held by another of the caller's open
// orders.
func (e *Engine) create(tx *gorm.DB, order *models.Order, pair models.AssetPair, reference decimal.Decimal) (*models.Trade, error) {
	order.OrderID = newOrderID()
	order.Status = models.OrderStatusOpen
	order.OpenedAt = e.now()
	order.ExecutedVolume = decimal.Zero
	if err := tx.Create(order).Error; err != nil {
		if order.ClientOrderID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation(CodeDuplicateClientID, err)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if !e.policy.Marketable(order, reference) {
		e.logger.Info("Order resting",
			zap.String("order_id", order.OrderID),
			zap.String("pair", order.PairName),
			zap.String("limit", order.LimitPrice.String()),
			zap.String("reference", reference.String()),
		)
		return nil, nil
	}
	return e.fill(tx, order, pair, reference, CodeCannotCancelClosed)
}

func validateOrder(order *models.Order, pair models.AssetPair) error {
	switch order.Side {
	case models.SideBuy, models.SideSell:
	default:
		return apperr.InvalidArgument("type")
	}
	switch order.OrderType {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if !order.LimitPrice.IsPositive() {
			return apperr.InvalidArgument("price")
		}
	default:
		return apperr.InvalidArgument("ordertype")
	}
	if !order.Volume.IsPositive() {
		return apperr.InvalidArgument("volume")
	}
	if order.Volume.LessThan(pair.OrderMin) {
		return apperr.Validation(apperr.CodeOrderMinimum, fmt.Errorf("volume %s below %s", order.Volume.String(), pair.OrderMin.String()))
	}
	return nil
}

// Describe renders an order the way the order description field shows it,
// e.g. "buy 0.00100000 XBTUSD @ limit 27500.0".
func Describe(order *models.Order, pair models.AssetPair) string {
	head := fmt.Sprintf("%s %s %s @ ", order.Side, order.Volume.StringFixed(pair.LotDecimals), pair.AltName)
	if order.OrderType == models.OrderTypeMarket {
		return head + "market"
	}
	return head + "limit " + order.LimitPrice.StringFixed(pair.PairDecimals)
}

// CancelOrder closes one open order without a fill.
func (e *Engine) CancelOrder(ctx context.Context, credentialKey string, ref OrderRef) (int, error) {
	if ref.empty() {
		return 0, apperr.InvalidArgument("txid")
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := findOrder(tx, credentialKey, ref, true)
		if err != nil {
			return err
		}
		if !order.IsOpen() {
			return apperr.State(CodeCannotCancelClosed)
		}
		ok, err := closeOrder(tx, order, models.CloseReasonCanceled, e.now(), nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.State(CodeCannotCancelClosed)
		}
		e.logger.Info("Order canceled", zap.String("order_id", order.OrderID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// CancelAll closes every open order of the caller and returns how many.
func (e *Engine) CancelAll(ctx context.Context, credentialKey string) (int, error) {
	now := e.now()
	res := e.db.WithContext(ctx).Model(&models.Order{}).
		Where("credential_key = ? AND status = ?", credentialKey, models.OrderStatusOpen).
		Updates(map[string]interface{}{
			"status":    models.OrderStatusClosed,
			"reason":    models.CloseReasonCanceled,
			"closed_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel orders: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		e.logger.Info("Canceled all orders", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}

// EditOrderRequest replaces an open order. Nil fields inherit from the
// original order. At least one of the pair, volume and price fields must be
// set.
type EditOrderRequest struct {
	OrderRef
	Pair       string
	Volume     *decimal.Decimal
	Price      *decimal.Decimal
	Price2     *decimal.Decimal
	NewUserRef *int64
	Validate   bool
}

// EditOrderResult describes the replacement.
type EditOrderResult struct {
	Original    *models.Order
	Order       *models.Order
	Trade       *models.Trade
	Description string
}

// EditOrder closes an open order and creates its replacement atomically. The
// replacement goes through the same path as AddOrder and may fill at once.
func (e *Engine) EditOrder(ctx context.Context, credentialKey string, req EditOrderRequest) (EditOrderResult, error) {
	if req.empty() {
		return EditOrderResult{}, apperr.InvalidArgument("txid")
	}
	if req.Volume == nil && req.Price == nil && req.Price2 == nil && req.Pair == "" {
		return EditOrderResult{}, apperr.Validation(CodeNoParametersToEdit, nil)
	}
	original, err := findOrder(e.db.WithContext(ctx), credentialKey, req.OrderRef, false)
	if err != nil {
		return EditOrderResult{}, err
	}
	if !original.IsOpen() {
		return EditOrderResult{}, apperr.State(CodeCannotEditClosed)
	}
	if original.OrderType == models.OrderTypeMarket {
		return EditOrderResult{}, apperr.State(CodeCannotEditMarket)
	}

	pairName := original.PairName
	if req.Pair != "" {
		pairName = req.Pair
	}
	pair, err := e.catalog.Pair(ctx, pairName)
	if err != nil {
		return EditOrderResult{}, err
	}

	replacement := models.Order{
		CredentialKey:  credentialKey,
		PairName:       pair.PairName,
		Side:           original.Side,
		OrderType:      original.OrderType,
		LimitPrice:     original.LimitPrice,
		SecondaryPrice: original.SecondaryPrice,
		Volume:         original.Volume,
		UserRef:        original.UserRef,
		ClientOrderID:  original.ClientOrderID,
	}
	if req.Volume != nil {
		replacement.Volume = *req.Volume
	}
	if req.Price != nil {
		replacement.LimitPrice = *req.Price
	}
	if req.Price2 != nil {
		replacement.SecondaryPrice = *req.Price2
	}
	if req.NewUserRef != nil {
		replacement.UserRef = req.NewUserRef
	}
	if err := validateOrder(&replacement, pair); err != nil {
		return EditOrderResult{}, err
	}

	result := EditOrderResult{Original: original, Description: Describe(&replacement, pair)}
	if req.Validate {
		return result, nil
	}

	reference, err := e.referencePrice(ctx, pair.PairName)
	if err != nil {
		return EditOrderResult{}, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := closeOrder(tx, original, models.CloseReasonReplaced, e.now(), nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.State(CodeCannotEditClosed)
		}
		trade, err := e.create(tx, &replacement, pair, reference)
		result.Trade = trade
		return err
	})
	if err != nil {
		return EditOrderResult{}, err
	}

	e.logger.Info("Order replaced",
		zap.String("original", original.OrderID),
		zap.String("replacement", replacement.OrderID),
	)
	result.Order = &replacement
	return result, nil
}

// AmendOrderRequest changes an open limit order in place. At least one of the
// quantity and price fields must be set.
type AmendOrderRequest struct {
	OrderRef
	OrderQty     *decimal.Decimal
	LimitPrice   *decimal.Decimal
	TriggerPrice *decimal.Decimal
}

// AmendOrderResult carries the amendment id and the amended order.
type AmendOrderResult struct {
	AmendID string
	Order   *models.Order
	Trade   *models.Trade
}

// AmendOrder mutates an open limit order keeping its id, records the
// amendment and re-checks the fill policy against a fresh reference price.
func (e *Engine) AmendOrder(ctx context.Context, credentialKey string, req AmendOrderRequest) (AmendOrderResult, error) {
	if req.empty() {
		return AmendOrderResult{}, apperr.InvalidArgument("txid")
	}
	if req.OrderQty == nil && req.LimitPrice == nil && req.TriggerPrice == nil {
		return AmendOrderResult{}, apperr.InvalidArgument("order_qty")
	}

	current, err := findOrder(e.db.WithContext(ctx), credentialKey, req.OrderRef, false)
	if err != nil {
		return AmendOrderResult{}, err
	}
	if err := amendable(current); err != nil {
		return AmendOrderResult{}, err
	}
	pair, err := e.catalog.Pair(ctx, current.PairName)
	if err != nil {
		return AmendOrderResult{}, err
	}
	reference, err := e.referencePrice(ctx, pair.PairName)
	if err != nil {
		return AmendOrderResult{}, err
	}

	result := AmendOrderResult{AmendID: newAmendID()}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := findOrder(tx, credentialKey, OrderRef{TxID: current.OrderID}, true)
		if err != nil {
			return err
		}
		if err := amendable(order); err != nil {
			return err
		}

		amendment := models.Amendment{
			AmendID:       result.AmendID,
			OrderID:       order.OrderID,
			CredentialKey: credentialKey,
			OldVolume:     order.Volume,
			NewVolume:     order.Volume,
			OldLimitPrice: order.LimitPrice,
			NewLimitPrice: order.LimitPrice,
			AmendedAt:     e.now(),
		}
		if req.OrderQty != nil {
			order.Volume = *req.OrderQty
			amendment.NewVolume = *req.OrderQty
		}
		if req.LimitPrice != nil {
			order.LimitPrice = *req.LimitPrice
			amendment.NewLimitPrice = *req.LimitPrice
		}
		if req.TriggerPrice != nil {
			order.SecondaryPrice = *req.TriggerPrice
		}
		if err := validateOrder(order, pair); err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("order_id = ? AND status = ?", order.OrderID, models.OrderStatusOpen).
			Updates(map[string]interface{}{
				"volume":          order.Volume,
				"limit_price":     order.LimitPrice,
				"secondary_price": order.SecondaryPrice,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to amend order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.State(CodeCannotAmendClosed)
		}
		if err := tx.Create(&amendment).Error; err != nil {
			return fmt.Errorf("failed to record amendment: %w", err)
		}

		e.logger.Info("Order amended",
			zap.String("order_id", order.OrderID),
			zap.String("amend_id", amendment.AmendID),
			zap.String("volume", order.Volume.String()),
			zap.String("limit", order.LimitPrice.String()),
		)

		result.Order = order
		if e.policy.Marketable(order, reference) {
			trade, err := e.fill(tx, order, pair, reference, CodeCannotAmendClosed)
			result.Trade = trade
			return err
		}
		return nil
	})
	if err != nil {
		return AmendOrderResult{}, err
	}
	return result, nil
}

func amendable(order *models.Order) error {
	if !order.IsOpen() {
		return apperr.State(CodeCannotAmendClosed)
	}
	if order.OrderType != models.OrderTypeLimit {
		return apperr.State(CodeCannotAmendMarket)
	}
	return nil
}
