package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"

	OrderStatusOpen   = "open"
	OrderStatusClosed = "closed"

	CloseReasonFilled   = "filled"
	CloseReasonCanceled = "canceled"
	CloseReasonReplaced = "replaced"
)

// Order is a single order placed by a credential.
// Once Status is closed the row is never mutated again.
type Order struct {
	gorm.Model
	OrderID        string          `gorm:"uniqueIndex;not null"`
	CredentialKey  string          `gorm:"index:idx_order_owner_status;not null"`
	Status         string          `gorm:"index:idx_order_owner_status;not null;default:open"`
	PairName       string          `gorm:"not null"`
	Side           string          `gorm:"not null"`
	OrderType      string          `gorm:"not null"`
	LimitPrice     decimal.Decimal `gorm:"type:varchar(64)"`
	SecondaryPrice decimal.Decimal `gorm:"type:varchar(64)"`
	Volume         decimal.Decimal `gorm:"type:varchar(64);not null"`
	ExecutedVolume decimal.Decimal `gorm:"type:varchar(64);not null"`
	Cost           decimal.Decimal `gorm:"type:varchar(64)"`
	Fee            decimal.Decimal `gorm:"type:varchar(64)"`
	AvgPrice       decimal.Decimal `gorm:"type:varchar(64)"`
	Reason         string
	OpenedAt       time.Time  `gorm:"not null"`
	ClosedAt       *time.Time `gorm:"index"`
	UserRef        *int64     `gorm:"index"`
	ClientOrderID  string     `gorm:"index"`
}

// IsOpen reports whether the order is still resting.
func (o Order) IsOpen() bool { return o.Status == OrderStatusOpen }
