package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade is a fill record. Rows are append-only.
type Trade struct {
	gorm.Model
	TradeID       string          `gorm:"uniqueIndex;not null"`
	OrderID       string          `gorm:"index;not null"`
	CredentialKey string          `gorm:"index;not null"`
	PairName      string          `gorm:"not null"`
	Side          string          `gorm:"not null"`
	OrderType     string          `gorm:"not null"`
	Price         decimal.Decimal `gorm:"type:varchar(64);not null"`
	Cost          decimal.Decimal `gorm:"type:varchar(64);not null"`
	Fee           decimal.Decimal `gorm:"type:varchar(64);not null"`
	Volume        decimal.Decimal `gorm:"type:varchar(64);not null"`
	ExecutedAt    time.Time       `gorm:"index;not null"`
}

// Amendment records one in-place change of an open order.
type Amendment struct {
	gorm.Model
	AmendID       string          `gorm:"uniqueIndex;not null"`
	OrderID       string          `gorm:"index;not null"`
	CredentialKey string          `gorm:"index;not null"`
	OldVolume     decimal.Decimal `gorm:"type:varchar(64)"`
	NewVolume     decimal.Decimal `gorm:"type:varchar(64)"`
	OldLimitPrice decimal.Decimal `gorm:"type:varchar(64)"`
	NewLimitPrice decimal.Decimal `gorm:"type:varchar(64)"`
	AmendedAt     time.Time       `gorm:"not null"`
}
