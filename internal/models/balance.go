package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance is the quantity of one asset held by one credential.
// Rows are created lazily and never deleted.
type Balance struct {
	gorm.Model
	CredentialKey string          `gorm:"uniqueIndex:idx_balance_owner_asset;not null"`
	AssetSymbol   string          `gorm:"uniqueIndex:idx_balance_owner_asset;not null"`
	Quantity      decimal.Decimal `gorm:"type:varchar(64);not null"`
}
