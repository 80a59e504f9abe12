package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset is a tradable currency, e.g. XXBT or ZUSD.
type Asset struct {
	gorm.Model
	Symbol          string          `gorm:"uniqueIndex;not null" json:"symbol"`
	DisplayName     string          `gorm:"not null" json:"altname"`
	Decimals        int32           `gorm:"default:10" json:"decimals"`
	DisplayDecimals int32           `gorm:"default:5" json:"display_decimals"`
	Status          string          `gorm:"default:enabled" json:"status"`
	CollateralValue decimal.Decimal `gorm:"type:varchar(64)" json:"collateral_value"`
}

// FeeTier is one step of a volume based fee schedule.
type FeeTier struct {
	Volume  int64   `json:"volume"`
	Percent float64 `json:"percent"`
}

// AssetPair is a market between a base and a quote asset.
type AssetPair struct {
	gorm.Model
	PairName           string `gorm:"uniqueIndex;not null"`
	AltName            string `gorm:"uniqueIndex;not null"`
	WSName             string
	BaseSymbol         string `gorm:"not null"`
	QuoteSymbol        string `gorm:"not null"`
	PairDecimals       int32
	CostDecimals       int32
	LotDecimals        int32
	Status             string          `gorm:"default:online"`
	OrderMin           decimal.Decimal `gorm:"type:varchar(64)"`
	CostMin            decimal.Decimal `gorm:"type:varchar(64)"`
	TickSize           decimal.Decimal `gorm:"type:varchar(64)"`
	Fees               []FeeTier       `gorm:"serializer:json"`
	FeesMaker          []FeeTier       `gorm:"serializer:json"`
	FeeVolumeCurrency  string
	LeverageBuy        []int `gorm:"serializer:json"`
	LeverageSell       []int `gorm:"serializer:json"`
	MarginCall         int
	MarginStop         int
	LongPositionLimit  int
	ShortPositionLimit int
}

// TakerFeePercent returns the entry tier of the taker schedule, or false when
// the pair has none.
func (p AssetPair) TakerFeePercent() (decimal.Decimal, bool) {
	if len(p.Fees) == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(p.Fees[0].Percent), true
}
