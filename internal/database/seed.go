package database

import (
	"fmt"

	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	defaultFees      = []models.FeeTier{{Volume: 0, Percent: 0.26}, {Volume: 50000, Percent: 0.24}, {Volume: 100000, Percent: 0.22}}
	defaultFeesMaker = []models.FeeTier{{Volume: 0, Percent: 0.16}, {Volume: 50000, Percent: 0.14}, {Volume: 100000, Percent: 0.12}}
	defaultLeverage  = []int{2, 3, 4, 5}
)

// DefaultAssets is the asset catalog seeded on first boot.
func DefaultAssets() []models.Asset {
	return []models.Asset{
		{Symbol: "XXBT", DisplayName: "XBT", Decimals: 10, DisplayDecimals: 5, Status: "enabled", CollateralValue: decimal.NewFromInt(1)},
		{Symbol: "XETH", DisplayName: "ETH", Decimals: 10, DisplayDecimals: 5, Status: "enabled", CollateralValue: decimal.RequireFromString("0.8")},
		{Symbol: "ZUSD", DisplayName: "USD", Decimals: 4, DisplayDecimals: 2, Status: "enabled", CollateralValue: decimal.NewFromInt(1)},
		{Symbol: "ZAUD", DisplayName: "AUD", Decimals: 4, DisplayDecimals: 2, Status: "enabled", CollateralValue: decimal.RequireFromString("0.7")},
	}
}

// DefaultPairs is the pair catalog seeded on first boot.
func DefaultPairs() []models.AssetPair {
	btc := func(name, alt, ws, quote string) models.AssetPair {
		return pair(name, alt, ws, "XXBT", quote, 1, 5, "0.0001", "0.1", 250, 200)
	}
	eth := func(name, alt, ws, quote string) models.AssetPair {
		return pair(name, alt, ws, "XETH", quote, 2, 6, "0.001", "0.01", 500, 300)
	}
	return []models.AssetPair{
		btc("XXBTZUSD", "XBTUSD", "XBT/USD", "ZUSD"),
		eth("XETHZUSD", "ETHUSD", "ETH/USD", "ZUSD"),
		btc("XXBTZAUD", "XBTAUD", "XBT/AUD", "ZAUD"),
		eth("XETHZAUD", "ETHAUD", "ETH/AUD", "ZAUD"),
	}
}

func pair(name, alt, ws, base, quote string, pairDecimals, costDecimals int32, orderMin, tick string, long, short int) models.AssetPair {
	return models.AssetPair{
		PairName:           name,
		AltName:            alt,
		WSName:             ws,
		BaseSymbol:         base,
		QuoteSymbol:        quote,
		PairDecimals:       pairDecimals,
		CostDecimals:       costDecimals,
		LotDecimals:        8,
		Status:             "online",
		OrderMin:           decimal.RequireFromString(orderMin),
		CostMin:            decimal.RequireFromString("0.5"),
		TickSize:           decimal.RequireFromString(tick),
		Fees:               defaultFees,
		FeesMaker:          defaultFeesMaker,
		FeeVolumeCurrency:  "ZUSD",
		LeverageBuy:        defaultLeverage,
		LeverageSell:       defaultLeverage,
		MarginCall:         80,
		MarginStop:         40,
		LongPositionLimit:  long,
		ShortPositionLimit: short,
	}
}

// SeedCatalog inserts the default assets and pairs when their tables are empty.
func SeedCatalog(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Asset{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count assets: %w", err)
		}
		if count == 0 {
			assets := DefaultAssets()
			if err := tx.Create(&assets).Error; err != nil {
				return fmt.Errorf("failed to seed assets: %w", err)
			}
		}

		if err := tx.Model(&models.AssetPair{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count asset pairs: %w", err)
		}
		if count == 0 {
			pairs := DefaultPairs()
			if err := tx.Create(&pairs).Error; err != nil {
				return fmt.Errorf("failed to seed asset pairs: %w", err)
			}
		}
		return nil
	})
}
