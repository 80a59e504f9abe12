// Package catalog serves read-only lookups over the seeded assets and pairs.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/models"

	"gorm.io/gorm"
)

// Catalog answers asset and pair lookups from the store.
type Catalog struct {
	db *gorm.DB
}

// New creates a catalog over db.
func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Asset looks up an asset by its symbol or display name.
func (c *Catalog) Asset(ctx context.Context, symbol string) (models.Asset, error) {
	var asset models.Asset
	err := c.db.WithContext(ctx).
		Where("symbol = ? OR display_name = ?", symbol, symbol).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return asset, apperr.Validation(apperr.CodeUnknownAsset, fmt.Errorf("asset %q", symbol))
	}
	if err != nil {
		return asset, fmt.Errorf("failed to load asset %s: %w", symbol, err)
	}
	return asset, nil
}

// Pair looks up a pair by pair_name or alt_name.
func (c *Catalog) Pair(ctx context.Context, name string) (models.AssetPair, error) {
	var pair models.AssetPair
	err := c.db.WithContext(ctx).
		Where("pair_name = ? OR alt_name = ?", name, name).
		First(&pair).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pair, apperr.Validation(apperr.CodeUnknownPair, fmt.Errorf("pair %q", name))
	}
	if err != nil {
		return pair, fmt.Errorf("failed to load pair %s: %w", name, err)
	}
	return pair, nil
}

// Pairs resolves every name, failing on the first unknown one. An empty list
// returns the whole catalog.
func (c *Catalog) Pairs(ctx context.Context, names ...string) ([]models.AssetPair, error) {
	if len(names) == 0 {
		return c.AllPairs(ctx)
	}
	pairs := make([]models.AssetPair, 0, len(names))
	for _, name := range names {
		pair, err := c.Pair(ctx, name)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// Assets resolves every symbol, failing on the first unknown one. An empty list
// returns the whole catalog.
func (c *Catalog) Assets(ctx context.Context, symbols ...string) ([]models.Asset, error) {
	if len(symbols) == 0 {
		return c.AllAssets(ctx)
	}
	assets := make([]models.Asset, 0, len(symbols))
	for _, symbol := range symbols {
		asset, err := c.Asset(ctx, symbol)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// AllPairs lists every tradable pair ordered by name.
func (c *Catalog) AllPairs(ctx context.Context) ([]models.AssetPair, error) {
	var pairs []models.AssetPair
	if err := c.db.WithContext(ctx).Order("pair_name").Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to list pairs: %w", err)
	}
	return pairs, nil
}

// AllAssets lists every asset ordered by symbol.
func (c *Catalog) AllAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := c.db.WithContext(ctx).Order("symbol").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}
