// Package ledger keeps per-credential asset balances. Fills are the only
// mutation path during trading and always run inside the caller's transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fill is the balance effect of one executed order.
type Fill struct {
	CredentialKey string
	Base          string
	Quote         string
	Side          string
	Volume        decimal.Decimal
	Cost          decimal.Decimal
	Fee           decimal.Decimal
}

// Seed is a starting quantity for one asset.
type Seed struct {
	Asset    string
	Quantity decimal.Decimal
}

// DefaultSeeds is the starting balance of every new credential.
var DefaultSeeds = []config.SeedBalance{
	{Asset: "XXBT", Quantity: "100"},
	{Asset: "XETH", Quantity: "100"},
	{Asset: "ZUSD", Quantity: "1000000"},
	{Asset: "ZAUD", Quantity: "1000000"},
}

// SeedsFromConfig parses configured seed balances, using DefaultSeeds when
// none are configured.
func SeedsFromConfig(balances []config.SeedBalance) ([]Seed, error) {
	if len(balances) == 0 {
		balances = DefaultSeeds
	}
	seeds := make([]Seed, 0, len(balances))
	for _, b := range balances {
		qty, err := decimal.NewFromString(b.Quantity)
		if err != nil {
			return nil, fmt.Errorf("invalid seed quantity for %s: %w", b.Asset, err)
		}
		if qty.IsNegative() {
			return nil, fmt.Errorf("negative seed quantity for %s", b.Asset)
		}
		seeds = append(seeds, Seed{Asset: b.Asset, Quantity: qty})
	}
	return seeds, nil
}

// Ledger holds per-credential balances.
type Ledger struct {
	db     *gorm.DB
	log    *zap.Logger
	strict bool
}

// New creates a ledger. With strict set, fills that would drive a balance
// below zero are rejected.
func New(db *gorm.DB, log *zap.Logger, strict bool) *Ledger {
	return &Ledger{db: db, log: log.Named("ledger"), strict: strict}
}

// Strict reports whether negative balances are rejected.
func (l *Ledger) Strict() bool { return l.strict }

// Get returns the quantity held, zero when no row exists.
func (l *Ledger) Get(ctx context.Context, credentialKey, asset string) (decimal.Decimal, error) {
	var balance models.Balance
	err := l.db.WithContext(ctx).
		Where("credential_key = ? AND asset_symbol = ?", credentialKey, asset).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load balance: %w", err)
	}
	return balance.Quantity, nil
}

// All returns every balance row of a credential ordered by asset.
func (l *Ledger) All(ctx context.Context, credentialKey string) ([]models.Balance, error) {
	var balances []models.Balance
	err := l.db.WithContext(ctx).
		Where("credential_key = ?", credentialKey).
		Order("asset_symbol").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

// ApplyFill moves the base and quote quantities of a fill. tx must be the
// engine's open transaction; any returned error must roll it back.
func (l *Ledger) ApplyFill(tx *gorm.DB, f Fill) error {
	var baseDelta, quoteDelta decimal.Decimal
	switch f.Side {
	case models.SideBuy:
		baseDelta = f.Volume
		quoteDelta = f.Cost.Add(f.Fee).Neg()
	case models.SideSell:
		baseDelta = f.Volume.Neg()
		quoteDelta = f.Cost.Sub(f.Fee)
	default:
		return fmt.Errorf("unknown side %q", f.Side)
	}

	rows, err := l.lockRows(tx, f.CredentialKey, f.Base, f.Quote)
	if err != nil {
		return err
	}

	next := map[string]decimal.Decimal{
		f.Base:  rows[f.Base].Quantity.Add(baseDelta),
		f.Quote: rows[f.Quote].Quantity.Add(quoteDelta),
	}

	if l.strict {
		for _, asset := range []string{f.Base, f.Quote} {
			if next[asset].IsNegative() {
				return apperr.InsufficientFunds(fmt.Errorf("%s balance %s cannot cover %s",
					asset, rows[asset].Quantity.String(), next[asset].Sub(rows[asset].Quantity).Neg().String()))
			}
		}
	}

	for _, asset := range []string{f.Base, f.Quote} {
		row := rows[asset]
		if err := tx.Model(row).Update("quantity", next[asset]).Error; err != nil {
			return fmt.Errorf("failed to update %s balance: %w", asset, err)
		}
	}

	l.log.Debug("Applied fill",
		zap.String("credential", mask(f.CredentialKey)),
		zap.String("side", f.Side),
		zap.String(f.Base, baseDelta.String()),
		zap.String(f.Quote, quoteDelta.String()),
	)
	return nil
}

// lockRows makes sure a row exists for every asset, then reads them under a
// row lock in a stable order.
func (l *Ledger) lockRows(tx *gorm.DB, credentialKey string, assets ...string) (map[string]*models.Balance, error) {
	sorted := append([]string(nil), assets...)
	sort.Strings(sorted)

	blanks := make([]models.Balance, 0, len(sorted))
	for _, asset := range sorted {
		blanks = append(blanks, models.Balance{CredentialKey: credentialKey, AssetSymbol: asset, Quantity: decimal.Zero})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&blanks).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure balance rows: %w", err)
	}

	var found []models.Balance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("credential_key = ? AND asset_symbol IN ?", credentialKey, sorted).
		Order("asset_symbol").
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance rows: %w", err)
	}

	rows := make(map[string]*models.Balance, len(found))
	for i := range found {
		rows[found[i].AssetSymbol] = &found[i]
	}
	for _, asset := range sorted {
		if _, ok := rows[asset]; !ok {
			return nil, fmt.Errorf("balance row for %s missing after insert", asset)
		}
	}
	return rows, nil
}

// Seed sets the listed balances to exact quantities, creating rows as needed.
func (l *Ledger) Seed(tx *gorm.DB, credentialKey string, seeds []Seed) error {
	if len(seeds) == 0 {
		return nil
	}
	rows := make([]models.Balance, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, models.Balance{CredentialKey: credentialKey, AssetSymbol: s.Asset, Quantity: s.Quantity})
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential_key"}, {Name: "asset_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to seed balances: %w", err)
	}
	return nil
}

// Reset overwrites a credential's balances with the seed in its own transaction.
func (l *Ledger) Reset(ctx context.Context, credentialKey string, seeds []Seed) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.Seed(tx, credentialKey, seeds)
	})
	if err != nil {
		return err
	}
	l.log.Info("Reset balances", zap.String("credential", mask(credentialKey)), zap.Int("assets", len(seeds)))
	return nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
