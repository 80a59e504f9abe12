package database

import (
	"path/filepath"
	"testing"
	"time"

	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func memoryConfig() *config.Database {
	return &config.Database{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1}
}

func TestNewDatabase_SeedsCatalog(t *testing.T) {
	db, err := NewDatabase(memoryConfig())
	require.NoError(t, err)

	var assets []models.Asset
	require.NoError(t, db.Order("symbol").Find(&assets).Error)
	require.Len(t, assets, 4)
	assert.Equal(t, "XETH", assets[0].Symbol)
	assert.Equal(t, "0.8", assets[0].CollateralValue.String())

	var pair models.AssetPair
	require.NoError(t, db.Where("pair_name = ?", "XXBTZUSD").First(&pair).Error)
	assert.Equal(t, "XBTUSD", pair.AltName)
	assert.Equal(t, "XXBT", pair.BaseSymbol)
	assert.Equal(t, "ZUSD", pair.QuoteSymbol)
	assert.Equal(t, "0.0001", pair.OrderMin.String())
	assert.Equal(t, []int{2, 3, 4, 5}, pair.LeverageBuy)
	require.Len(t, pair.Fees, 3)
	pct, ok := pair.TakerFeePercent()
	assert.True(t, ok)
	assert.Equal(t, "0.26", pct.String())
}

func TestSeedCatalog_Idempotent(t *testing.T) {
	db, err := NewDatabase(memoryConfig())
	require.NoError(t, err)

	require.NoError(t, SeedCatalog(db))

	var count int64
	db.Model(&models.AssetPair{}).Count(&count)
	assert.Equal(t, int64(4), count)
	db.Model(&models.Asset{}).Count(&count)
	assert.Equal(t, int64(4), count)
}

func TestNewDatabase_FileReopen(t *testing.T) {
	cfg := &config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "nested", "sandbox.db"), MaxOpenConns: 1}

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Credential{Key: "k", Secret: "s"}).Error)
	sqlDB, _ := db.DB()
	require.NoError(t, sqlDB.Close())

	db, err = NewDatabase(cfg)
	require.NoError(t, err)
	var count int64
	db.Model(&models.Credential{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Database{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenOrderClientIDUnique(t *testing.T) {
	db, err := NewDatabase(memoryConfig())
	require.NoError(t, err)

	order := func(id, key, clientID string) *models.Order {
		return &models.Order{
			OrderID:       id,
			CredentialKey: key,
			Status:        models.OrderStatusOpen,
			PairName:      "XXBTZUSD",
			Side:          models.SideBuy,
			OrderType:     models.OrderTypeLimit,
			Volume:        decimal.NewFromInt(1),
			OpenedAt:      time.Now(),
			ClientOrderID: clientID,
		}
	}

	first := order("O-1", "k1", "dup")
	require.NoError(t, db.Create(first).Error)

	err = db.Create(order("O-2", "k1", "dup")).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	assert.NoError(t, db.Create(order("O-3", "k2", "dup")).Error, "other credentials may reuse the id")
	assert.NoError(t, db.Create(order("O-4", "k1", "")).Error)
	assert.NoError(t, db.Create(order("O-5", "k1", "")).Error, "empty ids are not constrained")

	require.NoError(t, db.Model(first).Update("status", models.OrderStatusClosed).Error)
	assert.NoError(t, db.Create(order("O-6", "k1", "dup")).Error, "closing releases the id")
}
