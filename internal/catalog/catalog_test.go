package catalog

import (
	"context"
	"testing"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCatalog(t *testing.T) *Catalog {
	db, err := database.NewDatabase(&config.Database{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	return New(db)
}

func TestCatalog_Pair(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	t.Run("ByPairName", func(t *testing.T) {
		pair, err := c.Pair(ctx, "XXBTZUSD")
		require.NoError(t, err)
		assert.Equal(t, "XBTUSD", pair.AltName)
	})

	t.Run("ByAltName", func(t *testing.T) {
		pair, err := c.Pair(ctx, "ETHAUD")
		require.NoError(t, err)
		assert.Equal(t, "XETHZAUD", pair.PairName)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := c.Pair(ctx, "DOGEUSD")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, apperr.CodeUnknownPair, apperr.CodeOf(err))
	})
}

func TestCatalog_Pairs(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	all, err := c.Pairs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	some, err := c.Pairs(ctx, "XBTUSD", "XETHZUSD")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "XXBTZUSD", some[0].PairName)
	assert.Equal(t, "XETHZUSD", some[1].PairName)

	_, err = c.Pairs(ctx, "XBTUSD", "NOPE")
	assert.Equal(t, apperr.CodeUnknownPair, apperr.CodeOf(err))
}

func TestCatalog_Assets(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	asset, err := c.Asset(ctx, "XBT")
	require.NoError(t, err)
	assert.Equal(t, "XXBT", asset.Symbol)
	assert.Equal(t, int32(10), asset.Decimals)

	all, err := c.Assets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = c.Assets(ctx, "ZUSD", "ZJPY")
	assert.Equal(t, apperr.CodeUnknownAsset, apperr.CodeOf(err))
}
