package auth

import (
	"context"
	"encoding/base64"
	"regexp"
	"testing"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStore(t *testing.T) (*Store, *ledger.Ledger) {
	db, err := database.NewDatabase(&config.Database{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	l := ledger.New(db, zap.NewNop(), false)
	seeds := []ledger.Seed{
		{Asset: "XXBT", Quantity: decimal.NewFromInt(100)},
		{Asset: "ZUSD", Quantity: decimal.NewFromInt(1000000)},
	}
	return NewStore(db, l, seeds, zap.NewNop()), l
}

func TestStore_Bootstrap(t *testing.T) {
	store, l := setupStore(t)
	ctx := context.Background()

	cred, created, err := store.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{56}$`), cred.Key)
	secret, err := base64.StdEncoding.DecodeString(cred.Secret)
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	usd, err := l.Get(ctx, cred.Key, "ZUSD")
	require.NoError(t, err)
	assert.Equal(t, "1000000", usd.String())

	again, created, err := store.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cred.Key, again.Key)
}

func TestStore_Lookup(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	cred, err := store.Create(ctx)
	require.NoError(t, err)

	found, err := store.Lookup(ctx, cred.Key)
	require.NoError(t, err)
	assert.Equal(t, cred.Secret, found.Secret)

	_, err = store.Lookup(ctx, "missing")
	assert.Equal(t, apperr.CodeInvalidKey, apperr.CodeOf(err))

	_, err = store.Lookup(ctx, "")
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestPermissive_Authenticate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	cred, err := store.Create(ctx)
	require.NoError(t, err)

	a, err := New(ModePermissive, store)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
		code string
	}{
		{"Valid", Request{Key: cred.Key, Signature: "anything", Nonce: "1"}, ""},
		{"ReplayedNonce", Request{Key: cred.Key, Signature: "anything", Nonce: "1"}, ""},
		{"MissingKey", Request{Signature: "x", Nonce: "1"}, apperr.CodeInvalidKey},
		{"UnknownKey", Request{Key: "nope", Signature: "x", Nonce: "1"}, apperr.CodeInvalidKey},
		{"MissingSignature", Request{Key: cred.Key, Nonce: "1"}, apperr.CodeInvalidKey},
		{"MissingNonce", Request{Key: cred.Key, Signature: "x"}, apperr.CodeInvalidNonce},
		{"NonNumericNonce", Request{Key: cred.Key, Signature: "x", Nonce: "abc"}, apperr.CodeInvalidNonce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(ctx, tt.req)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, cred.Key, got.Key)
				return
			}
			assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestStrict_Authenticate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	cred, err := store.Create(ctx)
	require.NoError(t, err)

	a, err := New(ModeStrict, store)
	require.NoError(t, err)

	signed := func(nonce, body string) Request {
		sig, err := Sign("/0/private/Balance", nonce, body, cred.Secret)
		require.NoError(t, err)
		return Request{Key: cred.Key, Signature: sig, Nonce: nonce, Path: "/0/private/Balance", PostData: body}
	}

	var got models.Credential
	got, err = a.Authenticate(ctx, signed("100", "nonce=100"))
	require.NoError(t, err)
	assert.Equal(t, cred.Key, got.Key)

	t.Run("ReplayedNonce", func(t *testing.T) {
		_, err := a.Authenticate(ctx, signed("100", "nonce=100"))
		assert.Equal(t, apperr.CodeInvalidNonce, apperr.CodeOf(err))
	})

	t.Run("IncreasingNonce", func(t *testing.T) {
		_, err := a.Authenticate(ctx, signed("101", "nonce=101"))
		assert.NoError(t, err)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		req := signed("200", "nonce=200")
		req.PostData = "nonce=200&volume=1"
		_, err := a.Authenticate(ctx, req)
		assert.Equal(t, apperr.CodeInvalidSignature, apperr.CodeOf(err))
	})

	t.Run("RejectedSignatureDoesNotBurnNonce", func(t *testing.T) {
		_, err := a.Authenticate(ctx, signed("200", "nonce=200"))
		assert.NoError(t, err)
	})
}

func TestSign_KnownVector(t *testing.T) {
	// Example from the public Kraken REST authentication guide.
	secret := "kQH5HW/8p1uGOVjbgWA7FunAmGO8lsSUXNsu3eow76sz84Q18fWxnyRzBHCd3pd5nE9qa99HAZtuZuj6F1huXg=="
	sig, err := Sign("/0/private/AddOrder", "1616492376594",
		"nonce=1616492376594&ordertype=limit&pair=XBTUSD&price=37500&type=buy&volume=1.25", secret)
	require.NoError(t, err)
	assert.Equal(t, "4/dpxb3iT4tp/ZCVEwSnEsLxx0bqyhLpdfOpc6fn7OR8+UClSV5n9E6aSS8MPtnRfp32bAb0nmbRn6H8ndwLUQ==", sig)
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New("paranoid", nil)
	assert.Error(t, err)
}
