package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyLength   = 56
	secretBytes = 64
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Store holds API credentials and seeds balances for new ones.
type Store struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	seeds  []ledger.Seed
	log    *zap.Logger
}

func NewStore(db *gorm.DB, l *ledger.Ledger, seeds []ledger.Seed, log *zap.Logger) *Store {
	return &Store{db: db, ledger: l, seeds: seeds, log: log.Named("credentials")}
}

// Lookup returns the credential for key, or an auth error when it is unknown.
func (s *Store) Lookup(ctx context.Context, key string) (models.Credential, error) {
	var cred models.Credential
	if key == "" {
		return cred, apperr.Auth(apperr.CodeInvalidKey)
	}
	err := s.db.WithContext(ctx).Where(&models.Credential{Key: key}).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cred, apperr.Auth(apperr.CodeInvalidKey)
	}
	if err != nil {
		return cred, fmt.Errorf("failed to load credential: %w", err)
	}
	return cred, nil
}

func (s *Store) All(ctx context.Context) ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.WithContext(ctx).Order("id").Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// Bootstrap returns the first credential, creating and funding one when the
// store is empty. The bool reports whether a new credential was made.
func (s *Store) Bootstrap(ctx context.Context) (models.Credential, bool, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).Order("id").First(&cred).Error
	if err == nil {
		return cred, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return cred, false, fmt.Errorf("failed to load credentials: %w", err)
	}
	cred, err = s.Create(ctx)
	return cred, err == nil, err
}

// Create generates a new key/secret pair and seeds its balances in the same
// transaction.
func (s *Store) Create(ctx context.Context) (models.Credential, error) {
	key, err := randomKey()
	if err != nil {
		return models.Credential{}, err
	}
	secret, err := randomSecret()
	if err != nil {
		return models.Credential{}, err
	}
	cred := models.Credential{Key: key, Secret: secret}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cred).Error; err != nil {
			return fmt.Errorf("failed to create credential: %w", err)
		}
		return s.ledger.Seed(tx, cred.Key, s.seeds)
	})
	if err != nil {
		return models.Credential{}, err
	}

	s.log.Info("Created credential", zap.String("key", cred.Key[:8]+"..."), zap.Int("seeded_assets", len(s.seeds)))
	return cred, nil
}

func randomKey() (string, error) {
	limit := big.NewInt(int64(len(keyAlphabet)))
	buf := make([]byte, keyLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate key: %w", err)
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func randomSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
