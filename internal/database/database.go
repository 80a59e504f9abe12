package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the configured store, migrates the schema and seeds the
// catalog on first boot.
func NewDatabase(cfg *config.Database) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	if err := SeedCatalog(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Open connects to the database without touching the schema.
func Open(cfg *config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		// sqlite serializes writers; one connection also keeps :memory: databases
		// from splitting across the pool.
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	return db, nil
}

// AutoMigrate creates or updates the tables for every model.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Credential{},
		&models.Asset{},
		&models.AssetPair{},
		&models.Balance{},
		&models.Order{},
		&models.Trade{},
		&models.Amendment{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// A client order id is unique among one credential's open orders.
	// Closing an order releases its id.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_open_client_id
		ON orders (credential_key, client_order_id)
		WHERE status = 'open' AND client_order_id <> ''`).Error
	if err != nil {
		return fmt.Errorf("failed to create open client order index: %w", err)
	}
	return nil
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
