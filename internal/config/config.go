package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the sandbox.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Auth     Auth     `mapstructure:"auth"`
	Engine   Engine   `mapstructure:"engine"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Pricing  Pricing  `mapstructure:"pricing"`
	Sandbox  Sandbox  `mapstructure:"sandbox"`
}

// Server holds the configuration for the HTTP surface.
type Server struct {
	Port           int      `mapstructure:"port"`
	AdminPort      int      `mapstructure:"admin_port"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver       string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Auth selects how private requests are authenticated.
type Auth struct {
	Mode string `mapstructure:"mode"` // "permissive" or "strict"
}

// Engine holds the order engine knobs.
type Engine struct {
	FillBand   string `mapstructure:"fill_band"`
	FeePercent string `mapstructure:"fee_percent"`
}

// Ledger holds the balance ledger knobs.
type Ledger struct {
	StrictSolvency bool `mapstructure:"strict_solvency"`
}

// Pricing selects and configures the reference price source.
type Pricing struct {
	Source    string        `mapstructure:"source"` // "static" or "coingecko"
	CacheTTL  int           `mapstructure:"cache_ttl"`
	Static    []StaticPrice `mapstructure:"static"`
	CoinGecko CoinGecko     `mapstructure:"coingecko"`
}

// StaticPrice is a fixed reference price for a pair.
type StaticPrice struct {
	Pair  string `mapstructure:"pair"`
	Price string `mapstructure:"price"`
}

// CoinGecko holds the configuration for the CoinGecko price API.
type CoinGecko struct {
	BaseURL        string        `mapstructure:"base_url"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        int           `mapstructure:"timeout"`
	Coins          []CoinMapping `mapstructure:"coins"`
}

// CoinMapping maps a pair onto a CoinGecko coin id and vs currency.
type CoinMapping struct {
	Pair     string `mapstructure:"pair"`
	Coin     string `mapstructure:"coin"`
	Currency string `mapstructure:"currency"`
}

// Sandbox holds the first-run seed data.
type Sandbox struct {
	SeedBalances []SeedBalance `mapstructure:"seed_balances"`
}

// SeedBalance is the starting quantity of one asset for a new credential.
type SeedBalance struct {
	Asset    string `mapstructure:"asset"`
	Quantity string `mapstructure:"quantity"`
}

// LoadConfig reads configuration from file or environment variables.
// An optional .env file in the working directory is loaded first.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.admin_port", 5001)
	v.SetDefault("server.rate_limit", 15) // requests per second per key
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/kraken_sandbox.db")
	v.SetDefault("database.max_open_conns", 1)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("auth.mode", "permissive")

	v.SetDefault("engine.fill_band", "0.05")
	v.SetDefault("engine.fee_percent", "0.26")

	v.SetDefault("ledger.strict_solvency", false)

	v.SetDefault("pricing.source", "static")
	v.SetDefault("pricing.cache_ttl", 10) // seconds
	v.SetDefault("pricing.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("pricing.coingecko.rate_limit", 0.5)
	v.SetDefault("pricing.coingecko.rate_limit_burst", 2)
	v.SetDefault("pricing.coingecko.timeout", 5)
}
