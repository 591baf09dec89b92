package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"btcTracker/internal/adapters/logger"
	"btcTracker/internal/ports"
)

// Config holds all application configuration.
type Config struct {
	// MongoDB
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Binance API (historical seeding)
	BinanceAPIKey    string
	BinanceAPISecret string

	// KuCoin API (hourly backfill; the candles endpoint is public, the
	// credentials are carried for parity with the deployment environment)
	KuCoinBaseURL    string
	KuCoinAPIKey     string
	KuCoinAPISecret  string
	KuCoinPassphrase string

	// Pipeline Parameters
	SeedSymbol     string // Binance notation, e.g. BTCUSDT
	BackfillSymbol string // KuCoin notation, e.g. BTC-USDT
	SeedHours      int    // candles fetched by a seeding run
	WindowHours    int    // sliding window loaded before an hourly update
	MaxRangeHours  int    // largest hour span requested from KuCoin in one call

	// HTTP
	RequestTimeout time.Duration
	ServeAddr      string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// MongoDB
	cfg.MongoURI = getEnv("MONGODB_URI", "")
	if cfg.MongoURI == "" {
		errs = append(errs, "MONGODB_URI must be set")
	}
	cfg.MongoDatabase = getEnv("MONGODB_DATABASE", "btc_data")
	cfg.MongoCollection = getEnv("MONGODB_COLLECTION", "1h_price_data")

	// Binance API
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceAPISecret = getEnv("BINANCE_API_SECRET", "")
	if cfg.BinanceAPIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.BinanceAPISecret == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// KuCoin API
	cfg.KuCoinBaseURL = getEnv("KUCOIN_BASE_URL", "https://api.kucoin.com")
	cfg.KuCoinAPIKey = getEnv("KUCOIN_API_KEY", "")
	cfg.KuCoinAPISecret = getEnv("KUCOIN_API_SECRET", "")
	cfg.KuCoinPassphrase = getEnv("KUCOIN_PASSPHRASE", "")

	// Pipeline Parameters
	cfg.SeedSymbol = getEnv("SEED_SYMBOL", "BTCUSDT")
	cfg.BackfillSymbol = getEnv("BACKFILL_SYMBOL", "BTC-USDT")

	cfg.SeedHours, err = getEnvAsIntRequired("SEED_HOURS", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SEED_HOURS: %v", err))
	} else if cfg.SeedHours <= 0 {
		errs = append(errs, "SEED_HOURS must be positive")
	}

	cfg.WindowHours, err = getEnvAsIntRequired("WINDOW_HOURS", 200)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WINDOW_HOURS: %v", err))
	} else if cfg.WindowHours <= 0 {
		errs = append(errs, "WINDOW_HOURS must be positive")
	}

	cfg.MaxRangeHours, err = getEnvAsIntRequired("MAX_RANGE_HOURS", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RANGE_HOURS: %v", err))
	} else if cfg.MaxRangeHours <= 0 {
		errs = append(errs, "MAX_RANGE_HOURS must be positive")
	}

	if cfg.SeedHours < cfg.WindowHours {
		errs = append(errs, "SEED_HOURS must be at least WINDOW_HOURS")
	}

	// HTTP
	requestTimeoutSeconds := getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)
	if requestTimeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(requestTimeoutSeconds) * time.Second
	cfg.ServeAddr = getEnv("SERVE_ADDR", ":8080")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfiguration, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
