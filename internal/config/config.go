package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir           string // Directory for the portfolio database
	CacheDir          string // Directory for the price history cache (empty = ~/.investment_cache)
	Port              int
	LogLevel          string
	DevMode           bool
	MarketIndexSymbol string // Market proxy used for beta calculations
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:           getEnv("DATA_DIR", "./data"),
		CacheDir:          getEnv("CACHE_DIR", ""),
		Port:              getEnvAsInt("PORT", 8000),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		MarketIndexSymbol: getEnv("MARKET_INDEX_SYMBOL", "^GSPC"),
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
