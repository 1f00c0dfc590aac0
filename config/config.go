package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr    string
	RedisAddr   string
	PostgresURL string

	// FraudAmountCeiling is the highest amount accepted as clean.
	FraudAmountCeiling decimal.Decimal
}

func Load() (Config, error) {
	// a .env file is optional, real env vars always win
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		FraudAmountCeiling: decimal.NewFromInt(15000),
	}

	if cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is not set")
	}
	if cfg.PostgresURL == "" {
		return Config{}, fmt.Errorf("POSTGRES_URL is not set")
	}

	if raw := os.Getenv("FRAUD_AMOUNT_CEILING"); raw != "" {
		ceiling, err := decimal.NewFromString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FRAUD_AMOUNT_CEILING: %w", err)
		}
		cfg.FraudAmountCeiling = ceiling
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
