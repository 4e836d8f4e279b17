package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port               int
	DatabaseURL        string
	JWTSecret          string
	WebhookSecret      string
	PayloadKey         string
	PlatformFeePercent decimal.Decimal
	CORSOrigins        []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	webhookSecret := getEnv("WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	payloadKey := getEnv("PAYLOAD_KEY", "")
	if payloadKey == "" {
		return nil, fmt.Errorf("PAYLOAD_KEY is required (must be exactly 32 bytes)")
	}
	if len(payloadKey) != 32 {
		return nil, fmt.Errorf("PAYLOAD_KEY must be exactly 32 bytes, got %d", len(payloadKey))
	}

	feeStr := getEnv("PLATFORM_FEE_PERCENT", "5")
	feePercent, err := decimal.NewFromString(feeStr)
	if err != nil {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must be a decimal percentage: %w", err)
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100, got %s", feeStr)
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:               port,
		DatabaseURL:        dbURL,
		JWTSecret:          jwtSecret,
		WebhookSecret:      webhookSecret,
		PayloadKey:         payloadKey,
		PlatformFeePercent: feePercent,
		CORSOrigins:        origins,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
