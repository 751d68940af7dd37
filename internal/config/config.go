package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	Coins        CoinsConfig
	Cancellation CancellationConfig
	CORS         CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	GatewayName   string // default gateway name used for synthesized payment facts
	MerchantKey   string
	MerchantToken string // SECRET - used for callback signature verification only
}

// CoinsConfig holds the reward-coin business rules. The earn rule is
// min(floor(price * EarnRate), EarnCap) per confirmed booking.
type CoinsConfig struct {
	EarnRate float64
	EarnCap  int64
}

// CancellationConfig holds the cancellation fee business rules. The fee
// is min(round(price * FeeRate), FeeCap).
type CancellationConfig struct {
	FeeRate float64
	FeeCap  int64
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Payment: PaymentConfig{
			GatewayName:   getEnv("PAYMENT_GATEWAY_NAME", "razorpay"),
			MerchantKey:   getEnv("PAYMENT_MERCHANT_KEY", ""),
			MerchantToken: getEnv("PAYMENT_MERCHANT_TOKEN", ""),
		},
		Coins: CoinsConfig{
			EarnRate: getEnvAsFloat("COIN_EARN_RATE", 0.02),
			EarnCap:  int64(getEnvAsInt("COIN_EARN_CAP", 50)),
		},
		Cancellation: CancellationConfig{
			FeeRate: getEnvAsFloat("CANCELLATION_FEE_RATE", 0.10),
			FeeCap:  int64(getEnvAsInt("CANCELLATION_FEE_CAP", 500)),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Payment.MerchantToken == "" {
		return fmt.Errorf("PAYMENT_MERCHANT_TOKEN is required")
	}

	if c.Coins.EarnRate < 0 || c.Coins.EarnRate > 1 {
		return fmt.Errorf("COIN_EARN_RATE must be between 0 and 1")
	}

	if c.Cancellation.FeeRate < 0 || c.Cancellation.FeeRate > 1 {
		return fmt.Errorf("CANCELLATION_FEE_RATE must be between 0 and 1")
	}

	return nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt gets an environment variable as an integer with a fallback value
func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Invalid integer value for %s, using fallback %d", key, fallback)
	}
	return fallback
}

// getEnvAsFloat gets an environment variable as a float with a fallback value
func getEnvAsFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Printf("Invalid float value for %s, using fallback %f", key, fallback)
	}
	return fallback
}

// getEnvAsSlice gets an environment variable as a comma-separated slice
func getEnvAsSlice(key string, fallback []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
