// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Log      LogConfig
	Shop     ShopConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string
	Env  string
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string
}

// DatabaseConfig selects the SQL dialect and its DSN.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	SigningKey     string
	ExpirationTime time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// ShopConfig holds engine and seed settings.
type ShopConfig struct {
	LowStockThreshold int
	ClampDiscount     bool
	Seed              bool
	AdminPassword     string
}

// Development fallbacks. Load refuses them in production.
const (
	defaultSigningKey    = "shop-engine-dev-signing-key"
	defaultAdminPassword = "admin123"
)

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Load reads an optional .env file, then environment variables with defaults.
// In production the signing key must be set, and so must the admin password
// when seeding is enabled.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("APP_ENV", "development"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "shop.db"),
		},
		JWT: JWTConfig{
			SigningKey:     getEnv("JWT_SIGNING_KEY", defaultSigningKey),
			ExpirationTime: time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Shop: ShopConfig{
			LowStockThreshold: getEnvAsInt("LOW_STOCK_THRESHOLD", 10),
			ClampDiscount:     getEnvAsBool("CLAMP_DISCOUNT", false),
			Seed:              getEnvAsBool("SEED", true),
			AdminPassword:     getEnv("ADMIN_PASSWORD", defaultAdminPassword),
		},
	}

	if cfg.IsProduction() {
		if cfg.JWT.SigningKey == "" || cfg.JWT.SigningKey == defaultSigningKey {
			return nil, errors.New("JWT_SIGNING_KEY must be set in production")
		}
		if cfg.Shop.Seed && (cfg.Shop.AdminPassword == "" || cfg.Shop.AdminPassword == defaultAdminPassword) {
			return nil, errors.New("ADMIN_PASSWORD must be set in production when SEED is enabled")
		}
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
