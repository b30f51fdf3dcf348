// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/pkg/db"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort    string
	LogLevel      string
	StorageDriver string
	DB            db.Config

	CardEncryptionKey   string
	JWTSecret           string
	JWTTTL              time.Duration
	BcryptCost          int
	ExpirySweepSchedule string

	// Bootstrap administrator, created at startup when AdminUsername is set.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// LoadConfig loads configuration from environment variables.
// It returns an AppConfig instance or an error if any required variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	dbPort, err := getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getInt("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}
	bcryptCost, err := getInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	jwtTTL, err := time.ParseDuration(getString("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg := &AppConfig{
		ServerPort:    getString("SERVER_PORT", "8080"),
		LogLevel:      getString("LOG_LEVEL", "info"),
		StorageDriver: getString("STORAGE_DRIVER", StoragePostgres),
		DB: db.Config{
			Host:     getString("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getString("DB_USER", "user"),
			Password: getString("DB_PASSWORD", "password"),
			DBName:   getString("DB_NAME", "bankcards"),
			SSLMode:  getString("DB_SSLMODE", "disable"),
			MaxConns: maxConns,
		},
		CardEncryptionKey:   os.Getenv("CARD_ENCRYPTION_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTTTL:              jwtTTL,
		BcryptCost:          bcryptCost,
		ExpirySweepSchedule: getString("EXPIRY_SWEEP_SCHEDULE", "@hourly"),
		AdminUsername:       os.Getenv("ADMIN_USERNAME"),
		AdminEmail:          os.Getenv("ADMIN_EMAIL"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.StorageDriver != StoragePostgres && c.StorageDriver != StorageMemory {
		return fmt.Errorf("invalid STORAGE_DRIVER %q: want %q or %q", c.StorageDriver, StoragePostgres, StorageMemory)
	}
	if len(c.CardEncryptionKey) < cardnumber.MinSecretLength {
		return fmt.Errorf("CARD_ENCRYPTION_KEY must be at least %d bytes", cardnumber.MinSecretLength)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.AdminUsername != "" && (c.AdminEmail == "" || c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required when ADMIN_USERNAME is set")
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
