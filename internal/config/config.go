package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DataPath            string
	Port                string
	SyncFetchLimit      uint32
	DraftSaveDebounce   time.Duration
	Timezone            string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("PLUME_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	fetchLimit, err := parseUint32(getEnvOrDefault("PLUME_SYNC_FETCH_LIMIT", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUME_SYNC_FETCH_LIMIT: %w", err)
	}
	debounce, err := time.ParseDuration(getEnvOrDefault("PLUME_DRAFT_SAVE_DEBOUNCE", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUME_DRAFT_SAVE_DEBOUNCE: %w", err)
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("PLUME_ENCRYPTION_KEY_BASE64"),
		DataPath:            getEnvOrDefault("PLUME_DATA_PATH", "plume.db"),
		Port:                getEnvOrDefault("PORT", "8080"),
		SyncFetchLimit:      fetchLimit,
		DraftSaveDebounce:   debounce,
		Timezone:            getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("PLUME_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.DataPath == "" {
		return fmt.Errorf("PLUME_DATA_PATH must not be empty")
	}

	if c.DraftSaveDebounce <= 0 {
		return fmt.Errorf("PLUME_DRAFT_SAVE_DEBOUNCE must be positive")
	}

	return nil
}

func parseUint32(value string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
