package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/sheets"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration
	Sheets      SheetsConfig
	Sync        SyncConfig
}

// SheetsConfig is everything needed to talk to the spreadsheet. The CLI loads
// only this part.
type SheetsConfig struct {
	ClientEmail   string
	PrivateKey    string
	SpreadsheetID string
	TokenURL      string
	BaseURL       string
	Scope         string
	HTTPTimeout   time.Duration
}

type SyncConfig struct {
	Workers         int
	QueueSize       int
	JobTimeout      time.Duration
	LockTTL         time.Duration
	ImportChunkSize int
}

func LoadConfig() (*Config, error) {
	expiry, err := getDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return nil, err
	}

	sheetsCfg, err := LoadSheetsConfig()
	if err != nil {
		return nil, err
	}

	syncCfg, err := LoadSyncConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTExpiry:   expiry,
		Sheets:      *sheetsCfg,
		Sync:        *syncCfg,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func LoadSheetsConfig() (*SheetsConfig, error) {
	timeout, err := getDuration("SYNC_HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &SheetsConfig{
		ClientEmail:   os.Getenv("GOOGLE_SERVICE_ACCOUNT_EMAIL"),
		PrivateKey:    sheets.NormalizePrivateKey(os.Getenv("GOOGLE_PRIVATE_KEY")),
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		TokenURL:      getEnv("GOOGLE_TOKEN_URL", sheets.DefaultTokenURL),
		BaseURL:       getEnv("SHEETS_BASE_URL", sheets.DefaultBaseURL),
		Scope:         getEnv("GOOGLE_SCOPE", sheets.DefaultScope),
		HTTPTimeout:   timeout,
	}

	if cfg.ClientEmail == "" {
		return nil, errors.New("GOOGLE_SERVICE_ACCOUNT_EMAIL is required")
	}
	if cfg.PrivateKey == "" {
		return nil, errors.New("GOOGLE_PRIVATE_KEY is required")
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("GOOGLE_SPREADSHEET_ID is required")
	}

	return cfg, nil
}

// Credentials converts the config into the token provider's input.
func (c *SheetsConfig) Credentials() sheets.Credentials {
	return sheets.Credentials{
		ClientEmail: c.ClientEmail,
		PrivateKey:  c.PrivateKey,
		TokenURL:    c.TokenURL,
		Scope:       c.Scope,
	}
}

func LoadSyncConfig() (*SyncConfig, error) {
	workers, err := getInt("SYNC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := getInt("SYNC_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	chunkSize, err := getInt("IMPORT_CHUNK_SIZE", 100)
	if err != nil {
		return nil, err
	}
	jobTimeout, err := getDuration("SYNC_JOB_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	lockTTL, err := getDuration("SYNC_LOCK_TTL", "3m")
	if err != nil {
		return nil, err
	}

	if workers < 1 {
		return nil, errors.New("SYNC_WORKERS must be at least 1")
	}
	if queueSize < 1 {
		return nil, errors.New("SYNC_QUEUE_SIZE must be at least 1")
	}
	if chunkSize < 1 {
		return nil, errors.New("IMPORT_CHUNK_SIZE must be at least 1")
	}
	// A lock that expires mid-job lets a second worker into the same key.
	if lockTTL <= jobTimeout {
		return nil, errors.New("SYNC_LOCK_TTL must be longer than SYNC_JOB_TIMEOUT")
	}

	return &SyncConfig{
		Workers:         workers,
		QueueSize:       queueSize,
		JobTimeout:      jobTimeout,
		LockTTL:         lockTTL,
		ImportChunkSize: chunkSize,
	}, nil
}

// LoadAuthConfig reads only the API token settings, for issuing tokens
// outside the server.
func LoadAuthConfig() (string, time.Duration, error) {
	expiry, err := getDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return "", 0, err
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", 0, errors.New("JWT_SECRET is required")
	}
	return secret, expiry, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return n, nil
}
