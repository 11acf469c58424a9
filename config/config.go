package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabasePath string
	MaxOpenConns int
	BusyTimeout  time.Duration

	// Provider configuration
	ProviderBaseURL string
	HTTPTimeout     time.Duration

	// Cache and ingestion tuning
	HouseCacheTTL       time.Duration
	IngestProgressEvery int // Entries between progress notifications

	// Logging
	LogLevel string

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		// A missing .env file is fine, the environment may already be populated
		_ = godotenv.Load()

		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Database
		DatabasePath: getEnvWithDefault("DATABASE_PATH", "bicho.db"),
		MaxOpenConns: 4,
		BusyTimeout:  10 * time.Second,

		// Provider
		ProviderBaseURL: strings.TrimRight(getEnvWithDefault("PROVIDER_BASE_URL", "https://bicho365.com"), "/"),
		HTTPTimeout:     30 * time.Second,

		// Cache and ingestion
		HouseCacheTTL:       3 * time.Hour,
		IngestProgressEvery: 1,

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if conns := os.Getenv("DB_MAX_OPEN_CONNS"); conns != "" {
		if parsed, err := strconv.Atoi(conns); err == nil {
			config.MaxOpenConns = parsed
		}
	}
	if busy := os.Getenv("DB_BUSY_TIMEOUT_MS"); busy != "" {
		if parsed, err := strconv.Atoi(busy); err == nil {
			config.BusyTimeout = time.Duration(parsed) * time.Millisecond
		}
	}
	if timeout := os.Getenv("HTTP_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			config.HTTPTimeout = parsed
		}
	}
	if ttl := os.Getenv("HOUSE_CACHE_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			config.HouseCacheTTL = parsed
		}
	}
	if every := os.Getenv("INGEST_PROGRESS_EVERY"); every != "" {
		if parsed, err := strconv.Atoi(every); err == nil {
			config.IngestProgressEvery = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	// Validate configuration
	if strings.TrimSpace(config.DatabasePath) == "" {
		return nil, fmt.Errorf("DATABASE_PATH cannot be empty")
	}
	if config.MaxOpenConns < 1 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1, got %d", config.MaxOpenConns)
	}
	if config.IngestProgressEvery < 1 {
		return nil, fmt.Errorf("INGEST_PROGRESS_EVERY must be at least 1, got %d", config.IngestProgressEvery)
	}
	if config.HouseCacheTTL <= 0 {
		return nil, fmt.Errorf("HOUSE_CACHE_TTL must be positive")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		DatabasePath:        "bicho_test.db",
		MaxOpenConns:        2,
		BusyTimeout:         time.Second,
		ProviderBaseURL:     "http://localhost",
		HTTPTimeout:         5 * time.Second,
		HouseCacheTTL:       time.Hour,
		IngestProgressEvery: 1,
		LogLevel:            "debug",
		Environment:         "test",
	}
}
