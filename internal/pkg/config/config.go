package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Supported state backends.
const (
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
	StateBackendMemory = "memory"
)

// StateConfig selects the durable state backend shared by every running
// client window of the same profile.
type StateConfig struct {
	Backend   string // "file", "redis" or "memory"
	FilePath  string
	RedisAddr string
	RedisDB   int
}

type AuthConfig struct {
	// CallbackSecret verifies the token delivered by the external
	// identity-provider redirect.
	CallbackSecret string
}

type Config struct {
	ServerPort  string
	MetricsPort string
	PprofPort   string
	API         APIConfig
	State       StateConfig
	Auth        AuthConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8750"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
		PprofPort:   getEnvOrDefault("PPROF_PORT", "6060"),
		API: APIConfig{
			BaseURL: getEnvOrDefault("FOLIO_API_URL", ""),
			Timeout: getDurationOrDefault("FOLIO_API_TIMEOUT", 15*time.Second),
		},
		State: StateConfig{
			Backend:   getEnvOrDefault("STATE_BACKEND", "file"),
			FilePath:  getEnvOrDefault("STATE_FILE", defaultStateFile()),
			RedisAddr: getEnvOrDefault("STATE_REDIS_ADDR", "localhost:6379"),
			RedisDB:   getIntOrDefault("STATE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			CallbackSecret: getEnvOrDefault("CALLBACK_SECRET", ""),
		},
	}

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("FOLIO_API_URL environment variable is required")
	}

	return cfg, nil
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "folioview-state.json"
	}
	return dir + "/folioview/state.json"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
