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

// Config holds all runtime configuration for the repricer daemon
type Config struct {
	Port            string
	Environment     string
	StatusAuthToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyNamespace  string

	MarketAPIURL  string
	MarketAPIKeys []string
	AppIDs        []int

	ListInterval    time.Duration
	RepriceInterval time.Duration

	SQLitePath string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	apiKeys := splitList(getEnv("MARKET_API_KEYS", ""))
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("MARKET_API_KEYS is required (comma-separated list of account API keys)")
	}

	appIDs, err := parseAppIDs(getEnv("APP_IDS", "730,570,440"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		StatusAuthToken: getEnv("STATUS_AUTH_TOKEN", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		KeyNamespace:    getEnv("KEY_NAMESPACE", "repricer"),
		MarketAPIURL:    getEnv("MARKET_API_URL", "https://api.opskins.com"),
		MarketAPIKeys:   apiKeys,
		AppIDs:          appIDs,
		ListInterval:    time.Duration(getEnvInt("LIST_INTERVAL_MINUTES", 10)) * time.Minute,
		RepriceInterval: time.Duration(getEnvInt("REPRICE_INTERVAL_MINUTES", 60)) * time.Minute,
		SQLitePath:      getEnv("SQLITE_PATH", "data/repricer.db"),
	}

	AppConfig = config
	return config, nil
}

// MaskKey masks an account API key for logging, keeping short recognizable edges
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAppIDs(value string) ([]int, error) {
	var ids []int
	for _, part := range splitList(value) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid app id %q in APP_IDS: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("APP_IDS must contain at least one app id")
	}
	return ids, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
