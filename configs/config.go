package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	APIKey      string
	LogLevel    string

	AdminUsername string
	AdminPassword string

	ForecastCacheTTL   time.Duration
	ForecastTimeout    time.Duration
	RandomSeed         uint64
	ForecastConfigFile string
	ConfigDBPath       string
	HistoryFile        string

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadEnvFile .env があれば読み込む（無ければ false）
func LoadEnvFile(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		APIKey:             getEnv("API_KEY", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		ForecastCacheTTL:   getEnvDuration("FORECAST_CACHE_TTL", 24*time.Hour),
		ForecastTimeout:    getEnvDuration("FORECAST_TIMEOUT", 10*time.Second),
		RandomSeed:         getEnvUint("RANDOM_SEED", 0),
		ForecastConfigFile: getEnv("FORECAST_CONFIG_FILE", ""),
		ConfigDBPath:       getEnv("CONFIG_DB_PATH", ""),
		HistoryFile:        getEnv("HISTORY_FILE", ""),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration "90s" や "24h" を読む。解釈できなければ既定値。
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if n, err := strconv.ParseUint(os.Getenv(key), 10, 64); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}
