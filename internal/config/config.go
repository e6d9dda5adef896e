package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server"`
	MongoDB   MongoDBConfig   `json:"mongodb"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Cache     CacheConfig     `json:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig holds admin HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// Admin surface rate limit, per client IP
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI             string        `json:"uri"`
	Database        string        `json:"database"`
	AlertCollection string        `json:"alert_collection"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	MaxPoolSize     uint64        `json:"max_pool_size"`
}

// UpstreamConfig holds market data API configuration
type UpstreamConfig struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// CacheConfig holds two-tier cache configuration
type CacheConfig struct {
	// TTL per volatility class
	TickerTTL    time.Duration `json:"ticker_ttl"`
	ReferenceTTL time.Duration `json:"reference_ttl"`
	MaxSize      int           `json:"max_size"`

	// Remote tier; empty RedisAddr disables it
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"`
	RemoteTimeout time.Duration `json:"remote_timeout"`
}

// ClassLimit holds the token bucket parameters for one resource class
type ClassLimit struct {
	Capacity        float64 `json:"capacity"`
	RefillPerSecond float64 `json:"refill_per_second"`
}

// RateLimitConfig holds admission control configuration per resource class
type RateLimitConfig struct {
	Ticker         ClassLimit    `json:"ticker"`
	Reference      ClassLimit    `json:"reference"`
	AcquireTimeout time.Duration `json:"acquire_timeout"`
}

// SchedulerConfig holds evaluation loop configuration
type SchedulerConfig struct {
	Interval       time.Duration `json:"interval"`
	Deadline       time.Duration `json:"deadline"`
	MaxConcurrency int           `json:"max_concurrency"`
}

// NotifierConfig holds trigger notification configuration
type NotifierConfig struct {
	WebhookURL string        `json:"webhook_url"`
	Timeout    time.Duration `json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnv("SERVER_PORT", "8080"),
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestsPerSecond: getFloatEnv("SERVER_REQUESTS_PER_SECOND", 10),
		},
		MongoDB: MongoDBConfig{
			URI:             getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:        getEnv("MONGODB_DATABASE", "price_alerts"),
			AlertCollection: getEnv("MONGODB_ALERT_COLLECTION", "alerts"),
			ConnectTimeout:  getDurationEnv("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:     getUint64Env("MONGODB_MAX_POOL_SIZE", 100),
		},
		Upstream: UpstreamConfig{
			Endpoint: getEnv("UPSTREAM_ENDPOINT", "https://api.binance.com"),
			Timeout:  getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			TickerTTL:     getDurationEnv("CACHE_TICKER_TTL", 10*time.Second),
			ReferenceTTL:  getDurationEnv("CACHE_REFERENCE_TTL", time.Hour),
			MaxSize:       getIntEnv("CACHE_MAX_SIZE", 10000),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("REDIS_DB", 0),
			RemoteTimeout: getDurationEnv("CACHE_REMOTE_TIMEOUT", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			Ticker: ClassLimit{
				Capacity:        getFloatEnv("RATE_LIMIT_TICKER_CAPACITY", 20),
				RefillPerSecond: getFloatEnv("RATE_LIMIT_TICKER_REFILL_PER_SEC", 20),
			},
			Reference: ClassLimit{
				Capacity:        getFloatEnv("RATE_LIMIT_REFERENCE_CAPACITY", 5),
				RefillPerSecond: getFloatEnv("RATE_LIMIT_REFERENCE_REFILL_PER_SEC", 1),
			},
			AcquireTimeout: getDurationEnv("RATE_LIMIT_ACQUIRE_TIMEOUT", 2*time.Second),
		},
		Scheduler: SchedulerConfig{
			Interval:       getDurationEnv("SCHEDULER_INTERVAL", 10*time.Second),
			Deadline:       getDurationEnv("SCHEDULER_DEADLINE", 8*time.Second),
			MaxConcurrency: getIntEnv("SCHEDULER_MAX_CONCURRENCY", 8),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnv("NOTIFIER_WEBHOOK_URL", ""),
			Timeout:    getDurationEnv("NOTIFIER_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("LOG_ENVIRONMENT", "development"),
			OutputPaths: getStringSliceEnv("LOG_OUTPUT_PATHS", []string{"stdout"}),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uint64Value, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uint64Value
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Simple comma-separated parsing
		return []string{value}
	}
	return defaultValue
}
