package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	CoinGecko   CoinGeckoConfig
	Ingestion   IngestionConfig
	Aggregation AggregationConfig
	Retention   RetentionConfig
	Backfill    BackfillConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds authentication specific configuration
type AuthConfig struct {
	JWTSecret           string
	AccessTokenDuration time.Duration
}

// CoinGeckoConfig holds settings for the external price API client
type CoinGeckoConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	CallSpacing   time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// IngestionConfig holds settings for the scheduled price ingestion loop
type IngestionConfig struct {
	Interval      time.Duration
	Symbols       []string
	QuoteCurrency string
}

// AggregationConfig holds settings for the rollup loop
type AggregationConfig struct {
	Interval time.Duration
}

// RetentionConfig holds settings for the raw-data retention job
type RetentionConfig struct {
	RawDays  int
	Interval time.Duration
}

// BackfillConfig holds settings for the daily-history backfill job
type BackfillConfig struct {
	Enabled      bool
	Days         int
	Interval     time.Duration
	InitialDelay time.Duration
}

// CacheConfig selects and tunes the latest-price cache tier
type CacheConfig struct {
	Backend       string // "memory" or "redis"
	LatestTTL     time.Duration
	SweepInterval time.Duration
}

// RedisConfig holds Redis specific configuration
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// RateLimitConfig holds per-user request throttling configuration
type RateLimitConfig struct {
	PerMinute int
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Read from environment variables
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Auth defaults
	v.SetDefault("auth.accessTokenDuration", "30m")

	// CoinGecko defaults: the free tier allows roughly one call every
	// six seconds account-wide
	v.SetDefault("coingecko.baseURL", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.timeout", "10s")
	v.SetDefault("coingecko.callSpacing", "6s")
	v.SetDefault("coingecko.retryAttempts", 3)
	v.SetDefault("coingecko.retryDelay", "5s")

	// Ingestion defaults
	v.SetDefault("ingestion.interval", "5m")
	v.SetDefault("ingestion.symbols", []string{
		"bitcoin", "ethereum", "ripple", "solana", "cardano", "dogecoin",
	})
	v.SetDefault("ingestion.quoteCurrency", "usd")

	// Aggregation defaults
	v.SetDefault("aggregation.interval", "1h")

	// Retention defaults
	v.SetDefault("retention.rawDays", 30)
	v.SetDefault("retention.interval", "6h")

	// Backfill defaults
	v.SetDefault("backfill.enabled", false)
	v.SetDefault("backfill.days", 180)
	v.SetDefault("backfill.interval", "24h")
	v.SetDefault("backfill.initialDelay", "1m")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.latestTTL", "60s")
	v.SetDefault("cache.sweepInterval", "60s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "price-events")

	// Rate limit defaults
	v.SetDefault("ratelimit.perMinute", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
