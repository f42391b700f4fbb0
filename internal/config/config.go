package config

import (
	"time"
)

// Config is resolved once at startup and treated as immutable afterwards;
// no component mutates it.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Queue          QueueConfig
	Webhook        WebhookConfig
	Dedupe         DedupeConfig
	Worker         WorkerConfig
	Tenant         TenantConfig
	Gateway        GatewayConfig
	RateLimit      RateLimitConfig
	CircuitBreaker CircuitBreakerConfig
	Logging        LoggingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	BasePrefix          string        `mapstructure:"base_prefix"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Backend           string      `mapstructure:"backend"` // "memory", "redis", "kafka"
	Name              string      `mapstructure:"name"`
	PopTimeoutSeconds int         `mapstructure:"pop_timeout_seconds"`
	Kafka             KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

type WebhookConfig struct {
	Secret               string `mapstructure:"secret"`
	APIKey               string `mapstructure:"api_key"`
	TimestampSkewSeconds int    `mapstructure:"timestamp_skew_seconds"`
}

type DedupeConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries"`
}

type WorkerConfig struct {
	MaxAttempts        int    `mapstructure:"max_attempts"`
	BackoffBaseSeconds int    `mapstructure:"backoff_base_seconds"`
	RetryStrategy      string `mapstructure:"retry_strategy"` // "requeue", "inline" or "" for backend default
	DefaultReply       string `mapstructure:"default_reply"`
}

type TenantConfig struct {
	Strategy string `mapstructure:"strategy"` // "static", "host", "header"
	StaticID string `mapstructure:"static_id"`
	Header   string `mapstructure:"header"`
}

type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	TimeoutSeconds time.Duration `mapstructure:"timeout_seconds"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
