package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"courier/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.base_prefix", "SERVER_BASE_PREFIX")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("queue.backend", "QUEUE_BACKEND")
	viper.BindEnv("queue.name", "QUEUE_NAME")
	viper.BindEnv("queue.kafka.brokers", "QUEUE_KAFKA_BROKERS")
	viper.BindEnv("queue.kafka.group_id", "QUEUE_KAFKA_GROUP_ID")
	viper.BindEnv("queue.kafka.topic", "QUEUE_KAFKA_TOPIC")

	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("webhook.api_key", "WEBHOOK_API_KEY")

	viper.BindEnv("dedupe.ttl_seconds", "DEDUPE_TTL_SECONDS")

	viper.BindEnv("worker.max_attempts", "WORKER_MAX_ATTEMPTS")
	viper.BindEnv("worker.default_reply", "WORKER_DEFAULT_REPLY")

	viper.BindEnv("tenant.strategy", "TENANT_STRATEGY")
	viper.BindEnv("tenant.static_id", "TENANT_STATIC_ID")

	viper.BindEnv("gateway.base_url", "GATEWAY_BASE_URL")
	viper.BindEnv("gateway.api_key", "GATEWAY_API_KEY")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func setDefaults() {
	viper.SetDefault("server.port", 4000)
	viper.SetDefault("server.read_timeout_seconds", 30)
	viper.SetDefault("server.write_timeout_seconds", 30)
	viper.SetDefault("queue.backend", "memory")
	viper.SetDefault("queue.name", constants.DefaultQueueName)
	viper.SetDefault("queue.pop_timeout_seconds", int(constants.DefaultPopTimeout.Seconds()))
	viper.SetDefault("webhook.timestamp_skew_seconds", constants.DefaultTimestampSkewSeconds)
	viper.SetDefault("dedupe.ttl_seconds", constants.DefaultDedupeTTLSeconds)
	viper.SetDefault("dedupe.max_entries", constants.DefaultDedupeMaxEntries)
	viper.SetDefault("worker.max_attempts", constants.DefaultMaxAttempts)
	viper.SetDefault("worker.backoff_base_seconds", constants.DefaultBackoffBaseSeconds)
	viper.SetDefault("worker.default_reply", "Desculpe, pode detalhar?")
	viper.SetDefault("tenant.strategy", "static")
	viper.SetDefault("tenant.static_id", "default")
	viper.SetDefault("tenant.header", "X-Tenant-Id")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("QUEUE_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Queue.Kafka.Brokers = brokers
		}
	}

	return nil
}
