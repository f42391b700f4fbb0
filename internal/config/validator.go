package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateQueue(cfg.Queue, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateWebhook(cfg.Webhook); err != nil {
		errors = append(errors, err)
	}

	if err := validateDedupe(cfg.Dedupe); err != nil {
		errors = append(errors, err)
	}

	if err := validateWorker(cfg.Worker); err != nil {
		errors = append(errors, err)
	}

	if err := validateTenant(cfg.Tenant); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateQueue(cfg QueueConfig, db DatabaseConfig) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "redis":
		return validateRedis(db.Redis)
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "queue.backend",
			Message: fmt.Sprintf("unknown queue backend: %s (supported: memory, redis, kafka)", cfg.Backend),
		}
	}
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required for the redis queue backend",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "queue.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("queue.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "queue.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "queue.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	return nil
}

func validateWebhook(cfg WebhookConfig) error {
	if cfg.Secret == "" {
		return &ValidationError{
			Field:   "webhook.secret",
			Message: "webhook shared secret is required",
		}
	}

	if cfg.TimestampSkewSeconds < 0 {
		return &ValidationError{
			Field:   "webhook.timestamp_skew_seconds",
			Message: "timestamp skew must be non-negative",
		}
	}

	return nil
}

func validateDedupe(cfg DedupeConfig) error {
	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "dedupe.ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	if cfg.MaxEntries < 1 {
		return &ValidationError{
			Field:   "dedupe.max_entries",
			Message: "max_entries must be positive",
		}
	}

	return nil
}

func validateWorker(cfg WorkerConfig) error {
	if cfg.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "worker.max_attempts",
			Message: "max_attempts must be positive",
		}
	}

	if cfg.BackoffBaseSeconds < 0 {
		return &ValidationError{
			Field:   "worker.backoff_base_seconds",
			Message: "backoff_base_seconds must be non-negative",
		}
	}

	switch cfg.RetryStrategy {
	case "", "requeue", "inline":
	default:
		return &ValidationError{
			Field:   "worker.retry_strategy",
			Message: fmt.Sprintf("unknown retry strategy: %s (supported: requeue, inline)", cfg.RetryStrategy),
		}
	}

	if cfg.DefaultReply == "" {
		return &ValidationError{
			Field:   "worker.default_reply",
			Message: "default_reply cannot be empty",
		}
	}

	return nil
}

func validateTenant(cfg TenantConfig) error {
	switch cfg.Strategy {
	case "static", "host", "header":
	default:
		return &ValidationError{
			Field:   "tenant.strategy",
			Message: fmt.Sprintf("unknown tenant strategy: %s (supported: static, host, header)", cfg.Strategy),
		}
	}

	if cfg.StaticID == "" {
		return &ValidationError{
			Field:   "tenant.static_id",
			Message: "static tenant id cannot be empty",
		}
	}

	return nil
}
