package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 4000
	cfg.Server.ReadTimeoutSeconds = 30
	cfg.Server.WriteTimeoutSeconds = 30
	cfg.Queue.Backend = "memory"
	cfg.Webhook.Secret = "secret"
	cfg.Dedupe.TTLSeconds = 300
	cfg.Dedupe.MaxEntries = 5000
	cfg.Worker.MaxAttempts = 3
	cfg.Worker.BackoffBaseSeconds = 2
	cfg.Worker.DefaultReply = "Desculpe, pode detalhar?"
	cfg.Tenant.Strategy = "static"
	cfg.Tenant.StaticID = "default"
	return cfg
}

func TestValidateStaticAccepts(t *testing.T) {
	require.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStaticRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing secret", func(c *Config) { c.Webhook.Secret = "" }, "webhook.secret"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown backend", func(c *Config) { c.Queue.Backend = "sqs" }, "queue.backend"},
		{"redis backend without host", func(c *Config) { c.Queue.Backend = "redis" }, "database.redis.host"},
		{"kafka backend without brokers", func(c *Config) { c.Queue.Backend = "kafka" }, "queue.kafka.brokers"},
		{"zero max attempts", func(c *Config) { c.Worker.MaxAttempts = 0 }, "worker.max_attempts"},
		{"bad retry strategy", func(c *Config) { c.Worker.RetryStrategy = "eventually" }, "worker.retry_strategy"},
		{"empty default reply", func(c *Config) { c.Worker.DefaultReply = "" }, "worker.default_reply"},
		{"bad tenant strategy", func(c *Config) { c.Tenant.Strategy = "jwt" }, "tenant.strategy"},
		{"zero dedupe cap", func(c *Config) { c.Dedupe.MaxEntries = 0 }, "dedupe.max_entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateKafkaBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Backend = "kafka"
	cfg.Queue.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Queue.Kafka.GroupID = "courier"
	cfg.Queue.Kafka.Topic = "inbound"

	require.NoError(t, ValidateStatic(cfg))
}

func TestValidateRedisBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Backend = "redis"
	cfg.Database.Redis.Host = "localhost"
	cfg.Database.Redis.Port = 6379

	require.NoError(t, ValidateStatic(cfg))
}
