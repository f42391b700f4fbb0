package constants

import "time"

const (
	DefaultHTTPTimeout = 15 * time.Second
)

const (
	// DedupeKeyFormat is tenant:evt:eventID, shared with the gateway tooling
	// that inspects these keys.
	DedupeKeyFormat = "%s:evt:%s"

	StatsProcessedSuccessKey = "stats:processed_success"
	StatsProcessedFailedKey  = "stats:processed_failed"
)

const (
	DefaultQueueName  = "queue:inbound:default"
	DefaultPopTimeout = 5 * time.Second
)

const (
	EventTypeMessageReceived = "message_received"
	EventTypeUnknown         = "unknown"

	// SelfMessageIDPrefix marks gateway-originated message ids; the worker
	// never replies to these.
	SelfMessageIDPrefix = "true_"
)

const (
	AuditBufferSize = 100
)

const (
	DefaultDedupeTTLSeconds = 300
	DefaultDedupeMaxEntries = 5000
)

const (
	DefaultMaxAttempts        = 3
	DefaultBackoffBaseSeconds = 2
	WorkerErrorPause          = 2 * time.Second
)

const (
	DefaultTimestampSkewSeconds = 300
)

const (
	DefaultTenantID = "default"
	TenantHeader    = "X-Tenant-Id"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)
