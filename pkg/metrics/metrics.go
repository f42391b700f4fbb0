package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total HTTP requests handled by the webhook service (count)",
		},
		[]string{"path", "method", "status"},
	)

	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_received_total",
			Help: "Inbound events accepted and enqueued (count)",
		},
		[]string{"event_type"},
	)

	EventsDuplicateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_duplicate_total",
			Help: "Inbound events declined as duplicates (count)",
		},
		[]string{"event_type"},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Events consumed by the worker, by outcome (count)",
		},
		[]string{"status"},
	)

	EventsIntentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_intent_total",
			Help: "Events classified, by intent label (count)",
		},
		[]string{"intent"},
	)

	ProcessingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_latency_seconds",
			Help:    "Latency of a single worker processing pass in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_size",
			Help: "Current number of items waiting in the inbound queue (count)",
		},
		[]string{"backend"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Delivery retry attempts, by strategy (count)",
		},
		[]string{"strategy"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"component", "strategy", "reason"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterWebhookMetrics() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(EventsDuplicateTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterWorkerMetrics() {
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(EventsIntentTotal)
	prometheus.MustRegister(ProcessingLatency)
	prometheus.MustRegister(QueueSize)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncRequest(path, method, status string) {
	RequestsTotal.WithLabelValues(path, method, status).Inc()
}

func ObserveProcessingLatency(duration time.Duration) {
	ProcessingLatency.Observe(duration.Seconds())
}

func SetQueueSize(backend string, size int64) {
	QueueSize.WithLabelValues(backend).Set(float64(size))
}
