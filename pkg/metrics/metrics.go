package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// 支付网关调用延迟（毫秒）
	ProcessorCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_processor_call_latency_ms",
			Help:    "Payment processor call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
		[]string{"operation", "status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	StageTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_transition_count",
			Help: "Stage status transition requests by target status and result",
		},
		[]string{"target", "result"},
	)

	// outcome: completed, processing, skipped, failed, auth_required, unknown
	EscrowChargeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_charge_count",
			Help: "Escrow commencement charge attempts by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_event_count",
			Help: "Processor webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	ReconciledPaymentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciled_payment_count",
			Help: "Processing payments resolved by the reconciliation job",
		},
		[]string{"outcome"},
	)

	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Outbox events published to the message bus",
		},
		[]string{"status"},
	)

	MQHandlerErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_handler_error_count",
			Help: "Consumer handler failures by routing key and error type",
		},
		[]string{"routing_key", "error_type"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordProcessorCall 记录支付网关调用延迟
func RecordProcessorCall(operation, status string, duration time.Duration) {
	ProcessorCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery labels by the leading SQL verb to keep cardinality bounded.
func IncrementSlowQuery(sql string, _ time.Duration) {
	op := "unknown"
	if fields := strings.Fields(sql); len(fields) > 0 {
		op = strings.ToLower(fields[0])
	}
	SlowQueryCount.WithLabelValues(op).Inc()
}

func IncrementStageTransition(target, result string) {
	StageTransitionCount.WithLabelValues(target, result).Inc()
}

func IncrementEscrowCharge(outcome string) {
	EscrowChargeCount.WithLabelValues(outcome).Inc()
}

func IncrementWebhookEvent(eventType, result string) {
	WebhookEventCount.WithLabelValues(eventType, result).Inc()
}

func IncrementReconciled(outcome string) {
	ReconciledPaymentCount.WithLabelValues(outcome).Inc()
}

func IncrementOutboxPublish(status string) {
	OutboxPublishCount.WithLabelValues(status).Inc()
}

func IncrementMQError(routingKey, errorType string) {
	MQHandlerErrorCount.WithLabelValues(routingKey, errorType).Inc()
}
