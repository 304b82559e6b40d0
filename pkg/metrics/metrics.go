package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	OperationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_operation_attempts_total",
		Help: "The total number of operation attempts by outcome",
	}, []string{"operation", "outcome"})

	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_operation_errors_total",
		Help: "Total number of classified errors by kind",
	}, []string{"operation", "kind"})

	RetriesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_retries_executed_total",
		Help: "Number of retries that were executed after a backoff wait",
	}, []string{"operation"})

	CircuitOpenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_circuit_open_rejections_total",
		Help: "Number of calls rejected by the circuit breaker gate",
	}, []string{"operation"})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bundler_circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bundler_gas_price_gwei",
		Help: "Last estimated gas price in gwei after multiplier and clamping",
	})

	GasQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundler_gas_quotes_total",
		Help: "The total number of gas price quotes fetched",
	})

	BundlesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_bundles_submitted_total",
		Help: "The total number of bundles by terminal outcome",
	}, []string{"outcome"})

	BundleProcessingTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bundler_bundle_processing_seconds",
		Help:    "Time taken to assemble, simulate and submit one bundle",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms with 10 buckets doubling in size
	})

	TrackedOperations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bundler_tracked_operations",
		Help: "Number of operations currently tracked by status",
	}, []string{"status"})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundler_alerts_sent_total",
		Help: "The total number of alert notifications by channel and outcome",
	}, []string{"channel", "outcome"})
)
