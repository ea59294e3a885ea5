// Package metrics provides Prometheus metrics for the leaderboard pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Gateway metrics
	submissionsAccepted prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	votesAccepted       prometheus.Counter
	feedbackAccepted    prometheus.Counter
	duplicateHits       prometheus.Counter
	rateLimited         *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Store metrics
	storeOps       *prometheus.CounterVec
	storeOpErrors  *prometheus.CounterVec
	storeKeysSwept prometheus.Counter

	// Replay engine metrics
	replayVerifications prometheus.Counter
	replayFailures      *prometheus.CounterVec
	replayLatency       prometheus.Histogram

	// Reconciler metrics
	reconcilePasses    prometheus.Counter
	reconcileSkipped   prometheus.Counter
	reconcileFailures  prometheus.Counter
	reconcileDuration  prometheus.Histogram
	reconcileDrained   *prometheus.CounterVec
	reconcileRejected  prometheus.Counter
	reconcilePublished prometheus.Gauge
	snapshotGeneration prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // custom registry avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "wordfall",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.submissionsAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_submissions_accepted_total",
		Help:      "Score submissions durably enqueued by the gateway.",
	})
	m.submissionsRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_submissions_rejected_total",
		Help:      "Score submissions rejected at admission, by reason.",
	}, []string{"reason"})
	m.votesAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_votes_accepted_total",
		Help:      "Votes durably enqueued by the gateway.",
	})
	m.feedbackAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_feedback_accepted_total",
		Help:      "Feedback items durably enqueued by the gateway.",
	})
	m.duplicateHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_duplicate_hits_total",
		Help:      "Advisory duplicate checks that rejected a call.",
	})
	m.rateLimited = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_rate_limited_total",
		Help:      "Calls denied by the rate limiter, by action kind.",
	}, []string{"action"})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"endpoint", "method", "status_code"})

	m.storeOps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_operations_total",
		Help:      "Queue store operations by kind.",
	}, []string{"op"})
	m.storeOpErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_operation_errors_total",
		Help:      "Queue store operation failures by kind.",
	}, []string{"op"})
	m.storeKeysSwept = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_keys_swept_total",
		Help:      "Expired keys removed by the store janitor.",
	})

	m.replayVerifications = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "replay_verifications_total",
		Help:      "Session records replayed for verification.",
	})
	m.replayFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "replay_failures_total",
		Help:      "Replay verification failures by cause.",
	}, []string{"cause"})
	m.replayLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "replay_latency_ms",
		Help:      "Replay reconstruction latency in milliseconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	m.reconcilePasses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_passes_total",
		Help:      "Completed reconciliation passes.",
	})
	m.reconcileSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_skipped_total",
		Help:      "Scheduled passes skipped because one was already running.",
	})
	m.reconcileFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_failures_total",
		Help:      "Reconciliation passes that failed before publication.",
	})
	m.reconcileDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "reconcile_duration_ms",
		Help:      "Reconciliation pass duration in milliseconds.",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
	})
	m.reconcileDrained = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_drained_total",
		Help:      "Queue entries consumed per pass, by kind.",
	}, []string{"kind"})
	m.reconcileRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_rejected_total",
		Help:      "Submissions dropped during authoritative validation.",
	})
	m.reconcilePublished = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "reconcile_published_scores",
		Help:      "Scores retained in the last published snapshot.",
	})
	m.snapshotGeneration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "snapshot_generation_unix_ms",
		Help:      "Generation timestamp of the last published snapshot.",
	})
}

// Gateway helpers.

func RecordSubmissionAccepted() {
	globalManager.submissionsAccepted.Inc()
}

func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

func RecordVoteAccepted() {
	globalManager.votesAccepted.Inc()
}

func RecordFeedbackAccepted() {
	globalManager.feedbackAccepted.Inc()
}

func RecordDuplicateHit() {
	globalManager.duplicateHits.Inc()
}

func RecordRateLimited(action string) {
	globalManager.rateLimited.WithLabelValues(action).Inc()
}

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Store helpers.

func RecordStoreOp(op string) {
	globalManager.storeOps.WithLabelValues(op).Inc()
}

func RecordStoreOpError(op string) {
	globalManager.storeOpErrors.WithLabelValues(op).Inc()
}

func RecordStoreKeysSwept(n int) {
	globalManager.storeKeysSwept.Add(float64(n))
}

// Replay helpers.

func RecordReplayVerification() {
	globalManager.replayVerifications.Inc()
}

func RecordReplayFailure(cause string) {
	globalManager.replayFailures.WithLabelValues(cause).Inc()
}

func RecordReplayLatency(latencyMs float64) {
	globalManager.replayLatency.Observe(latencyMs)
}

// Reconciler helpers.

func RecordReconcilePass() {
	globalManager.reconcilePasses.Inc()
}

func RecordReconcileSkipped() {
	globalManager.reconcileSkipped.Inc()
}

func RecordReconcileFailure() {
	globalManager.reconcileFailures.Inc()
}

func RecordReconcileDuration(durationMs float64) {
	globalManager.reconcileDuration.Observe(durationMs)
}

func RecordReconcileDrained(kind string, n int) {
	globalManager.reconcileDrained.WithLabelValues(kind).Add(float64(n))
}

func RecordReconcileRejected(n int) {
	globalManager.reconcileRejected.Add(float64(n))
}

func UpdatePublishedScores(n int) {
	globalManager.reconcilePublished.Set(float64(n))
}

func UpdateSnapshotGeneration(unixMs int64) {
	globalManager.snapshotGeneration.Set(float64(unixMs))
}

// GetRegistry exposes the custom registry for the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
