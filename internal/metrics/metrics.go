package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Renewal reasons.
const (
	ReasonExpiring = "expiring"
	ReasonRejected = "rejected"
)

var (
	// Backend metrics
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// Storage metrics
	storageOperationsTotal *prometheus.CounterVec

	// Session metrics
	sessionRenewalsTotal        *prometheus.CounterVec
	sessionRenewalFailuresTotal prometheus.Counter

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Recorder records vaultstore metrics. Recording is a no-op until InitMetrics
// has been called, so libraries can record unconditionally.
type Recorder struct{}

// NewRecorder creates a new Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics registers all metrics with the default Prometheus registry.
func InitMetrics() {
	metricsOnce.Do(func() {
		backendRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultstore_backend_requests_total",
				Help: "Total number of secrets backend requests",
			},
			[]string{"operation", "outcome"},
		)

		backendRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultstore_backend_request_duration_seconds",
				Help:    "Duration of secrets backend requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		)

		storageOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultstore_storage_operations_total",
				Help: "Total number of storage operations served",
			},
			[]string{"operation", "outcome"},
		)

		sessionRenewalsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultstore_session_renewals_total",
				Help: "Total number of session renewals",
			},
			[]string{"reason"},
		)

		sessionRenewalFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vaultstore_session_renewal_failures_total",
				Help: "Total number of failed session renewals",
			},
		)

		metricsRegistered.Store(true)
	})
}

// IsMetricsRegistered reports whether InitMetrics has run.
func IsMetricsRegistered() bool {
	return metricsRegistered.Load()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BackendRequest records one backend call.
func (r *Recorder) BackendRequest(operation, outcome string, durationSeconds float64) {
	if r == nil || !metricsRegistered.Load() {
		return
	}
	backendRequestsTotal.WithLabelValues(operation, outcome).Inc()
	backendRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// StorageOperation records one storage operation.
func (r *Recorder) StorageOperation(operation, outcome string) {
	if r == nil || !metricsRegistered.Load() {
		return
	}
	storageOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// SessionRenewed records a successful session renewal.
func (r *Recorder) SessionRenewed(reason string) {
	if r == nil || !metricsRegistered.Load() {
		return
	}
	sessionRenewalsTotal.WithLabelValues(reason).Inc()
}

// SessionRenewalFailed records a failed session renewal.
func (r *Recorder) SessionRenewalFailed() {
	if r == nil || !metricsRegistered.Load() {
		return
	}
	sessionRenewalFailuresTotal.Inc()
}

// GetBackendRequestsTotal returns the backend request counter (for testing).
func GetBackendRequestsTotal() *prometheus.CounterVec {
	return backendRequestsTotal
}

// GetStorageOperationsTotal returns the storage operation counter (for testing).
func GetStorageOperationsTotal() *prometheus.CounterVec {
	return storageOperationsTotal
}

// GetSessionRenewalsTotal returns the session renewal counter (for testing).
func GetSessionRenewalsTotal() *prometheus.CounterVec {
	return sessionRenewalsTotal
}

// GetSessionRenewalFailuresTotal returns the renewal failure counter (for testing).
func GetSessionRenewalFailuresTotal() prometheus.Counter {
	return sessionRenewalFailuresTotal
}
