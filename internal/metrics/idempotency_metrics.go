package metrics

import "github.com/prometheus/client_golang/prometheus"

// Исходы обработки запроса с Idempotency-Key.
const (
	IdempotencyStored     = "stored"
	IdempotencyReplayed   = "replayed"
	IdempotencyInProgress = "in_progress"
	IdempotencyMismatch   = "mismatch"
	IdempotencyError      = "error"
)

// IdempotencyMetrics описывает работу ключей идемпотентности и их очистку.
type IdempotencyMetrics struct {
	requests       *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	lastDeleted    prometheus.Gauge
}

// NewIdempotencyMetrics регистрирует метрики в DefaultRegisterer.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		requests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_idempotency_requests_total",
			Help: "Total number of requests carrying an idempotency key grouped by outcome.",
		}, []string{"outcome"}), "oms_idempotency_requests_total"),
		cleanupRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}), "oms_idempotency_cleanup_runs_total"),
		cleanupDeleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}), "oms_idempotency_cleanup_deleted_total"),
		lastDeleted: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}), "oms_idempotency_cleanup_last_deleted"),
	}
}

// RecordRequest учитывает запрос с ключом идемпотентности.
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordCleanup учитывает прогон очистки. При ошибке deleted игнорируется.
func (m *IdempotencyMetrics) RecordCleanup(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupDeleted.Add(float64(deleted))
	m.lastDeleted.Set(float64(deleted))
}
