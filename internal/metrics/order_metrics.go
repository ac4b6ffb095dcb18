package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Причины неуспешного создания заказа.
const (
	FailureValidation   = "validation"
	FailureNotFound     = "not_found"
	FailureInvalidState = "invalid_state"
	FailureInternal     = "internal"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
// Методы безопасно вызывать на nil.
type OrderMetrics struct {
	created        prometheus.Counter
	createFailures *prometheus.CounterVec
	createDuration prometheus.Histogram
	orderTotal     prometheus.Histogram
	statusChanges  *prometheus.CounterVec
	deleted        prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		created: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders created",
		}), "oms_orders_created_total"),
		createFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_create_failures_total",
			Help: "Total number of rejected order creations by reason",
		}, []string{"reason"}), "oms_order_create_failures_total"),
		createDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oms_order_create_duration_seconds",
			Help:    "Duration of the order creation workflow in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}), "oms_order_create_duration_seconds"),
		orderTotal: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oms_order_total_amount",
			Help:    "Distribution of order total amounts",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}), "oms_order_total_amount"),
		statusChanges: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_status_changes_total",
			Help: "Total number of order status changes by target status",
		}, []string{"status"}), "oms_order_status_changes_total"),
		deleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_orders_deleted_total",
			Help: "Total number of orders deleted",
		}), "oms_orders_deleted_total"),
	}
}

// RecordOrderCreated учитывает созданный заказ, его сумму и длительность создания.
func (m *OrderMetrics) RecordOrderCreated(total decimal.Decimal, duration time.Duration) {
	if m == nil {
		return
	}
	m.created.Inc()
	m.orderTotal.Observe(total.InexactFloat64())
	m.createDuration.Observe(duration.Seconds())
}

// RecordCreateFailure учитывает отклонённое создание заказа.
func (m *OrderMetrics) RecordCreateFailure(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

// RecordStatusChange учитывает смену статуса.
func (m *OrderMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordOrderDeleted учитывает удалённый заказ.
func (m *OrderMetrics) RecordOrderDeleted() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}
