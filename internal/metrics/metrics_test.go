package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := h.(prometheus.Metric)
	if !ok {
		t.Fatal("observer is not a metric")
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestOrderMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.RecordOrderCreated(decimal.RequireFromString("200.00"), 15*time.Millisecond)
	m.RecordCreateFailure(FailureNotFound)
	m.RecordCreateFailure(FailureNotFound)
	m.RecordStatusChange("CONFIRMED")
	m.RecordOrderDeleted()

	if got := counterValue(t, m.created); got != 1 {
		t.Fatalf("expected 1 created order, got %v", got)
	}
	if got := counterValue(t, m.createFailures.WithLabelValues(FailureNotFound)); got != 2 {
		t.Fatalf("expected 2 not_found failures, got %v", got)
	}
	if got := counterValue(t, m.statusChanges.WithLabelValues("CONFIRMED")); got != 1 {
		t.Fatalf("expected 1 status change, got %v", got)
	}
	if got := counterValue(t, m.deleted); got != 1 {
		t.Fatalf("expected 1 deletion, got %v", got)
	}
	if got := histogramCount(t, m.orderTotal); got != 1 {
		t.Fatalf("expected 1 total observation, got %d", got)
	}
}

func TestOrderMetrics_ReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordOrderDeleted()
	if got := counterValue(t, second.deleted); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestOrderMetrics_NilSafe(t *testing.T) {
	var m *OrderMetrics
	m.RecordOrderCreated(decimal.NewFromInt(1), time.Millisecond)
	m.RecordCreateFailure(FailureInternal)
	m.RecordStatusChange("SHIPPED")
	m.RecordOrderDeleted()

	var h *HTTPMetrics
	h.ObserveRequest("GET", "/api/orders", 200, time.Millisecond)
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.ObserveRequest("GET", "/api/orders/{id}", 404, 2*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	if got := counterValue(t, m.requests.WithLabelValues("GET", "/api/orders/{id}", "404")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
	if got := counterValue(t, m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected unmatched route label, got %v", got)
	}
}

func TestRegister_PanicsOnTypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	register(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_metric", Help: "x"}), "dup_metric")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on type mismatch")
		}
	}()
	register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_metric", Help: "x"}), "dup_metric")
}

func TestOutboxMetrics_Backlog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetricsWithRegisterer(reg)

	m.RecordAttempt(PublishSent)
	m.SetBacklog(3, -time.Second)

	if got := counterValue(t, m.attempts.WithLabelValues(PublishSent)); got != 1 {
		t.Fatalf("expected 1 sent attempt, got %v", got)
	}
	var pending dto.Metric
	if err := m.pending.Write(&pending); err != nil {
		t.Fatalf("write pending: %v", err)
	}
	if pending.GetGauge().GetValue() != 3 {
		t.Fatalf("expected pending=3, got %v", pending.GetGauge().GetValue())
	}
	var age dto.Metric
	if err := m.oldestPending.Write(&age); err != nil {
		t.Fatalf("write age: %v", err)
	}
	if age.GetGauge().GetValue() != 0 {
		t.Fatalf("expected negative age clamped to 0, got %v", age.GetGauge().GetValue())
	}
}

func TestIdempotencyMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIdempotencyMetricsWithRegisterer(reg)

	m.RecordRequest(IdempotencyReplayed)
	m.RecordCleanup(4, nil)
	m.RecordCleanup(10, errors.New("db down"))

	if got := counterValue(t, m.requests.WithLabelValues(IdempotencyReplayed)); got != 1 {
		t.Fatalf("expected 1 replayed request, got %v", got)
	}
	if got := counterValue(t, m.cleanupDeleted); got != 4 {
		t.Fatalf("expected 4 deleted, got %v", got)
	}
	if got := counterValue(t, m.cleanupRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}

	var nilMetrics *IdempotencyMetrics
	nilMetrics.RecordRequest(IdempotencyStored)
	nilMetrics.RecordCleanup(1, nil)
}
