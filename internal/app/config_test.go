package app

import (
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.StrictStatusTransitions {
		t.Error("expected permissive status transitions by default")
	}
	if cfg.KafkaTopic != "orders.order.events" {
		t.Errorf("unexpected kafka topic %s", cfg.KafkaTopic)
	}
	if cfg.OutboxPollInterval != time.Second || cfg.OutboxBatchSize != 100 || cfg.OutboxMaxAttempts != 3 {
		t.Errorf("unexpected outbox defaults: %+v", cfg)
	}
	if cfg.OutboxRetryDelay != 50*time.Millisecond {
		t.Errorf("unexpected retry delay %s", cfg.OutboxRetryDelay)
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.IdempotencyCleanupInterval != 10*time.Minute {
		t.Errorf("unexpected idempotency defaults: ttl=%s cleanup=%s", cfg.IdempotencyTTL, cfg.IdempotencyCleanupInterval)
	}
	if cfg.EventsEnabled() {
		t.Error("events must be disabled without brokers")
	}
}

func TestConfig_Comparison(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()
	if cfg1 != cfg2 {
		t.Error("two DefaultConfig instances should be equal")
	}

	cfg2.HTTPAddr = ":8081"
	if cfg1 == cfg2 {
		t.Error("modified config should not be equal to original")
	}
}

func TestConfig_EventsEnabled(t *testing.T) {
	cases := map[string]bool{
		"":                           false,
		" , ":                        false,
		"localhost:9092":             true,
		"kafka-1:9092, kafka-2:9092": true,
	}
	for brokers, want := range cases {
		cfg := DefaultConfig()
		cfg.KafkaBrokers = brokers
		if got := cfg.EventsEnabled(); got != want {
			t.Errorf("brokers %q: expected %v, got %v", brokers, want, got)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.example , ,http://b.example,")
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "http://b.example" {
		t.Fatalf("unexpected split result: %#v", got)
	}
	if splitList("") != nil {
		t.Fatal("expected nil for empty input")
	}
}
