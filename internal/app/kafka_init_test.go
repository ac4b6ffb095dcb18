package app

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderapp/internal/storage/memory"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	for _, brokers := range []string{"", " ", ",,"} {
		producer, err := initKafkaProducer(brokers, log.WithField("test", "kafka-empty"))
		if err != nil {
			t.Fatalf("brokers %q: unexpected error %v", brokers, err)
		}
		if producer != nil {
			t.Fatalf("brokers %q: expected nil producer", brokers)
		}
	}
}

func TestCloseKafkaProducer_Nil(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka-close"))
}

func TestNewOutboxWorker_PublishesToConfiguredTopic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KafkaTopic = "orders.test.events"
	cfg.OutboxRetryDelay = 0

	mock := mocks.NewSyncProducer(t, sarama.NewConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if len(val) == 0 {
			t.Error("expected non-empty payload")
		}
		return nil
	})
	logger := log.WithField("test", "outbox-wiring")
	producer := kafka.NewProducerWithClient(mock, logger)
	defer closeKafkaProducer(producer, logger)

	repo := memory.NewStore().Repositories().Outbox
	if _, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   "7",
		EventType:     string(kafka.EventTypeOrderCreated),
		Payload:       []byte(`{"orderId":7}`),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker := newOutboxWorker(cfg, repo, producer, nil, logger)
	if sent := worker.ProcessOnce(context.Background()); sent != 1 {
		t.Fatalf("expected 1 sent message, got %d", sent)
	}
}
