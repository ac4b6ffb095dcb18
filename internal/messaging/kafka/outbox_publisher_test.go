package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mock, producer := newMockProducer(t)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got envelope
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ID != "outbox-1" || got.AggregateID != "42" || got.EventType != string(EventTypeOrderStatusChanged) {
			return fmt.Errorf("unexpected envelope: %+v", got)
		}
		if string(got.Payload) != `{"status":"CONFIRMED"}` {
			return fmt.Errorf("payload must be embedded as-is: %s", got.Payload)
		}
		return nil
	})

	publisher := NewOutboxPublisher(producer, "")
	if publisher.topic != TopicOrderEvents {
		t.Fatalf("expected default topic, got %s", publisher.topic)
	}

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: AggregateOrder,
		AggregateID:   "42",
		EventType:     string(EventTypeOrderStatusChanged),
		Payload:       []byte(`{"status":"CONFIRMED"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mock, producer := newMockProducer(t)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := NewOutboxPublisher(producer, TopicOrderEvents).Publish(domain.OutboxMessage{
		ID:          "outbox-2",
		AggregateID: "43",
		EventType:   string(EventTypeOrderDeleted),
		Payload:     []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}
	if err := mock.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	if err := NewOutboxPublisher(nil, TopicOrderEvents).Publish(domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
	if err := NewDLQPublisher(nil, "", "").Publish(domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil dlq producer")
	}
}

func TestDLQPublisher_SendsRawPayload(t *testing.T) {
	t.Parallel()

	mock, producer := newMockProducer(t)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"outbox_id":"outbox-4"}` {
			return fmt.Errorf("unexpected dlq value: %s", val)
		}
		return nil
	})

	publisher := NewDLQPublisher(producer, "", "")
	if publisher.topic != TopicDeadLetterQueue || publisher.sourceTopic != TopicOrderEvents {
		t.Fatalf("unexpected defaults: %+v", publisher)
	}
	if err := publisher.Publish(domain.OutboxMessage{
		ID:        "outbox-4",
		EventType: string(EventTypeOrderCreated),
		Payload:   []byte(`{"outbox_id":"outbox-4"}`),
	}); err != nil {
		t.Fatalf("dlq publish failed: %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPartitionKey(t *testing.T) {
	t.Parallel()

	if got := partitionKey(domain.OutboxMessage{ID: "x", AggregateID: "42"}); got != "42" {
		t.Fatalf("expected aggregate id key, got %s", got)
	}
	if got := partitionKey(domain.OutboxMessage{ID: "x"}); got != "x" {
		t.Fatalf("expected fallback to message id, got %s", got)
	}
}
