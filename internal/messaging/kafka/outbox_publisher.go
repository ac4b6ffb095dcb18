package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// envelope — формат сообщения в topic событий заказа.
type envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher публикует outbox-сообщения в topic событий, ключ — ID заказа.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher; пустой topic заменяется на TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	return p.producer.SendJSON(p.topic, partitionKey(event), envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	})
}

// DLQPublisher отправляет неопубликованные события в dead letter topic как есть.
type DLQPublisher struct {
	producer    *Producer
	topic       string
	sourceTopic string
}

// NewDLQPublisher создаёт publisher для DLQ.
func NewDLQPublisher(producer *Producer, topic, sourceTopic string) *DLQPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if sourceTopic == "" {
		sourceTopic = TopicOrderEvents
	}
	return &DLQPublisher{producer: producer, topic: topic, sourceTopic: sourceTopic}
}

func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	return p.producer.Send(Message{
		Topic: p.topic,
		Key:   partitionKey(event),
		Value: event.Payload,
		Headers: map[string]string{
			HeaderOriginalTopic: p.sourceTopic,
			HeaderEventType:     event.EventType,
			HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}

func partitionKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
