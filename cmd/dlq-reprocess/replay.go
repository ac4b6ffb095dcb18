package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
)

var errNotDeadLetter = errors.New("message is not an outbox dead letter")

// offsetSource — часть sarama.Client, нужная для определения границ партиций.
type offsetSource interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, at int64) (int64, error)
}

// partitionReader — поток сообщений одной партиции.
type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error)
}

type saramaConsumer struct {
	consumer sarama.Consumer
}

func (c saramaConsumer) ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error) {
	return c.consumer.ConsumePartition(topic, partition, offset)
}

// deadLetter — формат сообщения, которое outbox worker пишет в DLQ.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// replayEnvelope повторяет формат topic событий заказа.
type replayEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

type replayer struct {
	opts     options
	offsets  offsetSource
	consumer partitionSource
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

// Run обходит партиции DLQ по возрастанию номера, пока не исчерпан limit.
func (r *replayer) Run(ctx context.Context) (replayStats, error) {
	var total replayStats
	if r.opts.execute && r.producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := r.offsets.Partitions(r.opts.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.opts.sourceTopic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		if total.scanned >= r.opts.limit {
			break
		}
		stats, err := r.replayPartition(ctx, partition, r.opts.limit-total.scanned)
		total.scanned += stats.scanned
		total.replayed += stats.replayed
		total.skipped += stats.skipped
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	oldest, err := r.offsets.GetOffset(r.opts.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(r.opts.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if r.opts.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	reader, err := r.consumer.ConsumePartition(r.opts.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = reader.Close() }()

	idle := time.NewTimer(r.opts.idleTimeout)
	defer idle.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-reader.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-reader.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(r.opts.idleTimeout)
			stats.scanned++

			entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})
			out, err := r.buildReplay(msg)
			if err != nil {
				stats.skipped++
				entry.WithError(err).Warn("skip dlq message")
			} else if r.opts.execute {
				if _, _, err := r.producer.SendMessage(out); err != nil {
					return stats, fmt.Errorf("publish replay of offset %d: %w", msg.Offset, err)
				}
				stats.replayed++
			} else {
				stats.replayed++
				entry.WithFields(log.Fields{"target_topic": out.Topic, "key": string(msg.Key)}).Info("dlq replay candidate")
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// buildReplay восстанавливает исходное событие из dead letter.
// Topic берётся из заголовка x-original-topic, иначе используется target-topic.
func (r *replayer) buildReplay(msg *sarama.ConsumerMessage) (*sarama.ProducerMessage, error) {
	var letter deadLetter
	if err := json.Unmarshal(msg.Value, &letter); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotDeadLetter, err)
	}
	if letter.OutboxID == "" || len(letter.Payload) == 0 {
		return nil, errNotDeadLetter
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	value, err := json.Marshal(replayEnvelope{
		ID:            letter.OutboxID,
		AggregateType: letter.AggregateType,
		AggregateID:   letter.AggregateID,
		EventType:     letter.EventType,
		Payload:       letter.Payload,
		PublishedAt:   now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode replay envelope: %w", err)
	}

	topic := r.opts.targetTopic
	if original := header(msg, kafka.HeaderOriginalTopic); original != "" {
		topic = original
	}
	key := letter.AggregateID
	if key == "" {
		key = letter.OutboxID
	}

	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}, nil
}

func header(msg *sarama.ConsumerMessage, name string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == name {
			return strings.TrimSpace(string(h.Value))
		}
	}
	return ""
}
