package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultClientID = "order-service"

var errNoBrokers = errors.New("kafka brokers are not configured")

// Message — запись для отправки в topic. Key определяет партицию.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) producerMessage(ts time.Time) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     m.Topic,
		Value:     sarama.ByteEncoder(m.Value),
		Timestamp: ts,
	}
	if m.Key != "" {
		msg.Key = sarama.StringEncoder(m.Key)
	}

	names := make([]string, 0, len(m.Headers))
	for name := range m.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(m.Headers[name])})
	}
	return msg
}

// NewConfig настраивает идемпотентный producer: события одного заказа попадают
// в одну партицию и не дублируются при ретраях.
func NewConfig(clientID string) *sarama.Config {
	if clientID == "" {
		clientID = defaultClientID
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Producer — синхронный producer с логированием каждой отправки.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// NewProducer подключается к брокерам.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	sp, err := sarama.NewSyncProducer(brokers, NewConfig(defaultClientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerWithClient(sp, logger), nil
}

// NewProducerWithClient оборачивает готовый SyncProducer, например mocks.SyncProducer.
func NewProducerWithClient(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{
		sync:   sp,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendJSON кодирует v в JSON и отправляет без заголовков.
func (p *Producer) SendJSON(topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode kafka message: %w", err)
	}
	return p.Send(Message{Topic: topic, Key: key, Value: value})
}

func (p *Producer) Send(m Message) error {
	entry := p.logger.WithFields(log.Fields{"topic": m.Topic, "key": m.Key})

	partition, offset, err := p.sync.SendMessage(m.producerMessage(p.now()))
	if err != nil {
		entry.WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", m.Topic, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
