package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
	"github.com/vladislavdragonenkov/orderapp/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если заданы брокеры.
// При пустом списке брокеров возвращает nil, nil: события заказов не пишутся.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitList(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, logger.WithField("component", "kafka-producer"))
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// newOutboxWorker связывает outbox хранилища с топиком событий и DLQ.
func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, m *metrics.OutboxMetrics, logger *log.Entry) *outbox.Worker {
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(m),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, cfg.KafkaDLQTopic, cfg.KafkaTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// closeKafkaProducer закрывает producer, если он был создан.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
