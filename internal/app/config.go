package app

import (
	"time"

	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
// Списки (брокеры Kafka, CORS-источники) хранятся строкой через запятую, чтобы Config оставался сравнимым.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	StrictStatusTransitions bool

	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration

	CORSAllowedOrigins string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		RequestTimeout:      30 * time.Second,
		ShutdownTimeout:     5 * time.Second,

		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
	}
}

// EventsEnabled сообщает, публикуются ли события заказов.
func (c Config) EventsEnabled() bool {
	return len(splitList(c.KafkaBrokers)) > 0
}
