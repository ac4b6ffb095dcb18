// Команда dlq-reprocess переносит события заказов из DLQ обратно в topic событий.
// По умолчанию работает в режиме dry-run и только перечисляет кандидатов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second

	envKafkaBrokers = "OMS_KAFKA_BROKERS"
)

type options struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	opts, err := parseOptions(flag.CommandLine, os.Args[1:], envBrokers())
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func envBrokers() string {
	v := viper.New()
	v.AutomaticEnv()
	return v.GetString(envKafkaBrokers)
}

func parseOptions(fs *flag.FlagSet, args []string, fallbackBrokers string) (options, error) {
	var (
		brokersRaw string
		opts       options
	)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&opts.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to read")
	fs.StringVar(&opts.targetTopic, "target-topic", kafka.TopicOrderEvents, "topic for replayed events when the message has no original topic header")
	fs.IntVar(&opts.limit, "limit", defaultReplayLimit, "max number of DLQ messages to scan")
	fs.BoolVar(&opts.execute, "execute", false, "publish replayed events; default is dry-run")
	fs.BoolVar(&opts.fromNewest, "from-newest", false, "scan the newest messages of each partition")
	fs.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this much silence")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = fallbackBrokers
	}
	opts.brokers = splitBrokers(brokersRaw)

	switch {
	case len(opts.brokers) == 0:
		return options{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(opts.sourceTopic) == "":
		return options{}, errors.New("source-topic is required")
	case strings.TrimSpace(opts.targetTopic) == "":
		return options{}, errors.New("target-topic is required")
	case opts.limit <= 0:
		return options{}, errors.New("limit must be > 0")
	case opts.idleTimeout <= 0:
		return options{}, errors.New("idle-timeout must be > 0")
	}
	return opts, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, opts options) error {
	logger := log.WithField("component", "dlq-reprocess")

	client, err := sarama.NewClient(opts.brokers, kafka.NewConfig("oms-dlq-reprocess"))
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer client.Close()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer consumer.Close()

	var producer sarama.SyncProducer
	if opts.execute {
		if producer, err = sarama.NewSyncProducerFromClient(client); err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer producer.Close()
	}

	r := &replayer{
		opts:     opts,
		offsets:  client,
		consumer: saramaConsumer{consumer},
		producer: producer,
		logger:   logger,
	}
	stats, err := r.Run(ctx)
	logger.WithFields(log.Fields{
		"execute":  opts.execute,
		"scanned":  stats.scanned,
		"replayed": stats.replayed,
		"skipped":  stats.skipped,
	}).Info("dlq replay finished")
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
