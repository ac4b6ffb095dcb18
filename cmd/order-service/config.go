package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/orderapp/internal/app"
)

const (
	envConfigFile = "OMS_CONFIG_FILE"

	envHTTPAddr                   = "OMS_HTTP_ADDR"
	envMetricsAddr                = "OMS_METRICS_ADDR"
	envStorageDriver              = "OMS_STORAGE_DRIVER"
	envPostgresDSN                = "OMS_POSTGRES_DSN"
	envPostgresAutoMigrate        = "OMS_POSTGRES_AUTO_MIGRATE"
	envStrictStatusTransitions    = "OMS_STRICT_STATUS_TRANSITIONS"
	envKafkaBrokers               = "OMS_KAFKA_BROKERS"
	envKafkaTopic                 = "OMS_KAFKA_TOPIC"
	envKafkaDLQTopic              = "OMS_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval         = "OMS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize            = "OMS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts          = "OMS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay           = "OMS_OUTBOX_RETRY_DELAY"
	envIdempotencyTTL             = "OMS_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval = "OMS_IDEMPOTENCY_CLEANUP_INTERVAL"
	envCORSAllowedOrigins         = "OMS_CORS_ALLOWED_ORIGINS"
	envRequestTimeout             = "OMS_REQUEST_TIMEOUT"
	envShutdownTimeout            = "OMS_SHUTDOWN_TIMEOUT"
	envLogLevel                   = "OMS_LOG_LEVEL"
	envLogFormat                  = "OMS_LOG_FORMAT"
)

// envLookup возвращает значение ключа и признак того, что ключ задан.
type envLookup func(key string) (string, bool)

// newViperLookup читает переменные окружения и, если задан OMS_CONFIG_FILE, файл конфигурации.
// В файле используются те же имена ключей, что и в окружении (регистр не важен).
func newViperLookup(configFile string) (envLookup, error) {
	v := viper.New()
	v.AutomaticEnv()

	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	return func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	}, nil
}

// readConfigFromEnv накладывает значения из lookup на app.DefaultConfig.
// Некорректные значения не прерывают запуск: они попадают в warnings, а поле остаётся по умолчанию.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setBool := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	setInt := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	positive := func(d time.Duration) bool { return d > 0 }
	nonNegative := func(d time.Duration) bool { return d >= 0 }

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	setBool(envStrictStatusTransitions, &cfg.StrictStatusTransitions)
	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envKafkaTopic, &cfg.KafkaTopic)
	setString(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	setDuration(envIdempotencyTTL, &cfg.IdempotencyTTL, positive, "must be > 0")
	setDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	setString(envCORSAllowedOrigins, &cfg.CORSAllowedOrigins)
	setDuration(envRequestTimeout, &cfg.RequestTimeout, nonNegative, "must be >= 0")
	setDuration(envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0")

	return cfg, warnings
}

var errInvalidBool = errors.New("invalid bool value")

// parseBool понимает true/false, 1/0, yes/no и on/off без учёта регистра.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w %q", errInvalidBool, raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("invalid int value %d: %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("invalid duration value %s: %s", value, rule)
	}
	return value, nil
}
