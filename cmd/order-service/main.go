package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/app"
	"github.com/vladislavdragonenkov/orderapp/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	format, _ := lookup(envLogFormat)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warn("unknown log level, using info")
			return
		}
		log.SetLevel(level)
	}
}

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	lookup, err := newViperLookup(os.Getenv(envConfigFile))
	if err != nil {
		log.WithError(err).Fatal("не удалось прочитать конфигурацию")
	}
	setupLogger(lookup)

	cfg, warnings := readConfigFromEnv(lookup)
	for _, warning := range warnings {
		log.WithField("warning", warning).Warn("некорректное значение конфигурации, используется значение по умолчанию")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"events":         cfg.EventsEnabled(),
		"strict_status":  cfg.StrictStatusTransitions,
	}).Info("запускаем order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order service остановлен")
}
