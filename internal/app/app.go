package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	healthcheck "github.com/vladislavdragonenkov/orderapp/internal/health"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
	"github.com/vladislavdragonenkov/orderapp/internal/service/catalog"
	"github.com/vladislavdragonenkov/orderapp/internal/service/customer"
	"github.com/vladislavdragonenkov/orderapp/internal/service/idempotency"
	httpsvc "github.com/vladislavdragonenkov/orderapp/internal/service/http"
	"github.com/vladislavdragonenkov/orderapp/internal/service/order"
	"github.com/vladislavdragonenkov/orderapp/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Run поднимает хранилище, REST API, сервер метрик, очистку ключей идемпотентности
// и (при настроенной Kafka) outbox worker. Блокируется до отмены ctx или падения одного из компонентов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without order events")
		producer = nil
	}
	defer closeKafkaProducer(producer, logger)

	orderService := order.NewService(deps.storage,
		order.WithLogger(logger.WithField("component", "order-service")),
		order.WithMetrics(metrics.NewOrderMetrics()),
		order.WithStrictTransitions(cfg.StrictStatusTransitions),
		order.WithEvents(producer != nil),
	)
	handler := httpsvc.NewHandler(
		orderService,
		customer.NewService(deps.storage, logger.WithField("component", "customer-service")),
		catalog.NewService(deps.storage, logger.WithField("component", "catalog-service")),
		logger.WithField("component", "http-api"),
	)
	idemRepo := deps.storage.Repositories().Idempotency
	idemMetrics := metrics.NewIdempotencyMetrics()
	apiSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpsvc.NewRouter(handler, httpsvc.RouterConfig{
			AllowedOrigins:     splitList(cfg.CORSAllowedOrigins),
			Metrics:            metrics.NewHTTPMetrics(),
			RequestTimeout:     cfg.RequestTimeout,
			Idempotency:        idemRepo,
			IdempotencyTTL:     cfg.IdempotencyTTL,
			IdempotencyMetrics: idemMetrics,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	metricsSrv := newMetricsServer(cfg.MetricsAddr, healthHandler)

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen api %s: %w", cfg.HTTPAddr, err)
	}
	metricsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("REST API слушает %s", apiLis.Addr())
		return serve(apiSrv, apiLis)
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", metricsLis.Addr())
		return serve(metricsSrv, metricsLis)
	})
	cleanup := idempotency.NewCleanupWorker(idemRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(idemMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
	)
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	if producer != nil {
		worker := newOutboxWorker(cfg, deps.storage.Repositories().Outbox, producer, metrics.NewOutboxMetrics(), logger)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newMetricsServer собирает служебный HTTP-сервер: /metrics, /healthz, /livez, /readyz.
func newMetricsServer(addr string, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
}

func serve(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
