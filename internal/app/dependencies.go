package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderapp/internal/health"
	"github.com/vladislavdragonenkov/orderapp/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderapp/internal/storage/postgres"
)

var errPostgresDSNRequired = errors.New("postgres dsn is required for postgres storage driver")

// runtimeDependencies — хранилище и связанные с ним ресурсы процесса.
type runtimeDependencies struct {
	storage        domain.Storage
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.WithField("storage_driver", StorageDriverMemory).Info("storage initialized")
		return &runtimeDependencies{
			storage:        store,
			storageChecker: healthcheck.NewPingChecker("storage", store),
			closeFn:        store.Close,
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errPostgresDSNRequired
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		storage := postgres.NewStorage(store)
		logger.WithField("storage_driver", StorageDriverPostgres).Info("storage initialized")
		return &runtimeDependencies{
			storage:        storage,
			storageChecker: healthcheck.NewPingChecker("storage", storage),
			closeFn:        storage.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// splitList разбирает список через запятую, пропуская пустые элементы.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
