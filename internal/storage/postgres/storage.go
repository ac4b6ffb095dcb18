package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// psql — построитель запросов с плейсхолдерами PostgreSQL ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// dbtx — общее подмножество *sql.DB и *sql.Tx, чтобы репозитории работали и внутри транзакции.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage реализует domain.Storage поверх PostgreSQL.
type Storage struct {
	store *Store
	idem  *idempotencyRepository
	repos domain.Repositories
}

// NewStorage создаёт хранилище поверх открытого Store.
func NewStorage(store *Store) *Storage {
	idem := &idempotencyRepository{db: store.DB()}
	return &Storage{
		store: store,
		idem:  idem,
		repos: repositoriesFor(store.DB(), idem),
	}
}

// Repositories возвращает репозитории, выполняющие запросы вне транзакции.
func (s *Storage) Repositories() domain.Repositories {
	return s.repos
}

// InTx открывает транзакцию, привязывает к ней репозитории и выполняет fn.
// Любая ошибка или паника приводит к откату.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) (err error) {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, repositoriesFor(tx, s.idem)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.store.Close()
}

// repositoriesFor привязывает репозитории к db; idem всегда работает вне транзакции.
func repositoriesFor(db dbtx, idem *idempotencyRepository) domain.Repositories {
	return domain.Repositories{
		Customers:   &customerRepository{db: db},
		Products:    &productRepository{db: db},
		Orders:      &orderRepository{db: db},
		Timeline:    &timelineRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		Idempotency: idem,
	}
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgForeignKeyViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

var _ domain.Storage = (*Storage)(nil)
