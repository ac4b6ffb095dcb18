package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

var idempotencyColumns = []string{
	"key", "request_hash", "response_body", "http_status", "status", "ttl_at", "created_at", "updated_at",
}

type idempotencyRepository struct {
	db dbtx
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	// Истёкшую запись можно занять заново, не дожидаясь очистки.
	query, args, err := psql.Insert("idempotency_keys").
		Columns(idempotencyColumns...).
		Values(key, requestHash, nil, nil, string(domain.IdempotencyStatusProcessing), ttlAt, now, now).
		Suffix(`ON CONFLICT (key) DO UPDATE
			SET request_hash = EXCLUDED.request_hash,
			    response_body = NULL,
			    http_status = NULL,
			    status = EXCLUDED.status,
			    ttl_at = EXCLUDED.ttl_at,
			    created_at = EXCLUDED.created_at,
			    updated_at = EXCLUDED.updated_at
			WHERE idempotency_keys.ttl_at <= EXCLUDED.created_at`).
		ToSql()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("build create idempotency record: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.db.ExecContext(execCtx, query, args...)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency rows affected: %w", err)
	}

	if affected == 0 {
		existing, getErr := r.Get(ctx, key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	return domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	query, args, err := psql.Select(idempotencyColumns...).
		From("idempotency_keys").
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"ttl_at": time.Now().UTC()}).
		ToSql()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("build get idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		record       domain.IdempotencyRecord
		statusRaw    string
		responseBody []byte
		httpStatus   sql.NullInt64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&record.Key,
		&record.RequestHash,
		&responseBody,
		&httpStatus,
		&statusRaw,
		&record.TTLAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	record.Status = domain.IdempotencyStatus(statusRaw)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", statusRaw, key)
	}
	record.ResponseBody = append([]byte(nil), responseBody...)
	if httpStatus.Valid {
		record.HTTPStatus = int(httpStatus.Int64)
	}
	return record, nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	query, args, err := psql.Delete("idempotency_keys").
		Where(sq.Eq{"key": key, "status": string(domain.IdempotencyStatusProcessing)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release idempotency key: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	del := psql.Delete("idempotency_keys")
	if limit > 0 {
		// Вложенный запрос строится с '?', плейсхолдеры нумерует внешний builder.
		sub := sq.Select("key").
			From("idempotency_keys").
			Where(sq.LtOrEq{"ttl_at": before}).
			OrderBy("ttl_at ASC").
			Limit(uint64(limit)) // #nosec G115 -- limit > 0 проверен выше.
		del = del.Where(sq.Expr("key IN (?)", sub))
	} else {
		del = del.Where(sq.LtOrEq{"ttl_at": before})
	}

	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired idempotency records: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("idempotency rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *idempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	query, args, err := psql.Update("idempotency_keys").
		Set("response_body", responseBody).
		Set("http_status", httpStatus).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark idempotency key: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("idempotency rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
