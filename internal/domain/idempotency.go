package domain

import (
	"context"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — запрос завершён, ответ сохранён для повтора.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой, сохранён ответ с ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyRecord хранит результат запроса, выполненного с заголовком Idempotency-Key.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Replayable сообщает, можно ли вернуть сохранённый ответ вместо повторной обработки.
func (r IdempotencyRecord) Replayable() bool {
	return (r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed) && r.HTTPStatus > 0
}

// Expired сообщает, истёк ли ключ к моменту at. Истёкший ключ можно занять заново.
func (r IdempotencyRecord) Expired(at time.Time) bool {
	return !r.TTLAt.After(at)
}

// IdempotencyRepository хранит ключи идемпотентности. Работает вне единицы работы заказа.
type IdempotencyRepository interface {
	// CreateProcessing резервирует ключ. Если ключ уже есть, возвращает существующую запись
	// и ErrIdempotencyKeyAlreadyExists либо ErrIdempotencyHashMismatch.
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release удаляет незавершённую запись, чтобы запрос можно было повторить.
	Release(ctx context.Context, key string) error
	// DeleteExpired удаляет до limit записей с ttl <= before (limit <= 0 — без ограничения).
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
