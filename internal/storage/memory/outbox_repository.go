package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        int64
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository — in-memory хранилище для transactional outbox.
type outboxRepository struct {
	access access
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	err := r.access.write(func(st *state) error {
		st.outboxSeq++
		st.outbox[msg.ID] = outboxRecord{
			msg:       msg,
			seq:       st.outboxSeq,
			status:    outboxStatusPending,
			createdAt: now,
			updatedAt: now,
		}
		return nil
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке добавления.
func (r *outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var pending []outboxRecord
	err := r.access.read(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status == outboxStatusPending {
				pending = append(pending, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.access.read(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status != outboxStatusPending {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.createdAt
			}
		}
		return nil
	})
	return stats, err
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(id, status string) error {
	return r.access.write(func(st *state) error {
		record, ok := st.outbox[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %s", domain.ErrOutboxPublish, id)
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = time.Now().UTC()
		st.outbox[id] = record
		return nil
	})
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
