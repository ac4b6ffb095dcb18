package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// timelineRepository хранит историю статусов; строки удаляет orderRepository.Delete.
type timelineRepository struct {
	db dbtx
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	query, args, err := psql.Insert("timeline_events").
		Columns("order_id", "type", "reason", "occurred").
		Values(event.OrderID, event.Type, event.Reason, event.Occurred).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append timeline event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err, "timeline_events_order_id_fkey") {
			return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, event.OrderID)
		}
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

// List возвращает события заказа в порядке возникновения.
func (r *timelineRepository) List(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	query, args, err := psql.Select("order_id", "type", "reason", "occurred").
		From("timeline_events").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("occurred ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list timeline events: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.OrderID, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
