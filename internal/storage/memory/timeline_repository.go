package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// timelineRepository хранит события в памяти (для разработки/тестов).
type timelineRepository struct {
	access access
}

// Append добавляет событие, сохраняя хронологический порядок.
func (r *timelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	return r.access.write(func(st *state) error {
		events := append(st.timeline[event.OrderID], event)
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Occurred.Before(events[j].Occurred)
		})
		st.timeline[event.OrderID] = events
		return nil
	})
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepository) List(_ context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	var result []domain.TimelineEvent
	err := r.access.read(func(st *state) error {
		events := st.timeline[orderID]
		result = make([]domain.TimelineEvent, len(events))
		copy(result, events)
		return nil
	})
	return result, err
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
