package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
)

// Line — строка запроса на создание заказа.
type Line struct {
	ProductID int64
	Quantity  int
}

// Service реализует сценарии работы с заказами поверх единицы работы domain.Storage.
type Service struct {
	storage domain.Storage
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	strict  bool
	events  bool
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics задаёт метрики заказов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStrictTransitions включает проверку переходов статусов по таблице.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithEvents включает запись событий заказов в outbox.
func WithEvents(enabled bool) Option {
	return func(s *Service) { s.events = enabled }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт сервис заказов.
func NewService(storage domain.Storage, options ...Option) *Service {
	s := &Service{
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-service")
	}
	return s
}

// CreateOrder создаёт заказ атомарно: клиент, товары, позиции, история и событие
// либо сохраняются вместе, либо не сохраняется ничего.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, lines []Line) (domain.Order, error) {
	started := time.Now()

	created, err := s.createOrder(ctx, customerID, lines)
	if err != nil {
		s.metrics.RecordCreateFailure(failureReason(err))
		s.logFailure(err, "create order failed", log.Fields{"customer_id": customerID})
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated(created.TotalAmount, time.Since(started))
	s.logger.WithFields(log.Fields{
		"order_id":    created.ID,
		"customer_id": customerID,
		"items":       len(created.Items),
		"total":       created.TotalAmount.StringFixed(domain.MoneyScale),
	}).Info("order created")
	return created, nil
}

func (s *Service) createOrder(ctx context.Context, customerID int64, lines []Line) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for i, line := range lines {
		if err := domain.CheckQuantity(line.Quantity); err != nil {
			return domain.Order{}, fmt.Errorf("item %d: %w", i, err)
		}
	}

	var created domain.Order
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		customer, err := tx.Customers.Get(ctx, customerID)
		if err != nil {
			return err
		}

		order := domain.NewOrder(customer, s.now())
		for _, line := range lines {
			product, err := tx.Products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if err := order.AddItem(product, line.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := tx.Timeline.Append(ctx, domain.OrderCreatedEvent(*order)); err != nil {
			return err
		}

		if created, err = tx.Orders.Get(ctx, order.ID); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, kafka.EventTypeOrderCreated, created, "")
	})
	if err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

// GetOrder возвращает заказ или ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.storage.Repositories().Orders.Get(ctx, id)
}

// ListOrders возвращает все заказы по возрастанию ID.
func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.storage.Repositories().Orders.List(ctx)
}

// ListOrdersByCustomer возвращает заказы клиента, новые первыми.
// Для неизвестного клиента результат пустой.
func (s *Service) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return s.storage.Repositories().Orders.ListByCustomer(ctx, customerID)
}

// UpdateOrderStatus меняет статус заказа. По умолчанию статус перезаписывается без проверок,
// со WithStrictTransitions(true) допустимы только переходы из таблицы.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	var (
		updated  domain.Order
		previous domain.OrderStatus
	)
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		order, err := tx.Orders.Get(ctx, id)
		if err != nil {
			return err
		}
		previous = order.Status

		if err := order.ChangeStatus(status, s.now(), s.strict); err != nil {
			return err
		}
		if err := tx.Orders.Save(ctx, order); err != nil {
			return err
		}
		if err := tx.Timeline.Append(ctx, domain.StatusChangedEvent(order, previous)); err != nil {
			return err
		}

		updated = order
		return s.enqueue(ctx, tx, kafka.EventTypeOrderStatusChanged, order, previous)
	})
	if err != nil {
		s.logFailure(err, "update order status failed", log.Fields{"order_id": id, "status": string(status)})
		return domain.Order{}, err
	}

	s.metrics.RecordStatusChange(string(updated.Status))
	s.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     string(previous),
		"to":       string(updated.Status),
	}).Info("order status changed")
	return updated, nil
}

// DeleteOrder удаляет заказ в статусе PENDING или CANCELLED вместе с позициями и историей.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		order, err := tx.Orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := order.EnsureDeletable(); err != nil {
			return err
		}
		if err := tx.Orders.Delete(ctx, id); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, kafka.EventTypeOrderDeleted, order, "")
	})
	if err != nil {
		s.logFailure(err, "delete order failed", log.Fields{"order_id": id})
		return err
	}

	s.metrics.RecordOrderDeleted()
	s.logger.WithField("order_id", id).Info("order deleted")
	return nil
}

// OrderTimeline возвращает историю статусов заказа.
func (s *Service) OrderTimeline(ctx context.Context, id int64) ([]domain.TimelineEvent, error) {
	repos := s.storage.Repositories()
	if _, err := repos.Orders.Get(ctx, id); err != nil {
		return nil, err
	}
	return repos.Timeline.List(ctx, id)
}

func (s *Service) enqueue(ctx context.Context, tx domain.Repositories, eventType kafka.EventType, order domain.Order, previous domain.OrderStatus) error {
	if !s.events {
		return nil
	}
	payload, err := json.Marshal(kafka.NewOrderEvent(eventType, order, previous))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if _, err := tx.Outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	return nil
}

// logFailure пишет ожидаемые бизнес-ошибки на уровне Info, остальные как Error.
func (s *Service) logFailure(err error, msg string, fields log.Fields) {
	entry := s.logger.WithFields(fields).WithError(err)
	if domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsInvalidState(err) {
		entry.Info(msg)
		return
	}
	entry.Error(msg)
}

func failureReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return metrics.FailureValidation
	case domain.IsNotFound(err):
		return metrics.FailureNotFound
	case domain.IsInvalidState(err):
		return metrics.FailureInvalidState
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return metrics.FailureInternal
	}
}
