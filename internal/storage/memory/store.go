package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// state — всё содержимое in-memory хранилища. Транзакция работает с копией state.
type state struct {
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	orders    map[int64]storedOrder
	timeline  map[int64][]domain.TimelineEvent
	outbox    map[string]outboxRecord

	customerSeq int64
	productSeq  int64
	orderSeq    int64
	itemSeq     int64
	outboxSeq   int64
}

// storedOrder хранит заказ без денормализованных данных клиента и товаров.
type storedOrder struct {
	order      domain.Order
	customerID int64
}

func newState() *state {
	return &state{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		orders:    make(map[int64]storedOrder),
		timeline:  make(map[int64][]domain.TimelineEvent),
		outbox:    make(map[string]outboxRecord),
	}
}

func (s *state) clone() *state {
	c := &state{
		customers:   make(map[int64]domain.Customer, len(s.customers)),
		products:    make(map[int64]domain.Product, len(s.products)),
		orders:      make(map[int64]storedOrder, len(s.orders)),
		timeline:    make(map[int64][]domain.TimelineEvent, len(s.timeline)),
		outbox:      make(map[string]outboxRecord, len(s.outbox)),
		customerSeq: s.customerSeq,
		productSeq:  s.productSeq,
		orderSeq:    s.orderSeq,
		itemSeq:     s.itemSeq,
		outboxSeq:   s.outboxSeq,
	}
	for id, v := range s.customers {
		c.customers[id] = v
	}
	for id, v := range s.products {
		c.products[id] = v
	}
	for id, v := range s.orders {
		v.order.Items = append([]domain.OrderItem(nil), v.order.Items...)
		c.orders[id] = v
	}
	for id, v := range s.timeline {
		c.timeline[id] = append([]domain.TimelineEvent(nil), v...)
	}
	for id, v := range s.outbox {
		c.outbox[id] = v
	}
	return c
}

// Store — in-memory реализация domain.Storage для локальной разработки и тестов.
type Store struct {
	mu    sync.RWMutex
	state *state
	idem  *idempotencyRepository
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{state: newState(), idem: newIdempotencyRepository()}
}

// Repositories возвращает репозитории, работающие напрямую с хранилищем под блокировкой.
func (s *Store) Repositories() domain.Repositories {
	return repositoriesFor(access{store: s}, s.idem)
}

// InTx выполняет fn на копии состояния и подменяет им текущее только при успехе.
// Писатели сериализуются, так что last write wins без частичных изменений.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, repositoriesFor(access{st: work}, s.idem)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

func repositoriesFor(a access, idem *idempotencyRepository) domain.Repositories {
	return domain.Repositories{
		Customers:   &customerRepository{access: a},
		Products:    &productRepository{access: a},
		Orders:      &orderRepository{access: a},
		Timeline:    &timelineRepository{access: a},
		Outbox:      &outboxRepository{access: a},
		Idempotency: idem,
	}
}

// access даёт репозиторию доступ к состоянию: либо к живому под мьютексом Store,
// либо к транзакционной копии, которую уже охраняет InTx.
type access struct {
	store *Store
	st    *state
}

func (a access) read(fn func(st *state) error) error {
	if a.store == nil {
		return fn(a.st)
	}
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	return fn(a.store.state)
}

func (a access) write(fn func(st *state) error) error {
	if a.store == nil {
		return fn(a.st)
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.state)
}

var _ domain.Storage = (*Store)(nil)
