package domain

import "context"

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет клиента и возвращает его с присвоенным ID.
	Create(ctx context.Context, customer Customer) (Customer, error)
	// Get возвращает клиента или ErrCustomerNotFound.
	Get(ctx context.Context, id int64) (Customer, error)
	// GetByEmail ищет клиента по точному совпадению email.
	GetByEmail(ctx context.Context, email string) (Customer, error)
	// List возвращает всех клиентов по возрастанию ID.
	List(ctx context.Context) ([]Customer, error)
	// Update перезаписывает поля клиента.
	Update(ctx context.Context, customer Customer) (Customer, error)
	// Delete удаляет только самого клиента; заказы удаляет вызывающий код в той же транзакции.
	Delete(ctx context.Context, id int64) error
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	Create(ctx context.Context, product Product) (Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	// List возвращает товары по фильтру, упорядоченные по ID.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями и присваивает им идентификаторы.
	Create(ctx context.Context, order *Order) error
	// Get возвращает заказ с данными клиента и названиями товаров или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает все заказы по возрастанию ID.
	List(ctx context.Context) ([]Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	// Save сохраняет статус и время изменения заказа.
	Save(ctx context.Context, order Order) error
	// Delete удаляет заказ вместе с позициями и историей.
	Delete(ctx context.Context, id int64) error
	// DeleteByCustomer удаляет все заказы клиента и возвращает их количество.
	DeleteByCustomer(ctx context.Context, customerID int64) (int, error)
	// CountByProduct считает позиции заказов, ссылающиеся на товар.
	CountByProduct(ctx context.Context, productID int64) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Repositories — набор репозиториев, работающих в одной транзакции (или вне её).
type Repositories struct {
	Customers CustomerRepository
	Products  ProductRepository
	Orders    OrderRepository
	Timeline  TimelineRepository
	Outbox    OutboxRepository

	// Idempotency не участвует в транзакциях заказа и всегда пишет сразу.
	Idempotency IdempotencyRepository
}

// Storage — хранилище с поддержкой единицы работы.
type Storage interface {
	// Repositories возвращает репозитории для чтения и одиночных операций вне транзакции.
	Repositories() Repositories
	// InTx выполняет fn атомарно: при ошибке изменения не сохраняются.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	Close() error
}
