package domain

import "errors"

// Категории ошибок. HTTP-слой сопоставляет их с кодами ответа.
var (
	// ErrNotFound — сущность с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrValidation — некорректные или отсутствующие входные данные.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState — операция недопустима в текущем состоянии сущности.
	ErrInvalidState = errors.New("invalid state")
)

// kindError — конкретная ошибка, которая через Unwrap относится к одной из категорий.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	// ErrCustomerNotFound возвращается, если клиент не найден в репозитории.
	ErrCustomerNotFound = newKindError(ErrNotFound, "customer not found")
	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = newKindError(ErrNotFound, "product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = newKindError(ErrNotFound, "order not found")

	// Ошибка отсутствующего клиента у заказа.
	ErrCustomerRequired = newKindError(ErrValidation, "customer is required")
	// Ошибка при попытке зарегистрировать уже занятый email.
	ErrEmailAlreadyExists = newKindError(ErrValidation, "email already exists")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = newKindError(ErrValidation, "order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = newKindError(ErrValidation, "item quantity must be greater than zero")
	// ErrItemQtyTooLarge — количество больше MaxItemQuantity.
	ErrItemQtyTooLarge = newKindError(ErrValidation, "item quantity is too large")
	// ErrOrderTotalTooLarge — сумма заказа больше MaxOrderTotal.
	ErrOrderTotalTooLarge = newKindError(ErrValidation, "order total is too large")
	// ErrPriceTooLarge — цена товара больше MaxPrice.
	ErrPriceTooLarge = newKindError(ErrValidation, "price is too large")
	// Ошибка, если цена позиции не положительная.
	ErrItemPriceInvalid = newKindError(ErrValidation, "item unit price must be positive")
	// Ошибка, если цена товара не положительная.
	ErrPriceInvalid = newKindError(ErrValidation, "price must be greater than zero")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = newKindError(ErrValidation, "order total does not match items sum")
	// Ошибка, если позиция ссылается на другой заказ.
	ErrItemBackLink = newKindError(ErrValidation, "order item belongs to another order")
	// Ошибка обращения к несуществующей позиции заказа.
	ErrItemIndexInvalid = newKindError(ErrValidation, "order item index out of range")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = newKindError(ErrValidation, "invalid order status")
	// ErrSearchNameRequired — пустая строка поиска товаров.
	ErrSearchNameRequired = newKindError(ErrValidation, "search name is required")

	// ErrProductInactive — товар снят с продажи и не может попасть в заказ.
	ErrProductInactive = newKindError(ErrInvalidState, "product not active")
	// ErrOrderNotDeletable — заказ в текущем статусе удалять нельзя.
	ErrOrderNotDeletable = newKindError(ErrInvalidState, "cannot delete order with status")
	// ErrStatusTransition — переход не разрешён таблицей переходов (строгий режим).
	ErrStatusTransition = newKindError(ErrInvalidState, "status transition is not allowed")
	// ErrProductReferenced — товар используется в заказах и не может быть удалён.
	ErrProductReferenced = newKindError(ErrInvalidState, "product is referenced by orders")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = newKindError(ErrValidation, "idempotency key is required")
	// ErrIdempotencyKeyTooLong — ключ длиннее допустимого.
	ErrIdempotencyKeyTooLong = newKindError(ErrValidation, "idempotency key is too long")
	// ErrIdempotencyRequestHashRequired — не вычислен хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — записи для ключа нет или она истекла.
	ErrIdempotencyKeyNotFound = newKindError(ErrNotFound, "idempotency key not found")
)

// IsNotFound проверяет, относится ли ошибка к категории NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, относится ли ошибка к категории ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState проверяет, относится ли ошибка к категории InvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
