package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale — число знаков после запятой для денежных сумм.
const MoneyScale = 2

// Пределы совпадают с колонками NUMERIC(12,2) для цены и NUMERIC(14,2) для суммы заказа.
var (
	MaxPrice      = decimal.New(999_999_999_999, -MoneyScale)
	MaxOrderTotal = decimal.New(99_999_999_999_999, -MoneyScale)
)

// Product — товар каталога.
type Product struct {
	ID          int64
	Name        string `validate:"required,max=255"`
	Description string `validate:"max=100"`
	Price       decimal.Decimal
	Active      bool
}

// Normalize обрезает пробелы и приводит цену к масштабу MoneyScale.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Price = p.Price.Round(MoneyScale)
}

// Validate проверяет поля товара. Цена должна быть строго положительной.
func (p Product) Validate() error {
	if err := ValidateStruct(p); err != nil {
		return err
	}
	if !p.Price.IsPositive() {
		return ErrPriceInvalid
	}
	if p.Price.GreaterThan(MaxPrice) {
		return fmt.Errorf("%w: %s > %s", ErrPriceTooLarge, p.Price.StringFixed(MoneyScale), MaxPrice.StringFixed(MoneyScale))
	}
	return nil
}

// ProductFilter задаёт условия выборки товаров.
type ProductFilter struct {
	// ActiveOnly оставляет только товары, доступные для заказа.
	ActiveOnly bool
	// NameContains — подстрока имени без учёта регистра.
	NameContains string
}
