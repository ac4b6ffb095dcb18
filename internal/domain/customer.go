package domain

import "strings"

// Customer — покупатель, владелец заказов.
type Customer struct {
	ID    int64
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email,max=255"`
	Phone int64  `validate:"required,gt=0"`
}

// Normalize убирает пробелы по краям строковых полей.
func (c *Customer) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
}

// Validate проверяет обязательные поля и формат email.
func (c Customer) Validate() error {
	return ValidateStruct(c)
}

// Ref возвращает краткое представление клиента для заказа.
func (c Customer) Ref() CustomerRef {
	return CustomerRef{ID: c.ID, Name: c.Name, Email: c.Email}
}

// CustomerRef — данные клиента, которые показываются вместе с заказом.
type CustomerRef struct {
	ID    int64
	Name  string
	Email string
}
