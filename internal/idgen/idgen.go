// Package idgen выдаёт бизнес-идентификаторы заказов.
package idgen

import (
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Generator генерирует глобально уникальные бизнес-ID на базе UUID v4.
type Generator struct{}

// New возвращает генератор по умолчанию.
func New() *Generator {
	return &Generator{}
}

// NewOrderID возвращает новый бизнес-ID заказа.
func (g *Generator) NewOrderID() domain.BusinessOrderID {
	return domain.BusinessOrderID(uuid.NewString())
}

var _ domain.IDGenerator = (*Generator)(nil)
