package domain

import "github.com/shopspring/decimal"

// ProductStatus отражает доступность товара в каталоге.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
)

// Product — запись каталога. Цена здесь авторитетна: клиентская цена из
// сообщения при расхождении молча заменяется каталожной.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int32
	Category string
	Status   ProductStatus
}
