package domain

import "github.com/shopspring/decimal"

// RequestItem — одна позиция входящего запроса на заказ после валидирующего
// декодирования на границе очереди.
type RequestItem struct {
	ProductID int64
	// ProductName присылает продьюсер; используется только fan-out sink'ом
	// для upsert'а каталога.
	ProductName string
	Quantity    int32
	// UnitPrice — клиентская цена, разобранная из текста. Движок сверяет её
	// с каталожной и при расхождении использует каталожную.
	UnitPrice decimal.Decimal
}

// OrderRequest — валидированный запрос на создание заказа. Весь код ниже
// границы декодирования оперирует только этим типом.
type OrderRequest struct {
	// OrderID может быть пустым: тогда движок генерирует новый бизнес-ID.
	OrderID BusinessOrderID
	UserID  string
	// Status — текст статуса от продьюсера; пустой или нераспознанный
	// деградирует в StatusUnknown.
	Status string
	Items  []RequestItem
}
