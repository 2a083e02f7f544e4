package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего бизнес-ID заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserIDRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrPriceNegative = errors.New("unit price must be non-negative")
	// Ошибка при нечитаемой строке цены из сообщения.
	ErrPriceMalformed = errors.New("unit price is not a valid decimal")
	// Ошибка несоответствия суммы строки цене и количеству.
	ErrTotalMismatch = errors.New("line total does not match unit price * quantity")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если по бизнес-ID нет ни одной строки.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStorageUnavailable — временная ошибка хранилища, операцию можно повторить.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError — терминальная ошибка валидации сообщения. Сообщение с такой
// ошибкой не повторяется и уходит в dead-letter.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// NewValidationError оборачивает причину в терминальную ошибку валидации.
func NewValidationError(reason error) error {
	return &ValidationError{Reason: reason}
}

// IsValidation проверяет, является ли ошибка терминальной ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StockShortage описывает нехватку стока по одному товару.
type StockShortage struct {
	ProductID int64
	Requested int32
	Available int32
}

// InsufficientStockError — бизнес-исход "не хватило стока". Терминальна для
// заказа, но отличается от ошибки валидации: вызывающая сторона может
// отреагировать (предложить замену, уведомить клиента).
type InsufficientStockError struct {
	OrderID   BusinessOrderID
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("product %d: requested %d, available %d", s.ProductID, s.Requested, s.Available))
	}
	return fmt.Sprintf("insufficient stock for order %s: %s", e.OrderID, strings.Join(parts, "; "))
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой стока.
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

// IsTransient сообщает, имеет ли смысл повторять операцию. Терминальные исходы
// (валидация, нехватка стока, отсутствие данных) не повторяются; всё остальное
// считается временным сбоем хранилища или сети.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsValidation(err) || IsInsufficientStock(err) {
		return false
	}
	if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound) {
		return false
	}
	return true
}
