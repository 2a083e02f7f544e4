package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BusinessOrderID — строковый бизнес-идентификатор заказа. Общий для всех
// строк одного логического заказа, не совпадает ни с каким суррогатным ID.
type BusinessOrderID string

// LineOrderID — числовой идентификатор заказа в таблице order_items fan-out
// sink'а. Отдельное пространство идентификаторов: BusinessOrderID никогда не
// приводится к LineOrderID неявно.
type LineOrderID int64

// OrderStatus описывает статус заказа на уровне бизнес-ID.
type OrderStatus string

const (
	// StatusPending — заказ создан, ожидает обработки.
	StatusPending OrderStatus = "PENDING"
	// StatusProcessing — заказ в обработке (резерв, подтверждение).
	StatusProcessing OrderStatus = "PROCESSING"
	// StatusShipped — заказ отгружен.
	StatusShipped OrderStatus = "SHIPPED"
	// StatusDelivered — заказ доставлен.
	StatusDelivered OrderStatus = "DELIVERED"
	// StatusCancelled — заказ отменён.
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusRefunded — по заказу выполнен возврат.
	StatusRefunded OrderStatus = "REFUNDED"
	// StatusNew — только что созданный заказ.
	StatusNew OrderStatus = "NEW"
	// StatusUnknown — fallback для нераспознанного статуса из сообщения.
	StatusUnknown OrderStatus = "UNKNOWN"
)

var knownStatuses = map[string]OrderStatus{
	string(StatusPending):    StatusPending,
	string(StatusProcessing): StatusProcessing,
	string(StatusShipped):    StatusShipped,
	string(StatusDelivered):  StatusDelivered,
	string(StatusCancelled):  StatusCancelled,
	string(StatusRefunded):   StatusRefunded,
	string(StatusNew):        StatusNew,
	string(StatusUnknown):    StatusUnknown,
}

// ParseOrderStatus сопоставляет текст со статусом без учёта регистра.
// Нераспознанный или пустой текст деградирует в StatusUnknown: невалидный
// статус не считается ошибкой и не прерывает обработку заказа.
func ParseOrderStatus(text string) OrderStatus {
	status, ok := knownStatuses[strings.ToUpper(strings.TrimSpace(text))]
	if !ok {
		return StatusUnknown
	}
	return status
}

// Valid сообщает, относится ли статус к известным значениям.
func (s OrderStatus) Valid() bool {
	_, ok := knownStatuses[string(s)]
	return ok
}

// OrderLine — денормализованная строка заказа: одна запись на пару
// (бизнес-ID заказа, товар).
type OrderLine struct {
	// ID — суррогатный идентификатор строки, присваивается при вставке.
	ID string
	// OrderID — бизнес-ID, общий для всех строк логического заказа.
	OrderID BusinessOrderID
	// UserID — владелец заказа; одинаков у всех строк одного OrderID.
	UserID string
	// ProductID — товар этой строки.
	ProductID int64
	// Quantity — количество единиц, строго больше нуля.
	Quantity int32
	// UnitPrice — каталожная цена за единицу (не клиентская).
	UnitPrice decimal.Decimal
	// TotalAmount = UnitPrice * Quantity.
	TotalAmount decimal.Decimal
	// Status читается и меняется на уровне бизнес-ID, не per-line.
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет инварианты строки заказа.
func (l *OrderLine) Validate() []error {
	var errs []error

	if l.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if l.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if l.ProductID <= 0 {
		errs = append(errs, ErrProductIDRequired)
	}
	if l.Quantity <= 0 {
		errs = append(errs, ErrQuantityInvalid)
	}
	if l.UnitPrice.IsNegative() {
		errs = append(errs, ErrPriceNegative)
	}
	if !l.TotalAmount.Equal(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// LogicalOrder — агрегат всех строк одного бизнес-ID для read API.
type LogicalOrder struct {
	OrderID BusinessOrderID
	UserID  string
	Status  OrderStatus
	Items   []OrderLineView
}

// OrderLineView — проекция строки заказа внутри логического заказа.
type OrderLineView struct {
	ProductID   int64
	Quantity    int32
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
}

// GroupLines собирает логический заказ из набора строк одного бизнес-ID.
// UserID и Status берутся из первой строки: инвариант хранилища гарантирует,
// что они одинаковы у всей группы.
func GroupLines(orderID BusinessOrderID, lines []OrderLine) (LogicalOrder, bool) {
	if len(lines) == 0 {
		return LogicalOrder{}, false
	}

	order := LogicalOrder{
		OrderID: orderID,
		UserID:  lines[0].UserID,
		Status:  lines[0].Status,
		Items:   make([]OrderLineView, 0, len(lines)),
	}
	for _, line := range lines {
		order.Items = append(order.Items, OrderLineView{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalAmount: line.TotalAmount,
		})
	}
	return order, true
}
