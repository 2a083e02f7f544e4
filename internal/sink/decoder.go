package sink

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// OrderRecord — строка для таблицы orders fan-out sink'а.
type OrderRecord struct {
	OrderID     domain.BusinessOrderID
	UserID      string
	ProductID   int64
	Quantity    int32
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	Status      domain.OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductRecord — upsert для таблицы products по ключу ProductID.
type ProductRecord struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// OrderItemRecord — строка для таблицы order_items. Ключуется числовым
// LineOrderID, отдельным от строкового бизнес-ID.
type OrderItemRecord struct {
	OrderID   domain.LineOrderID
	ProductID int64
	Quantity  int32
	Price     decimal.Decimal
}

// EventRecords — результат разбора одного события: по записи каждого класса
// на каждую позицию.
type EventRecords struct {
	Orders     []OrderRecord
	Products   []ProductRecord
	OrderItems []OrderItemRecord
}

// looseEvent — сырой wire-формат события. Все поля опциональны: недостающие
// данные заменяются детерминированными значениями по умолчанию, событие
// никогда не отбрасывается из-за неполноты.
type looseEvent struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Status    string      `json:"status"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
	Items     []looseItem `json:"items"`
}

type looseItem struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
}

// Decoder разбирает свободно типизированные события заказов в записи трёх
// классов. Единственная невосстановимая ошибка — нечитаемый JSON; всё
// остальное деградирует в значения по умолчанию.
type Decoder struct {
	idgen  domain.IDGenerator
	now    func() time.Time
	logger *log.Entry
}

// NewDecoder создает декодер событий sink'а.
func NewDecoder(idgen domain.IDGenerator) *Decoder {
	return &Decoder{
		idgen:  idgen,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "sink-decoder"),
	}
}

// Decode разбирает событие в записи для трёх целевых таблиц.
func (d *Decoder) Decode(value []byte) (EventRecords, error) {
	var event looseEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return EventRecords{}, fmt.Errorf("unmarshal order event: %w", err)
	}

	orderID := domain.BusinessOrderID(strings.TrimSpace(event.OrderID))
	if orderID == "" {
		orderID = d.idgen.NewOrderID()
		d.logger.WithField("generated_order_id", orderID).Warn("event without order id, generated one")
	}

	status := domain.ParseOrderStatus(event.Status)
	createdAt := d.parseTimestamp(event.CreatedAt)
	updatedAt := d.parseTimestamp(event.UpdatedAt)

	// Числовой ID для order_items существует только у числовых бизнес-ID.
	lineOrderID, hasLineID := parseLineOrderID(orderID)
	if !hasLineID {
		d.logger.WithField("order_id", orderID).Warn("non-numeric order id, order_items records skipped")
	}

	records := EventRecords{
		Orders:     make([]OrderRecord, 0, len(event.Items)),
		Products:   make([]ProductRecord, 0, len(event.Items)),
		OrderItems: make([]OrderItemRecord, 0, len(event.Items)),
	}

	for _, item := range event.Items {
		price := d.parsePrice(orderID, item)
		quantity := item.Quantity
		if quantity < 0 {
			quantity = 0
		}

		records.Orders = append(records.Orders, OrderRecord{
			OrderID:     orderID,
			UserID:      event.UserID,
			ProductID:   item.ProductID,
			Quantity:    quantity,
			UnitPrice:   price,
			TotalAmount: price.Mul(decimal.NewFromInt32(quantity)),
			Status:      status,
			CreatedAt:   createdAt,
			UpdatedAt:   updatedAt,
		})
		records.Products = append(records.Products, ProductRecord{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Price:     price,
			UpdatedAt: updatedAt,
		})
		if hasLineID {
			records.OrderItems = append(records.OrderItems, OrderItemRecord{
				OrderID:   lineOrderID,
				ProductID: item.ProductID,
				Quantity:  quantity,
				Price:     price,
			})
		}
	}

	return records, nil
}

// parseTimestamp разбирает RFC3339 timestamp, при любой проблеме возвращая
// текущее время.
func (d *Decoder) parseTimestamp(text string) time.Time {
	if text == "" {
		return d.now()
	}
	parsed, err := time.Parse(time.RFC3339, text)
	if err != nil {
		d.logger.WithField("timestamp", text).Warn("unparseable timestamp, defaulting to now")
		return d.now()
	}
	return parsed.UTC()
}

// parsePrice разбирает цену позиции, деградируя в ноль.
func (d *Decoder) parsePrice(orderID domain.BusinessOrderID, item looseItem) decimal.Decimal {
	text := strings.TrimSpace(item.UnitPrice)
	if text == "" {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(text)
	if err != nil || price.IsNegative() {
		d.logger.WithFields(log.Fields{
			"order_id":   orderID,
			"product_id": item.ProductID,
			"unit_price": item.UnitPrice,
		}).Warn("unusable unit price, defaulting to zero")
		return decimal.Zero
	}
	return price
}

func parseLineOrderID(orderID domain.BusinessOrderID) (domain.LineOrderID, bool) {
	id, err := strconv.ParseInt(string(orderID), 10, 64)
	if err != nil {
		return 0, false
	}
	return domain.LineOrderID(id), true
}
