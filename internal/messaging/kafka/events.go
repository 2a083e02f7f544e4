package kafka

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Topics конвейера заказов.
const (
	// TopicOrderRequests — входящие запросы на создание заказа.
	TopicOrderRequests = "orders.requests"
	// TopicDeadLetterQueue — терминально необработанные сообщения.
	TopicDeadLetterQueue = "orders.dlq"
)

// Kafka headers для retry/DLQ логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderItemMessage — одна позиция входящего сообщения.
type OrderItemMessage struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int32  `json:"quantity"`
	// UnitPrice передаётся текстом и разбирается в точный decimal на границе.
	UnitPrice string `json:"unitPrice"`
}

// OrderRequestMessage — wire-формат запроса на создание заказа.
type OrderRequestMessage struct {
	OrderID   string             `json:"orderId,omitempty"`
	UserID    string             `json:"userId"`
	Status    string             `json:"status,omitempty"`
	Items     []OrderItemMessage `json:"items"`
	CreatedAt string             `json:"createdAt,omitempty"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
}

// DecodeOrderRequest — единственная точка декодирования на границе очереди.
// Возвращает либо полностью типизированный domain.OrderRequest, либо
// терминальную ошибку валидации; весь код ниже работает только с
// валидированным типом.
func DecodeOrderRequest(message *sarama.ConsumerMessage) (domain.OrderRequest, error) {
	var wire OrderRequestMessage
	if err := json.Unmarshal(message.Value, &wire); err != nil {
		return domain.OrderRequest{}, domain.NewValidationError(fmt.Errorf("unmarshal order request: %w", err))
	}

	request := domain.OrderRequest{
		OrderID: domain.BusinessOrderID(strings.TrimSpace(wire.OrderID)),
		UserID:  strings.TrimSpace(wire.UserID),
		Status:  wire.Status,
		Items:   make([]domain.RequestItem, 0, len(wire.Items)),
	}

	for _, item := range wire.Items {
		price, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
		if err != nil {
			return domain.OrderRequest{}, domain.NewValidationError(
				fmt.Errorf("item product %d price %q: %w", item.ProductID, item.UnitPrice, domain.ErrPriceMalformed))
		}
		request.Items = append(request.Items, domain.RequestItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   price,
		})
	}

	return request, nil
}
