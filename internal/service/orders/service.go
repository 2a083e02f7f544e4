package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/aggregate"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
)

// Publisher публикует запрос на создание заказа в очередь.
type Publisher interface {
	PublishOrderRequest(message kafka.OrderRequestMessage) error
}

// Service — управляющая поверхность intake API. Создание заказа асинхронно:
// запрос только проверяется на форму и публикуется в очередь, клиент узнаёт
// результат обработки отдельным запросом статуса. Чтение и мутации идут
// через слой агрегации.
type Service struct {
	publisher Publisher
	aggregate *aggregate.Service
	idgen     domain.IDGenerator
	logger    *log.Entry
}

// NewService создает управляющий сервис заказов.
func NewService(publisher Publisher, aggregateService *aggregate.Service, idgen domain.IDGenerator) *Service {
	return &Service{
		publisher: publisher,
		aggregate: aggregateService,
		idgen:     idgen,
		logger:    log.WithField("component", "orders-service"),
	}
}

// CreateOrder принимает запрос в обработку: проверяет форму, выдаёт бизнес-ID
// при его отсутствии и публикует сообщение в очередь. Успешный возврат
// означает "принято", а не "обработано".
func (s *Service) CreateOrder(ctx context.Context, request domain.OrderRequest) (domain.BusinessOrderID, error) {
	if request.UserID == "" {
		return "", domain.NewValidationError(domain.ErrUserIDRequired)
	}
	if len(request.Items) == 0 {
		return "", domain.NewValidationError(domain.ErrItemsRequired)
	}

	orderID := request.OrderID
	if orderID == "" {
		orderID = s.idgen.NewOrderID()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	message := kafka.OrderRequestMessage{
		OrderID:   string(orderID),
		UserID:    request.UserID,
		Status:    request.Status,
		Items:     make([]kafka.OrderItemMessage, 0, len(request.Items)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, item := range request.Items {
		message.Items = append(message.Items, kafka.OrderItemMessage{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
		})
	}

	if err := s.publisher.PublishOrderRequest(message); err != nil {
		return "", fmt.Errorf("publish order request %s: %w", orderID, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  request.UserID,
		"items":    len(request.Items),
	}).Info("order request accepted")
	return orderID, nil
}

// GetOrder возвращает логический заказ или ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID domain.BusinessOrderID) (domain.LogicalOrder, error) {
	return s.aggregate.GetOrder(ctx, orderID)
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID string) ([]domain.LogicalOrder, error) {
	return s.aggregate.ListByUser(ctx, userID)
}

// UpdateStatus применяет статус ко всем строкам заказа.
func (s *Service) UpdateStatus(ctx context.Context, orderID domain.BusinessOrderID, status domain.OrderStatus) (int, error) {
	return s.aggregate.UpdateStatus(ctx, orderID, status)
}

// CancelOrder отменяет заказ с возвратом стока. false - заказ не найден.
func (s *Service) CancelOrder(ctx context.Context, orderID domain.BusinessOrderID) (bool, error) {
	return s.aggregate.Cancel(ctx, orderID)
}
