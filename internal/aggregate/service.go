package aggregate

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Service восстанавливает логические заказы из денормализованных строк и
// выполняет мутации на уровне бизнес-ID: смену статуса и отмену с возвратом
// стока.
type Service struct {
	lines  domain.OrderLineRepository
	ledger domain.StockLedger
	logger *log.Entry
}

// NewService создает слой агрегации заказов.
func NewService(lines domain.OrderLineRepository, ledger domain.StockLedger) *Service {
	return &Service{
		lines:  lines,
		ledger: ledger,
		logger: log.WithField("component", "order-aggregate"),
	}
}

// GetOrder возвращает логический заказ по бизнес-ID или ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID domain.BusinessOrderID) (domain.LogicalOrder, error) {
	lines, err := s.lines.ListByOrder(ctx, orderID)
	if err != nil {
		return domain.LogicalOrder{}, fmt.Errorf("list lines for order %s: %w", orderID, err)
	}

	order, ok := domain.GroupLines(orderID, lines)
	if !ok {
		return domain.LogicalOrder{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return order, nil
}

// ListByUser возвращает все логические заказы пользователя, отсортированные по
// бизнес-ID по убыванию (свежие uuid-ы не монотонны, но порядок стабилен).
func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.LogicalOrder, error) {
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list lines for user %s: %w", userID, err)
	}

	byOrder := make(map[domain.BusinessOrderID][]domain.OrderLine)
	ids := make([]domain.BusinessOrderID, 0)
	for _, line := range lines {
		if _, seen := byOrder[line.OrderID]; !seen {
			ids = append(ids, line.OrderID)
		}
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	orders := make([]domain.LogicalOrder, 0, len(ids))
	for _, id := range ids {
		if order, ok := domain.GroupLines(id, byOrder[id]); ok {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// UpdateStatus применяет статус ко всем строкам заказа и возвращает число
// затронутых строк. Неизвестный бизнес-ID — не ошибка, затронуто 0 строк.
func (s *Service) UpdateStatus(ctx context.Context, orderID domain.BusinessOrderID, status domain.OrderStatus) (int, error) {
	if !status.Valid() {
		return 0, domain.NewValidationError(fmt.Errorf("unknown order status %q", status))
	}

	affected, err := s.lines.UpdateStatusByOrder(ctx, orderID, status)
	if err != nil {
		return 0, fmt.Errorf("update status for order %s: %w", orderID, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
		"affected": affected,
	}).Info("order status updated")
	return affected, nil
}

// Cancel отменяет заказ: снимает резервы (возвращая сток) и удаляет строки.
// Возвращает false, если заказа не существует.
func (s *Service) Cancel(ctx context.Context, orderID domain.BusinessOrderID) (bool, error) {
	released, err := s.ledger.ReleaseOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("release reservations for order %s: %w", orderID, err)
	}

	deleted, err := s.lines.DeleteByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("delete lines for order %s: %w", orderID, err)
	}

	if released == 0 && deleted == 0 {
		return false, nil
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"released": released,
		"deleted":  deleted,
	}).Info("order cancelled")
	return true, nil
}
