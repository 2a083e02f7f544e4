package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type lineKey struct {
	orderID   domain.BusinessOrderID
	productID int64
}

// orderLineRepositoryInMemory — in-memory реализация OrderLineRepository.
type orderLineRepositoryInMemory struct {
	mu    sync.RWMutex
	lines map[lineKey]domain.OrderLine
	// order сохраняет порядок вставки для детерминированных выборок.
	order []lineKey
}

// NewOrderLineRepository возвращает in-memory хранилище строк заказов для
// локальной разработки и тестов.
func NewOrderLineRepository() domain.OrderLineRepository {
	return &orderLineRepositoryInMemory{
		lines: make(map[lineKey]domain.OrderLine),
	}
}

// InsertLines вставляет строки; конфликт по (order_id, product_id) — no-op,
// как и ON CONFLICT DO NOTHING в Postgres-реализации.
func (r *orderLineRepositoryInMemory) InsertLines(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, line := range lines {
		key := lineKey{orderID: line.OrderID, productID: line.ProductID}
		if _, exists := r.lines[key]; exists {
			continue
		}
		r.lines[key] = line
		r.order = append(r.order, key)
		inserted++
	}
	return inserted, nil
}

func (r *orderLineRepositoryInMemory) ListByOrder(ctx context.Context, orderID domain.BusinessOrderID) ([]domain.OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OrderLine, 0)
	for _, key := range r.order {
		if key.orderID == orderID {
			result = append(result, r.lines[key])
		}
	}
	return result, nil
}

func (r *orderLineRepositoryInMemory) ListByUser(ctx context.Context, userID string) ([]domain.OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OrderLine, 0)
	for _, key := range r.order {
		if line := r.lines[key]; line.UserID == userID {
			result = append(result, line)
		}
	}
	return result, nil
}

func (r *orderLineRepositoryInMemory) UpdateStatusByOrder(ctx context.Context, orderID domain.BusinessOrderID, status domain.OrderStatus) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	affected := 0
	for key, line := range r.lines {
		if key.orderID != orderID {
			continue
		}
		line.Status = status
		r.lines[key] = line
		affected++
	}
	return affected, nil
}

func (r *orderLineRepositoryInMemory) DeleteByOrder(ctx context.Context, orderID domain.BusinessOrderID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	remaining := r.order[:0]
	for _, key := range r.order {
		if key.orderID == orderID {
			delete(r.lines, key)
			deleted++
			continue
		}
		remaining = append(remaining, key)
	}
	r.order = remaining
	return deleted, nil
}

var _ domain.OrderLineRepository = (*orderLineRepositoryInMemory)(nil)
