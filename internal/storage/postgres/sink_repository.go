package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/orderflow/internal/sink"
)

// SinkRepository пишет батчи fan-out sink'а в три целевые таблицы. Все записи
// идемпотентны: orders и order_items гасят повтор по уникальному ключу,
// products перезаписывается upsert'ом, поэтому повтор целого события после
// частичного сбоя сводит таблицы к одному состоянию.
type SinkRepository struct {
	db *sql.DB
}

var _ sink.Repository = (*SinkRepository)(nil)

// NewSinkRepository создает хранилище целевых таблиц sink'а.
func NewSinkRepository(store *Store) *SinkRepository {
	return &SinkRepository{db: store.DB()}
}

// WriteOrders вставляет батч строк заказов, пропуская уже записанные пары
// (order_id, product_id).
func (r *SinkRepository) WriteOrders(ctx context.Context, batch []sink.OrderRecord) error {
	if len(batch) == 0 {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*9)
	for i, record := range batch {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			string(record.OrderID), record.UserID, record.ProductID, record.Quantity,
			record.UnitPrice.String(), record.TotalAmount.String(), string(record.Status),
			record.CreatedAt, record.UpdatedAt)
	}

	query := `
		INSERT INTO orders (order_id, user_id, product_id, quantity, unit_price, total_amount, status, created_at, updated_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (order_id, product_id) DO NOTHING`
	if _, err := r.db.ExecContext(opCtx, query, args...); err != nil {
		return fmt.Errorf("write orders batch (%d rows): %w", len(batch), err)
	}
	return nil
}

// UpsertProducts вставляет или обновляет батч товаров по ключу product id.
func (r *SinkRepository) UpsertProducts(ctx context.Context, batch []sink.ProductRecord) error {
	if len(batch) == 0 {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Дубликаты product id в одном батче ломают multi-row upsert, оставляем
	// последнее вхождение.
	last := make(map[int64]sink.ProductRecord, len(batch))
	order := make([]int64, 0, len(batch))
	for _, record := range batch {
		if _, seen := last[record.ProductID]; !seen {
			order = append(order, record.ProductID)
		}
		last[record.ProductID] = record
	}

	placeholders := make([]string, 0, len(order))
	args := make([]interface{}, 0, len(order)*4)
	for i, productID := range order {
		record := last[productID]
		base := i * 4
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, record.ProductID, record.Name, record.Price.String(), record.UpdatedAt)
	}

	query := `
		INSERT INTO products (id, name, price, updated_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(opCtx, query, args...); err != nil {
		return fmt.Errorf("upsert products batch (%d rows): %w", len(order), err)
	}
	return nil
}

// WriteOrderItems вставляет батч позиций, пропуская уже записанные пары
// (order_id, product_id).
func (r *SinkRepository) WriteOrderItems(ctx context.Context, batch []sink.OrderItemRecord) error {
	if len(batch) == 0 {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*4)
	for i, record := range batch {
		base := i * 4
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, int64(record.OrderID), record.ProductID, record.Quantity, record.Price.String())
	}

	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (order_id, product_id) DO NOTHING`
	if _, err := r.db.ExecContext(opCtx, query, args...); err != nil {
		return fmt.Errorf("write order items batch (%d rows): %w", len(batch), err)
	}
	return nil
}
