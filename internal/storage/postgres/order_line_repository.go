package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// opTimeout ограничивает каждое обращение к базе.
const opTimeout = 5 * time.Second

// OrderLineRepository хранит денормализованные строки заказов в PostgreSQL.
// Уникальный ключ (order_id, product_id) делает повторную вставку no-op'ом.
type OrderLineRepository struct {
	db *sql.DB
}

var _ domain.OrderLineRepository = (*OrderLineRepository)(nil)

// NewOrderLineRepository создает репозиторий строк заказов.
func NewOrderLineRepository(store *Store) *OrderLineRepository {
	return &OrderLineRepository{db: store.DB()}
}

// InsertLines вставляет строки заказа в одной транзакции. Конфликт по
// (order_id, product_id) пропускается: строка уже вставлена прошлой доставкой.
func (r *OrderLineRepository) InsertLines(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(opCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert lines tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, line := range lines {
		result, err := tx.ExecContext(opCtx, `
			INSERT INTO order_lines (id, order_id, user_id, product_id, quantity, unit_price, total_amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, line.ID, string(line.OrderID), line.UserID, line.ProductID, line.Quantity,
			line.UnitPrice.String(), line.TotalAmount.String(), string(line.Status),
			line.CreatedAt, line.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert order line (%s, %d): %w", line.OrderID, line.ProductID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for line (%s, %d): %w", line.OrderID, line.ProductID, err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert lines tx: %w", err)
	}
	return inserted, nil
}

// ListByOrder возвращает все строки бизнес-заказа.
func (r *OrderLineRepository) ListByOrder(ctx context.Context, orderID domain.BusinessOrderID) ([]domain.OrderLine, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(opCtx, `
		SELECT id, order_id, user_id, product_id, quantity, unit_price, total_amount, status, created_at, updated_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id
	`, string(orderID))
	if err != nil {
		return nil, fmt.Errorf("query lines by order %s: %w", orderID, err)
	}
	defer rows.Close()

	return scanOrderLines(rows)
}

// ListByUser возвращает все строки всех заказов пользователя.
func (r *OrderLineRepository) ListByUser(ctx context.Context, userID string) ([]domain.OrderLine, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(opCtx, `
		SELECT id, order_id, user_id, product_id, quantity, unit_price, total_amount, status, created_at, updated_at
		FROM order_lines
		WHERE user_id = $1
		ORDER BY order_id, product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query lines by user %s: %w", userID, err)
	}
	defer rows.Close()

	return scanOrderLines(rows)
}

// UpdateStatusByOrder применяет статус ко всем строкам заказа.
func (r *OrderLineRepository) UpdateStatusByOrder(ctx context.Context, orderID domain.BusinessOrderID, status domain.OrderStatus) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.db.ExecContext(opCtx, `
		UPDATE order_lines
		SET status = $2, updated_at = NOW()
		WHERE order_id = $1
	`, string(orderID), string(status))
	if err != nil {
		return 0, fmt.Errorf("update status for order %s: %w", orderID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for status update %s: %w", orderID, err)
	}
	return int(affected), nil
}

// DeleteByOrder удаляет все строки бизнес-заказа.
func (r *OrderLineRepository) DeleteByOrder(ctx context.Context, orderID domain.BusinessOrderID) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.db.ExecContext(opCtx, `DELETE FROM order_lines WHERE order_id = $1`, string(orderID))
	if err != nil {
		return 0, fmt.Errorf("delete lines for order %s: %w", orderID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for delete %s: %w", orderID, err)
	}
	return int(affected), nil
}

func scanOrderLines(rows *sql.Rows) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	for rows.Next() {
		var (
			line        domain.OrderLine
			orderID     string
			status      string
			unitPrice   string
			totalAmount string
		)
		if err := rows.Scan(&line.ID, &orderID, &line.UserID, &line.ProductID, &line.Quantity,
			&unitPrice, &totalAmount, &status, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}

		price, err := decimal.NewFromString(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price %q: %w", unitPrice, err)
		}
		total, err := decimal.NewFromString(totalAmount)
		if err != nil {
			return nil, fmt.Errorf("parse total amount %q: %w", totalAmount, err)
		}

		line.OrderID = domain.BusinessOrderID(orderID)
		line.Status = domain.OrderStatus(status)
		line.UnitPrice = price
		line.TotalAmount = total
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}
