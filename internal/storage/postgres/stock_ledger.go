package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// StockLedger владеет стоком каталога в PostgreSQL. Единственный примитив
// списания — условный UPDATE `stock = stock - n WHERE stock >= n`: сток
// никогда не читается и не записывается раздельно, инвариант stock >= 0
// держит сама база при любом числе конкурентных воркеров.
type StockLedger struct {
	db *sql.DB
}

var _ domain.StockLedger = (*StockLedger)(nil)

// NewStockLedger создает реестр стока поверх таблиц products и reservations.
func NewStockLedger(store *Store) *StockLedger {
	return &StockLedger{db: store.DB()}
}

// ReserveOrder резервирует все позиции заказа в одной транзакции. Нехватка
// стока хотя бы по одной позиции откатывает всё: частичный резерв не
// переживает отказ. Пара (order_id, product_id), зарезервированная прошлой
// доставкой, пропускается без повторного списания; RELEASED-резерв означает
// отменённый заказ и завершает резервирование исходом OutcomeAlreadyCancelled.
func (l *StockLedger) ReserveOrder(ctx context.Context, orderID domain.BusinessOrderID, items []domain.RequestItem) (domain.ReservationOutcome, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(opCtx, nil)
	if err != nil {
		return domain.ReservationOutcome{}, fmt.Errorf("begin reservation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var shortages []domain.StockShortage
	for _, item := range items {
		result, err := tx.ExecContext(opCtx, `
			INSERT INTO reservations (order_id, product_id, quantity, status)
			VALUES ($1, $2, $3, 'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, string(orderID), item.ProductID, item.Quantity)
		if err != nil {
			return domain.ReservationOutcome{}, fmt.Errorf("insert reservation (%s, %d): %w", orderID, item.ProductID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return domain.ReservationOutcome{}, fmt.Errorf("rows affected for reservation (%s, %d): %w", orderID, item.ProductID, err)
		}
		if affected == 0 {
			var status string
			err := tx.QueryRowContext(opCtx, `
				SELECT status FROM reservations WHERE order_id = $1 AND product_id = $2
			`, string(orderID), item.ProductID).Scan(&status)
			if err != nil {
				return domain.ReservationOutcome{}, fmt.Errorf("query reservation status (%s, %d): %w", orderID, item.ProductID, err)
			}
			if status == string(domain.ReservationReleased) {
				// Заказ отменён: RELEASED-резерв — tombstone, создание не
				// переигрывается. Rollback через defer.
				return domain.ReservationOutcome{Kind: domain.OutcomeAlreadyCancelled}, nil
			}
			// Активный резерв - повторная доставка, сток не трогаем.
			continue
		}

		decremented, err := tx.ExecContext(opCtx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
		`, item.ProductID, item.Quantity)
		if err != nil {
			return domain.ReservationOutcome{}, fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
		updated, err := decremented.RowsAffected()
		if err != nil {
			return domain.ReservationOutcome{}, fmt.Errorf("rows affected for decrement %d: %w", item.ProductID, err)
		}
		if updated == 0 {
			available, err := l.availableStock(opCtx, tx, item.ProductID)
			if err != nil {
				return domain.ReservationOutcome{}, err
			}
			shortages = append(shortages, domain.StockShortage{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}

	if len(shortages) > 0 {
		// Rollback через defer: ни резерв, ни списание не фиксируются.
		return domain.ReservationOutcome{
			Kind:      domain.OutcomeInsufficientStock,
			Shortages: shortages,
		}, nil
	}

	if err := tx.Commit(); err != nil {
		return domain.ReservationOutcome{}, fmt.Errorf("commit reservation tx: %w", err)
	}
	return domain.ReservationOutcome{Kind: domain.OutcomeReserved}, nil
}

// ReleaseOrder снимает активные резервы заказа и возвращает сток.
func (l *StockLedger) ReleaseOrder(ctx context.Context, orderID domain.BusinessOrderID) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(opCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin release tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(opCtx, `
		SELECT product_id, quantity
		FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'
		FOR UPDATE
	`, string(orderID))
	if err != nil {
		return 0, fmt.Errorf("query reservations for order %s: %w", orderID, err)
	}

	type reserved struct {
		productID int64
		quantity  int32
	}
	var active []reserved
	for rows.Next() {
		var r reserved
		if err := rows.Scan(&r.productID, &r.quantity); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan reservation: %w", err)
		}
		active = append(active, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate reservations: %w", err)
	}
	rows.Close()

	if len(active) == 0 {
		return 0, nil
	}

	for _, r := range active {
		if _, err := tx.ExecContext(opCtx, `
			UPDATE products SET stock = stock + $2 WHERE id = $1
		`, r.productID, r.quantity); err != nil {
			return 0, fmt.Errorf("restore stock for product %d: %w", r.productID, err)
		}
	}

	if _, err := tx.ExecContext(opCtx, `
		UPDATE reservations SET status = 'RELEASED' WHERE order_id = $1 AND status = 'RESERVED'
	`, string(orderID)); err != nil {
		return 0, fmt.Errorf("release reservations for order %s: %w", orderID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit release tx: %w", err)
	}
	return len(active), nil
}

// Release — компенсирующее увеличение стока одного товара.
func (l *StockLedger) Release(ctx context.Context, productID int64, quantity int32) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := l.db.ExecContext(opCtx, `
		UPDATE products SET stock = stock + $2 WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("release stock for product %d: %w", productID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for release %d: %w", productID, err)
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

func (l *StockLedger) availableStock(ctx context.Context, tx *sql.Tx, productID int64) (int32, error) {
	var available int32
	err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query stock for product %d: %w", productID, err)
	}
	return available, nil
}
