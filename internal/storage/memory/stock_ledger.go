package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type reservationKey struct {
	orderID   domain.BusinessOrderID
	productID int64
}

// stockLedgerInMemory — in-memory реализация StockLedger поверх общего
// каталога. Мьютекс играет роль транзакции хранилища: резервирование заказа
// атомарно per-order, частичные списания наружу не видны.
type stockLedgerInMemory struct {
	mu           sync.Mutex
	catalog      *productCatalogInMemory
	reservations map[reservationKey]domain.Reservation
}

// NewStockLedger возвращает in-memory леджер стока поверх каталога.
func NewStockLedger(catalog domain.ProductCatalog) domain.StockLedger {
	mem, ok := catalog.(*productCatalogInMemory)
	if !ok {
		panic("memory.NewStockLedger requires the in-memory product catalog")
	}
	return &stockLedgerInMemory{
		catalog:      mem,
		reservations: make(map[reservationKey]domain.Reservation),
	}
}

// ReserveOrder резервирует все позиции заказа либо ни одной. Уже существующий
// резерв пары (order, product) пропускается: повторная доставка сообщения не
// списывает сток второй раз. RELEASED-резерв означает отменённый заказ и
// завершает резервирование исходом OutcomeAlreadyCancelled.
func (l *stockLedgerInMemory) ReserveOrder(ctx context.Context, orderID domain.BusinessOrderID, items []domain.RequestItem) (domain.ReservationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReservationOutcome{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	type pendingDecrement struct {
		productID int64
		quantity  int32
	}

	var shortages []domain.StockShortage
	var pending []pendingDecrement

	for _, item := range items {
		key := reservationKey{orderID: orderID, productID: item.ProductID}
		if res, exists := l.reservations[key]; exists {
			if res.Status == domain.ReservationReleased {
				// Заказ отменён: RELEASED-резерв — tombstone, создание не
				// переигрывается.
				return domain.ReservationOutcome{Kind: domain.OutcomeAlreadyCancelled}, nil
			}
			continue
		}

		stock, ok := l.catalog.stock(item.ProductID)
		if !ok {
			return domain.ReservationOutcome{}, fmt.Errorf("reserve product %d: %w", item.ProductID, domain.ErrProductNotFound)
		}
		if stock < item.Quantity {
			shortages = append(shortages, domain.StockShortage{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: stock,
			})
			continue
		}
		pending = append(pending, pendingDecrement{productID: item.ProductID, quantity: item.Quantity})
	}

	if len(shortages) > 0 {
		// Ничего не фиксируем: резерв атомарен для всего заказа.
		return domain.ReservationOutcome{
			Kind:      domain.OutcomeInsufficientStock,
			Shortages: shortages,
		}, nil
	}

	now := time.Now().UTC()
	for _, p := range pending {
		l.catalog.adjustStock(p.productID, -p.quantity)
		l.reservations[reservationKey{orderID: orderID, productID: p.productID}] = domain.Reservation{
			OrderID:   orderID,
			ProductID: p.productID,
			Quantity:  p.quantity,
			Status:    domain.ReservationReserved,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return domain.ReservationOutcome{Kind: domain.OutcomeReserved}, nil
}

// ReleaseOrder снимает активные резервы заказа и возвращает сток в каталог.
func (l *stockLedgerInMemory) ReleaseOrder(ctx context.Context, orderID domain.BusinessOrderID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	released := 0
	for key, res := range l.reservations {
		if key.orderID != orderID || res.Status != domain.ReservationReserved {
			continue
		}
		l.catalog.adjustStock(res.ProductID, res.Quantity)
		res.Status = domain.ReservationReleased
		res.UpdatedAt = time.Now().UTC()
		l.reservations[key] = res
		released++
	}
	return released, nil
}

// Release — компенсирующее увеличение стока одного товара.
func (l *stockLedgerInMemory) Release(ctx context.Context, productID int64, quantity int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.catalog.stock(productID); !ok {
		return fmt.Errorf("release product %d: %w", productID, domain.ErrProductNotFound)
	}
	l.catalog.adjustStock(productID, quantity)
	return nil
}

var _ domain.StockLedger = (*stockLedgerInMemory)(nil)
