package domain

import "context"

// OrderLineRepository описывает требования к хранилищу строк заказа.
type OrderLineRepository interface {
	// InsertLines сохраняет строки заказа. Конфликт по (order_id, product_id)
	// не является ошибкой: строка уже вставлена прошлой доставкой сообщения.
	// Возвращает число реально вставленных строк.
	InsertLines(ctx context.Context, lines []OrderLine) (int, error)
	// ListByOrder возвращает все строки бизнес-заказа (может быть пусто).
	ListByOrder(ctx context.Context, orderID BusinessOrderID) ([]OrderLine, error)
	// ListByUser возвращает все строки всех заказов пользователя.
	ListByUser(ctx context.Context, userID string) ([]OrderLine, error)
	// UpdateStatusByOrder применяет статус ко всем строкам бизнес-заказа и
	// возвращает число затронутых строк (0, если заказ неизвестен).
	UpdateStatusByOrder(ctx context.Context, orderID BusinessOrderID, status OrderStatus) (int, error)
	// DeleteByOrder удаляет все строки бизнес-заказа, возвращает их число.
	DeleteByOrder(ctx context.Context, orderID BusinessOrderID) (int, error)
}

// StockLedger владеет стоком каталога. Единственный примитив мутации —
// атомарный условный decrement на уровне хранилища; инвариант stock >= 0
// держится при любом чередовании конкурентных воркеров.
type StockLedger interface {
	// ReserveOrder резервирует все позиции заказа в одной транзакции.
	// При нехватке стока хотя бы по одной позиции ничего не фиксируется и
	// возвращается OutcomeInsufficientStock с деталями. Повторный вызов для
	// уже зарезервированной пары (order, product) — no-op.
	ReserveOrder(ctx context.Context, orderID BusinessOrderID, items []RequestItem) (ReservationOutcome, error)
	// ReleaseOrder снимает активные резервы заказа и возвращает сток.
	// Возвращает число снятых резервов (0, если резервов не было).
	ReleaseOrder(ctx context.Context, orderID BusinessOrderID) (int, error)
	// Release — компенсирующее увеличение стока одного товара.
	Release(ctx context.Context, productID int64, quantity int32) error
}

// ProductCatalog — read-доступ движка к каталогу товаров.
type ProductCatalog interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, productID int64) (Product, error)
}

// IDGenerator выдаёт новый глобально уникальный бизнес-ID заказа.
type IDGenerator interface {
	NewOrderID() BusinessOrderID
}
