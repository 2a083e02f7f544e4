package domain

import "time"

// ReservationStatus отражает состояние резерва стока под строку заказа.
type ReservationStatus string

const (
	// ReservationReserved — сток списан под заказ.
	ReservationReserved ReservationStatus = "RESERVED"
	// ReservationReleased — резерв снят, сток возвращён (отмена/компенсация).
	ReservationReleased ReservationStatus = "RELEASED"
)

// Reservation — запись резерва, ключ (OrderID, ProductID). Этот ключ делает
// повторную доставку сообщения безопасным no-op: уже существующий резерв не
// списывает сток второй раз.
type Reservation struct {
	OrderID   BusinessOrderID
	ProductID int64
	Quantity  int32
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReservationOutcomeKind перечисляет исходы резервирования заказа.
type ReservationOutcomeKind int

const (
	// OutcomeReserved — все позиции зарезервированы (или уже были).
	OutcomeReserved ReservationOutcomeKind = iota
	// OutcomeInsufficientStock — хотя бы по одной позиции не хватило стока;
	// ни одно списание не зафиксировано.
	OutcomeInsufficientStock
	// OutcomeAlreadyCancelled — резервы заказа существуют в статусе RELEASED:
	// заказ был отменён. RELEASED-резерв работает как tombstone, повторно
	// доставленное сообщение создания не воскрешает отменённый заказ.
	OutcomeAlreadyCancelled
)

// ReservationOutcome — tagged-результат резервирования целого заказа.
// Резерв атомарен per-order: либо все позиции, либо ни одной.
type ReservationOutcome struct {
	Kind      ReservationOutcomeKind
	Shortages []StockShortage
}
