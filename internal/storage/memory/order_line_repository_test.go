package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func makeLine(orderID domain.BusinessOrderID, productID int64, userID string) domain.OrderLine {
	now := time.Now().UTC()
	price := decimal.RequireFromString("2.50")
	return domain.OrderLine{
		ID:          string(orderID) + "-line",
		OrderID:     orderID,
		UserID:      userID,
		ProductID:   productID,
		Quantity:    2,
		UnitPrice:   price,
		TotalAmount: price.Mul(decimal.NewFromInt(2)),
		Status:      domain.StatusUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInsertLinesDeduplicates(t *testing.T) {
	repo := NewOrderLineRepository()
	ctx := context.Background()

	lines := []domain.OrderLine{
		makeLine("order-1", 1, "user-1"),
		makeLine("order-1", 2, "user-1"),
	}
	inserted, err := repo.InsertLines(ctx, lines)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", inserted)
	}

	// Повторная вставка тех же пар (order, product) — no-op.
	inserted, err = repo.InsertLines(ctx, lines)
	if err != nil {
		t.Fatalf("replay insert: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0 inserted on replay, got %d", inserted)
	}

	stored, err := repo.ListByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored lines, got %d", len(stored))
	}
}

func TestUpdateStatusByOrder(t *testing.T) {
	repo := NewOrderLineRepository()
	ctx := context.Background()

	if _, err := repo.InsertLines(ctx, []domain.OrderLine{
		makeLine("order-1", 1, "user-1"),
		makeLine("order-1", 2, "user-1"),
		makeLine("order-2", 1, "user-2"),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	affected, err := repo.UpdateStatusByOrder(ctx, "order-1", domain.StatusShipped)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected lines, got %d", affected)
	}

	lines, err := repo.ListByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, line := range lines {
		if line.Status != domain.StatusShipped {
			t.Fatalf("expected SHIPPED, got %s", line.Status)
		}
	}

	// Неизвестный заказ — 0 затронутых строк, без ошибки.
	affected, err = repo.UpdateStatusByOrder(ctx, "missing", domain.StatusShipped)
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 affected for unknown order, got %d", affected)
	}
}

func TestDeleteByOrder(t *testing.T) {
	repo := NewOrderLineRepository()
	ctx := context.Background()

	if _, err := repo.InsertLines(ctx, []domain.OrderLine{
		makeLine("order-1", 1, "user-1"),
		makeLine("order-2", 1, "user-1"),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := repo.DeleteByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	byUser, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 1 || byUser[0].OrderID != "order-2" {
		t.Fatalf("unexpected remaining lines: %+v", byUser)
	}
}
