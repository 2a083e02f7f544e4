package sink

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/idgen"
)

func newTestDecoder() (*Decoder, time.Time) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	decoder := NewDecoder(idgen.New())
	decoder.now = func() time.Time { return now }
	return decoder, now
}

func TestDecodeFullEvent(t *testing.T) {
	decoder, _ := newTestDecoder()

	records, err := decoder.Decode([]byte(`{
		"orderId": "12345",
		"userId": "user-1",
		"status": "shipped",
		"createdAt": "2026-08-29T10:00:00Z",
		"items": [
			{"productId": 1, "productName": "widget", "quantity": 2, "unitPrice": "9.99"},
			{"productId": 2, "productName": "gadget", "quantity": 1, "unitPrice": "5.00"}
		]
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(records.Orders) != 2 || len(records.Products) != 2 || len(records.OrderItems) != 2 {
		t.Fatalf("records = %d/%d/%d, want 2/2/2",
			len(records.Orders), len(records.Products), len(records.OrderItems))
	}

	order := records.Orders[0]
	if order.OrderID != "12345" || order.Status != domain.StatusShipped {
		t.Errorf("order = %s/%s, want 12345/SHIPPED", order.OrderID, order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Errorf("total = %s, want 19.98", order.TotalAmount)
	}
	if order.CreatedAt != time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) {
		t.Errorf("createdAt = %v, want parsed timestamp", order.CreatedAt)
	}

	if records.OrderItems[0].OrderID != domain.LineOrderID(12345) {
		t.Errorf("line order id = %d, want 12345", records.OrderItems[0].OrderID)
	}
	if records.Products[1].Name != "gadget" {
		t.Errorf("product name = %s, want gadget", records.Products[1].Name)
	}
}

func TestDecodeDefaults(t *testing.T) {
	decoder, now := newTestDecoder()

	// Ни статуса, ни ID, ни цены, ни timestamp'ов - всё деградирует в
	// детерминированные значения по умолчанию.
	records, err := decoder.Decode([]byte(`{
		"userId": "user-1",
		"createdAt": "not-a-timestamp",
		"items": [{"productId": 7, "quantity": 1}]
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	order := records.Orders[0]
	if order.OrderID == "" {
		t.Error("blank order id was not generated")
	}
	if order.Status != domain.StatusUnknown {
		t.Errorf("status = %s, want UNKNOWN", order.Status)
	}
	if !order.UnitPrice.Equal(decimal.Zero) {
		t.Errorf("price = %s, want 0", order.UnitPrice)
	}
	if !order.CreatedAt.Equal(now) {
		t.Errorf("createdAt = %v, want now fallback %v", order.CreatedAt, now)
	}
}

func TestDecodeNonNumericOrderIDSkipsOrderItems(t *testing.T) {
	decoder, _ := newTestDecoder()

	records, err := decoder.Decode([]byte(`{
		"orderId": "order-abc",
		"userId": "user-1",
		"items": [{"productId": 1, "quantity": 1, "unitPrice": "1.00"}]
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(records.Orders) != 1 || len(records.Products) != 1 {
		t.Fatalf("orders/products = %d/%d, want 1/1", len(records.Orders), len(records.Products))
	}
	if len(records.OrderItems) != 0 {
		t.Fatalf("order items = %d, want 0 for non-numeric order id", len(records.OrderItems))
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	decoder, _ := newTestDecoder()

	if _, err := decoder.Decode([]byte(`{"items": [`)); err == nil {
		t.Fatal("Decode() accepted malformed JSON")
	}
}

func TestDecodeMalformedPriceDefaultsToZero(t *testing.T) {
	decoder, _ := newTestDecoder()

	records, err := decoder.Decode([]byte(`{
		"orderId": "1",
		"userId": "user-1",
		"items": [{"productId": 1, "quantity": 3, "unitPrice": "many rubles"}]
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !records.Orders[0].UnitPrice.Equal(decimal.Zero) {
		t.Errorf("price = %s, want 0", records.Orders[0].UnitPrice)
	}
	if !records.Orders[0].TotalAmount.Equal(decimal.Zero) {
		t.Errorf("total = %s, want 0", records.Orders[0].TotalAmount)
	}
}
