package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/aggregate"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/idgen"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

type fakePublisher struct {
	messages []kafka.OrderRequestMessage
	err      error
}

func (p *fakePublisher) PublishOrderRequest(message kafka.OrderRequestMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message)
	return nil
}

func newTestOrdersService(publisher *fakePublisher) *Service {
	catalog := memory.NewProductCatalog()
	ledger := memory.NewStockLedger(catalog)
	lines := memory.NewOrderLineRepository()
	return NewService(publisher, aggregate.NewService(lines, ledger), idgen.New())
}

func TestCreateOrderPublishesMessage(t *testing.T) {
	publisher := &fakePublisher{}
	service := newTestOrdersService(publisher)

	orderID, err := service.CreateOrder(context.Background(), domain.OrderRequest{
		OrderID: "order-1",
		UserID:  "user-1",
		Status:  "NEW",
		Items: []domain.RequestItem{
			{ProductID: 1, ProductName: "widget", Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if orderID != "order-1" {
		t.Fatalf("orderID = %s, want order-1", orderID)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(publisher.messages))
	}
	message := publisher.messages[0]
	if message.OrderID != "order-1" || message.UserID != "user-1" {
		t.Errorf("message header = %s/%s", message.OrderID, message.UserID)
	}
	if len(message.Items) != 1 || message.Items[0].UnitPrice != "9.99" {
		t.Errorf("message items = %+v", message.Items)
	}
}

func TestCreateOrderGeneratesID(t *testing.T) {
	publisher := &fakePublisher{}
	service := newTestOrdersService(publisher)

	orderID, err := service.CreateOrder(context.Background(), domain.OrderRequest{
		UserID: "user-1",
		Items:  []domain.RequestItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")}},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if orderID == "" {
		t.Fatal("expected generated order ID")
	}
	if publisher.messages[0].OrderID != string(orderID) {
		t.Errorf("message order id = %s, want %s", publisher.messages[0].OrderID, orderID)
	}
}

func TestCreateOrderShapeValidation(t *testing.T) {
	publisher := &fakePublisher{}
	service := newTestOrdersService(publisher)

	tests := []struct {
		name    string
		request domain.OrderRequest
	}{
		{"missing user", domain.OrderRequest{Items: []domain.RequestItem{{ProductID: 1, Quantity: 1}}}},
		{"empty items", domain.OrderRequest{UserID: "user-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.CreateOrder(context.Background(), tt.request); !domain.IsValidation(err) {
				t.Fatalf("CreateOrder() error = %v, want validation error", err)
			}
		})
	}
	if len(publisher.messages) != 0 {
		t.Fatalf("published %d messages for invalid requests", len(publisher.messages))
	}
}

func TestCreateOrderPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	service := newTestOrdersService(publisher)

	_, err := service.CreateOrder(context.Background(), domain.OrderRequest{
		UserID: "user-1",
		Items:  []domain.RequestItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")}},
	})
	if err == nil {
		t.Fatal("CreateOrder() accepted despite publish failure")
	}
	if domain.IsValidation(err) {
		t.Fatal("publish failure must not look like a validation error")
	}
}
