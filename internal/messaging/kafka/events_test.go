package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func requestMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: TopicOrderRequests, Value: []byte(value)}
}

func TestDecodeOrderRequest(t *testing.T) {
	request, err := DecodeOrderRequest(requestMessage(`{
		"orderId": " order-1 ",
		"userId": "user-1",
		"status": "NEW",
		"items": [
			{"productId": 1, "productName": "widget", "quantity": 2, "unitPrice": "9.99"},
			{"productId": 2, "quantity": 1, "unitPrice": "0.50"}
		]
	}`))
	if err != nil {
		t.Fatalf("DecodeOrderRequest() error = %v", err)
	}

	if request.OrderID != "order-1" {
		t.Errorf("order id = %q, want trimmed order-1", request.OrderID)
	}
	if request.UserID != "user-1" || request.Status != "NEW" {
		t.Errorf("header = %s/%s", request.UserID, request.Status)
	}
	if len(request.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(request.Items))
	}
	if !request.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("price = %s, want 9.99", request.Items[0].UnitPrice)
	}
}

func TestDecodeOrderRequestMalformedJSON(t *testing.T) {
	_, err := DecodeOrderRequest(requestMessage(`{"orderId": "o1", "items": [`))
	if !domain.IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestDecodeOrderRequestMalformedPrice(t *testing.T) {
	_, err := DecodeOrderRequest(requestMessage(`{
		"orderId": "o1",
		"userId": "u1",
		"items": [{"productId": 1, "quantity": 1, "unitPrice": "nine dollars"}]
	}`))
	if !domain.IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if !errors.Is(err, domain.ErrPriceMalformed) {
		t.Fatalf("error %v does not wrap ErrPriceMalformed", err)
	}
}
