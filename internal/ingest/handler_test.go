package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/idgen"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

type fakeDedup struct {
	seen map[string]bool
	err  error
}

func (d *fakeDedup) Seen(_ context.Context, orderID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.seen[orderID], nil
}

func (d *fakeDedup) MarkProcessed(_ context.Context, orderID string) error {
	if d.err != nil {
		return d.err
	}
	d.seen[orderID] = true
	return nil
}

// flakyLines — репозиторий строк, отказывающий первым failures вставкам.
type flakyLines struct {
	domain.OrderLineRepository
	failures int
}

func (f *flakyLines) InsertLines(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("storage unavailable")
	}
	return f.OrderLineRepository.InsertLines(ctx, lines)
}

func orderMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderRequests,
		Value: []byte(value),
	}
}

func TestHandleRejectsMalformedMessage(t *testing.T) {
	engine, _ := newTestEngine(testProduct(1, "10.00", 5))
	handler := NewHandler(engine, nil, metrics.NewIngestMetrics())

	tests := []struct {
		name  string
		value string
	}{
		{"broken json", `{"orderId": "o1", "items": [`},
		{"malformed price", `{"orderId":"o1","userId":"u1","items":[{"productId":1,"quantity":1,"unitPrice":"abc"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.Handle(context.Background(), orderMessage(tt.value))
			if !kafka.IsTerminal(err) {
				t.Fatalf("Handle() error = %v, want terminal", err)
			}
		})
	}
}

func TestHandleTerminalOnInsufficientStock(t *testing.T) {
	engine, _ := newTestEngine(testProduct(1, "10.00", 2))
	handler := NewHandler(engine, nil, metrics.NewIngestMetrics())

	err := handler.Handle(context.Background(),
		orderMessage(`{"orderId":"o1","userId":"u1","items":[{"productId":1,"quantity":100,"unitPrice":"10.00"}]}`))
	if !kafka.IsTerminal(err) {
		t.Fatalf("Handle() error = %v, want terminal", err)
	}
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("Handle() error = %v, want insufficient stock cause", err)
	}
}

func TestHandleProcessesValidMessage(t *testing.T) {
	engine, lines := newTestEngine(testProduct(1, "10.00", 5))
	handler := NewHandler(engine, nil, metrics.NewIngestMetrics())

	err := handler.Handle(context.Background(),
		orderMessage(`{"orderId":"o1","userId":"u1","status":"NEW","items":[{"productId":1,"quantity":2,"unitPrice":"10.00"}]}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	stored, _ := lines.ListByOrder(context.Background(), "o1")
	if len(stored) != 1 {
		t.Fatalf("stored %d lines, want 1", len(stored))
	}
	if !stored[0].TotalAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("total = %s, want 20.00", stored[0].TotalAmount)
	}
}

func TestHandleSkipsDuplicateDelivery(t *testing.T) {
	engine, lines := newTestEngine(testProduct(1, "10.00", 10))
	dedup := &fakeDedup{seen: map[string]bool{}}
	handler := NewHandler(engine, dedup, metrics.NewIngestMetrics())

	message := orderMessage(`{"orderId":"o1","userId":"u1","items":[{"productId":1,"quantity":3,"unitPrice":"10.00"}]}`)
	for i := 0; i < 3; i++ {
		if err := handler.Handle(context.Background(), message); err != nil {
			t.Fatalf("delivery %d: Handle() error = %v", i+1, err)
		}
	}

	stored, _ := lines.ListByOrder(context.Background(), "o1")
	if len(stored) != 1 {
		t.Fatalf("stored %d lines, want 1", len(stored))
	}
}

func TestHandleRetriesAfterTransientFailure(t *testing.T) {
	catalog := memory.NewProductCatalog(testProduct(1, "10.00", 10))
	ledger := memory.NewStockLedger(catalog)
	lines := &flakyLines{OrderLineRepository: memory.NewOrderLineRepository(), failures: 1}
	engine := NewEngine(catalog, ledger, lines, idgen.New(), metrics.NewIngestMetrics())
	dedup := &fakeDedup{seen: map[string]bool{}}
	handler := NewHandler(engine, dedup, metrics.NewIngestMetrics())

	message := orderMessage(`{"orderId":"o1","userId":"u1","items":[{"productId":1,"quantity":2,"unitPrice":"10.00"}]}`)

	// Первая доставка падает на временном сбое хранилища и должна уйти в
	// retry, а не осесть в кеше дедупликации как обработанная.
	err := handler.Handle(context.Background(), message)
	if err == nil || kafka.IsTerminal(err) {
		t.Fatalf("first delivery error = %v, want transient", err)
	}

	// Повторная доставка (retry) обязана дойти до движка и сохранить заказ.
	if err := handler.Handle(context.Background(), message); err != nil {
		t.Fatalf("retry delivery error = %v", err)
	}

	stored, _ := lines.ListByOrder(context.Background(), "o1")
	if len(stored) != 1 {
		t.Fatalf("stored %d lines after retry, want 1", len(stored))
	}

	// Теперь заказ помечен, третья доставка отсекается кешем.
	if err := handler.Handle(context.Background(), message); err != nil {
		t.Fatalf("third delivery error = %v", err)
	}
	if !dedup.seen["o1"] {
		t.Fatal("order not marked in dedup cache after success")
	}
}

func TestHandleProcessesWhenDedupUnavailable(t *testing.T) {
	engine, lines := newTestEngine(testProduct(1, "10.00", 10))
	dedup := &fakeDedup{err: context.DeadlineExceeded}
	handler := NewHandler(engine, dedup, metrics.NewIngestMetrics())

	err := handler.Handle(context.Background(),
		orderMessage(`{"orderId":"o1","userId":"u1","items":[{"productId":1,"quantity":1,"unitPrice":"10.00"}]}`))
	if err != nil {
		t.Fatalf("Handle() error = %v, want fallback to storage idempotency", err)
	}

	stored, _ := lines.ListByOrder(context.Background(), "o1")
	if len(stored) != 1 {
		t.Fatalf("stored %d lines, want 1", len(stored))
	}
}
