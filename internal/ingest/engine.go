package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// Engine — ядро приёма заказов. Принимает валидированный запрос, проверяет
// его против каталога, резервирует сток по принципу "всё или ничего" и
// сохраняет денормализованные строки заказа. Повторная доставка того же
// сообщения безопасна: вставка строк и резервов идемпотентна по паре
// (order_id, product_id).
type Engine struct {
	catalog domain.ProductCatalog
	ledger  domain.StockLedger
	lines   domain.OrderLineRepository
	idgen   domain.IDGenerator
	metrics *metrics.IngestMetrics
	logger  *log.Entry
}

// NewEngine создает движок приёма заказов.
func NewEngine(
	catalog domain.ProductCatalog,
	ledger domain.StockLedger,
	lines domain.OrderLineRepository,
	idgen domain.IDGenerator,
	ingestMetrics *metrics.IngestMetrics,
) *Engine {
	if ingestMetrics == nil {
		ingestMetrics = metrics.NewIngestMetrics()
	}
	return &Engine{
		catalog: catalog,
		ledger:  ledger,
		lines:   lines,
		idgen:   idgen,
		metrics: ingestMetrics,
		logger:  log.WithField("component", "ingest-engine"),
	}
}

// ProcessRequest обрабатывает один запрос на создание заказа и возвращает его
// бизнес-ID. Ошибки валидации и нехватка стока терминальны, всё остальное
// считается временным сбоем и подлежит повтору.
func (e *Engine) ProcessRequest(ctx context.Context, request domain.OrderRequest) (domain.BusinessOrderID, error) {
	started := time.Now()
	e.metrics.RecordInFlightStarted()
	defer func() {
		e.metrics.RecordInFlightFinished()
		e.metrics.RecordIngestDuration(time.Since(started))
	}()

	orderID := request.OrderID
	if orderID == "" {
		orderID = e.idgen.NewOrderID()
	}

	resolved, err := e.resolveItems(ctx, orderID, request)
	if err != nil {
		if domain.IsValidation(err) {
			e.metrics.RecordValidationFailed()
		}
		return orderID, err
	}

	reserve := make([]domain.RequestItem, len(resolved))
	for i, line := range resolved {
		reserve[i] = domain.RequestItem{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	outcome, err := e.ledger.ReserveOrder(ctx, orderID, reserve)
	if err != nil {
		return orderID, fmt.Errorf("reserve stock for order %s: %w", orderID, err)
	}
	switch outcome.Kind {
	case domain.OutcomeInsufficientStock:
		e.metrics.RecordInsufficientStock()
		return orderID, &domain.InsufficientStockError{
			OrderID:   orderID,
			Shortages: outcome.Shortages,
		}
	case domain.OutcomeAlreadyCancelled:
		// Заказ был отменён; RELEASED-резервы работают как tombstone.
		e.logger.WithField("order_id", orderID).Warn("order was cancelled, ignoring redelivered create message")
		return orderID, nil
	}

	inserted, err := e.lines.InsertLines(ctx, resolved)
	if err != nil {
		return orderID, fmt.Errorf("persist order lines for %s: %w", orderID, err)
	}
	if inserted < len(resolved) {
		// Часть строк уже вставлена прошлой доставкой этого сообщения.
		e.logger.WithFields(log.Fields{
			"order_id": orderID,
			"inserted": inserted,
			"total":    len(resolved),
		}).Info("partial insert, order lines already persisted by earlier delivery")
	}

	e.metrics.RecordIngested()
	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  request.UserID,
		"items":    len(resolved),
	}).Info("order ingested")

	return orderID, nil
}

// resolveItems валидирует запрос против каталога и строит строки заказа.
// Цена строки всегда каталожная: расхождение с ценой клиента не ошибка, а
// сигнал о несвежем клиенте или попытке подмены, цена молча переопределяется.
func (e *Engine) resolveItems(ctx context.Context, orderID domain.BusinessOrderID, request domain.OrderRequest) ([]domain.OrderLine, error) {
	if request.UserID == "" {
		return nil, domain.NewValidationError(domain.ErrUserIDRequired)
	}
	if len(request.Items) == 0 {
		return nil, domain.NewValidationError(fmt.Errorf("order %s: %w", orderID, domain.ErrItemsRequired))
	}

	status := domain.ParseOrderStatus(request.Status)
	now := time.Now().UTC()

	lines := make([]domain.OrderLine, 0, len(request.Items))
	for i, item := range request.Items {
		if item.ProductID <= 0 {
			return nil, domain.NewValidationError(fmt.Errorf("item %d: %w", i, domain.ErrProductIDRequired))
		}
		if item.Quantity <= 0 {
			return nil, domain.NewValidationError(fmt.Errorf("product %d: %w", item.ProductID, domain.ErrQuantityInvalid))
		}

		product, err := e.catalog.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, domain.NewValidationError(fmt.Errorf("product %d: %w", item.ProductID, domain.ErrProductNotFound))
			}
			return nil, fmt.Errorf("lookup product %d: %w", item.ProductID, err)
		}

		if !item.UnitPrice.Equal(product.Price) {
			e.logger.WithFields(log.Fields{
				"order_id":      orderID,
				"product_id":    item.ProductID,
				"client_price":  item.UnitPrice.String(),
				"catalog_price": product.Price.String(),
			}).Warn("client price differs from catalog, using catalog price")
		}

		lines = append(lines, domain.OrderLine{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			UserID:      request.UserID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			TotalAmount: product.Price.Mul(decimal.NewFromInt32(item.Quantity)),
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return lines, nil
}
