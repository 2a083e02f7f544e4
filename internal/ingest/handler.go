package ingest

import (
	"context"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// Deduplicator — быстрый best-effort кеш обработанных бизнес-ID. Позволяет
// пропустить повторную доставку без похода в хранилище; настоящая гарантия
// идемпотентности остаётся за уникальными ключами (order_id, product_id).
// ID помечается обработанным только после успешного приёма: временный сбой
// хранилища не оставляет в кеше ключ, из-за которого retry был бы пропущен.
type Deduplicator interface {
	// Seen сообщает, был ли бизнес-ID уже успешно обработан.
	Seen(ctx context.Context, orderID string) (bool, error)
	// MarkProcessed помечает бизнес-ID обработанным.
	MarkProcessed(ctx context.Context, orderID string) error
}

// Handler связывает Kafka consumer с движком приёма: декодирует сообщение,
// отсекает повторы и переводит терминальные исходы движка в маркер "не
// повторять" для consumer'а.
type Handler struct {
	engine  *Engine
	dedup   Deduplicator
	metrics *metrics.IngestMetrics
	logger  *log.Entry
}

// NewHandler создает обработчик сообщений очереди заказов. dedup может быть
// nil — тогда повторы доезжают до движка и гасятся идемпотентной вставкой.
func NewHandler(engine *Engine, dedup Deduplicator, ingestMetrics *metrics.IngestMetrics) *Handler {
	if ingestMetrics == nil {
		ingestMetrics = metrics.NewIngestMetrics()
	}
	return &Handler{
		engine:  engine,
		dedup:   dedup,
		metrics: ingestMetrics,
		logger:  log.WithField("component", "ingest-handler"),
	}
}

// Handle обрабатывает одно сообщение из топика заказов.
func (h *Handler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	request, err := kafka.DecodeOrderRequest(message)
	if err != nil {
		h.metrics.RecordValidationFailed()
		h.metrics.RecordDeadLettered()
		h.logger.WithError(err).WithFields(log.Fields{
			"topic":  message.Topic,
			"offset": message.Offset,
		}).Warn("order message rejected at decode")
		return kafka.Terminal(err)
	}

	if h.dedup != nil && request.OrderID != "" {
		seen, dedupErr := h.dedup.Seen(ctx, string(request.OrderID))
		switch {
		case dedupErr != nil:
			// Кеш недоступен — обрабатываем как обычно, идемпотентность
			// хранилища прикроет повтор.
			h.logger.WithError(dedupErr).Warn("dedup cache unavailable, processing without fast path")
		case seen:
			h.metrics.RecordReplaySkipped()
			h.logger.WithField("order_id", request.OrderID).Debug("duplicate delivery skipped")
			return nil
		}
	}

	orderID, err := h.engine.ProcessRequest(ctx, request)
	if err != nil {
		if !domain.IsTransient(err) {
			h.metrics.RecordDeadLettered()
			h.logger.WithError(err).WithField("order_id", orderID).Warn("order rejected")
			return kafka.Terminal(err)
		}
		// Ключ в кеше не ставился: retry этой доставки дойдет до движка.
		return err
	}

	if h.dedup != nil && request.OrderID != "" {
		if markErr := h.dedup.MarkProcessed(ctx, string(request.OrderID)); markErr != nil {
			// Без ключа повтор дойдет до хранилища и будет погашен там.
			h.logger.WithError(markErr).WithField("order_id", request.OrderID).Warn("failed to mark order in dedup cache")
		}
	}

	return nil
}
