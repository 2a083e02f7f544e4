package sink

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// Repository описывает требования sink'а к хранилищу трёх целевых таблиц.
// Каждая запись идемпотентна: повтор всего события после частичного сбоя
// сводит таблицы к одному и тому же состоянию.
type Repository interface {
	WriteOrders(ctx context.Context, batch []OrderRecord) error
	UpsertProducts(ctx context.Context, batch []ProductRecord) error
	WriteOrderItems(ctx context.Context, batch []OrderItemRecord) error
}

// DeadLetterer публикует батч, исчерпавший повторы записи, чтобы его можно
// было доиграть инструментом переобработки DLQ.
type DeadLetterer interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Sink разворачивает каждое событие заказа в три независимых потока записей:
// orders, products и order_items. Между таблицами нет транзакции; частичная
// запись допустима и сходится при повторной доставке события.
type Sink struct {
	decoder  *Decoder
	orders   *Batcher[OrderRecord]
	products *Batcher[ProductRecord]
	items    *Batcher[OrderItemRecord]
	logger   *log.Entry
}

// New создает fan-out sink поверх хранилища трёх таблиц. deadLetter может быть
// nil — тогда батч, исчерпавший повторы, только логируется.
func New(repository Repository, idgen domain.IDGenerator, config BatchConfig, sinkMetrics *metrics.SinkMetrics, deadLetter DeadLetterer) *Sink {
	if sinkMetrics == nil {
		sinkMetrics = metrics.NewSinkMetrics()
	}
	logger := log.WithField("component", "order-sink")
	return &Sink{
		decoder:  NewDecoder(idgen),
		orders:   NewBatcher("orders", config, repository.WriteOrders, dropToDLQ[OrderRecord](deadLetter, "orders", logger), sinkMetrics),
		products: NewBatcher("products", config, repository.UpsertProducts, dropToDLQ[ProductRecord](deadLetter, "products", logger), sinkMetrics),
		items:    NewBatcher("order_items", config, repository.WriteOrderItems, dropToDLQ[OrderItemRecord](deadLetter, "order_items", logger), sinkMetrics),
		logger:   logger,
	}
}

// dropToDLQ строит обработчик отброшенного батча, публикующий записи в DLQ.
// Сообщение-источник к этому моменту уже подтверждено, DLQ — единственный
// способ не потерять записи насовсем.
func dropToDLQ[T any](deadLetter DeadLetterer, table string, logger *log.Entry) func(batch []T) {
	if deadLetter == nil {
		return nil
	}
	return func(batch []T) {
		payload := map[string]interface{}{
			"table":     table,
			"records":   batch,
			"failed_at": time.Now().UTC().Format(time.RFC3339),
		}
		if err := deadLetter.PublishEvent(kafka.TopicDeadLetterQueue, table, payload); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"table": table,
				"rows":  len(batch),
			}).Error("failed to dead-letter dropped batch")
			return
		}
		logger.WithFields(log.Fields{
			"table": table,
			"rows":  len(batch),
		}).Warn("dropped batch sent to dead letter queue")
	}
}

// Start запускает батчеры всех трёх таблиц.
func (s *Sink) Start(ctx context.Context) {
	s.orders.Start(ctx)
	s.products.Start(ctx)
	s.items.Start(ctx)
}

// Wait блокируется до остановки всех батчеров и финального сброса.
func (s *Sink) Wait() {
	s.orders.Wait()
	s.products.Wait()
	s.items.Wait()
}

// Handle разбирает одно событие заказа и ставит его записи в очереди
// батчеров. Нечитаемый JSON терминален и уходит в DLQ.
func (s *Sink) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	records, err := s.decoder.Decode(message.Value)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"topic":  message.Topic,
			"offset": message.Offset,
		}).Warn("undecodable order event")
		return kafka.Terminal(err)
	}

	for _, record := range records.Orders {
		if err := s.orders.Add(ctx, record); err != nil {
			return err
		}
	}
	for _, record := range records.Products {
		if err := s.products.Add(ctx, record); err != nil {
			return err
		}
	}
	for _, record := range records.OrderItems {
		if err := s.items.Add(ctx, record); err != nil {
			return err
		}
	}

	return nil
}
