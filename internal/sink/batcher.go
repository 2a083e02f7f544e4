package sink

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// Значения по умолчанию для батчеров sink'а.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultMaxRetries    = 5

	baseRetryDelay = 100 * time.Millisecond
)

// BatchConfig настраивает размер батча, интервал сброса и бюджет повторов.
type BatchConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
}

// withDefaults заполняет незаданные поля значениями по умолчанию.
func (c BatchConfig) withDefaults() BatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// FlushFunc записывает один батч в целевую таблицу.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Batcher накапливает записи одного класса и сбрасывает их в целевую таблицу
// по достижении размера батча или по таймеру. Неудачный сброс повторяется с
// экспоненциальным backoff; исчерпавший бюджет батч передаётся в onDrop —
// исходное сообщение к этому моменту уже подтверждено, и без отдельного
// dead-letter канала записи было бы не доиграть.
type Batcher[T any] struct {
	table   string
	config  BatchConfig
	flush   FlushFunc[T]
	onDrop  func(batch []T)
	input   chan T
	metrics *metrics.SinkMetrics
	logger  *log.Entry
	wg      sync.WaitGroup
}

// NewBatcher создает батчер для одной целевой таблицы. onDrop может быть nil —
// тогда исчерпавший повторы батч только логируется.
func NewBatcher[T any](table string, config BatchConfig, flush FlushFunc[T], onDrop func(batch []T), sinkMetrics *metrics.SinkMetrics) *Batcher[T] {
	if sinkMetrics == nil {
		sinkMetrics = metrics.NewSinkMetrics()
	}
	config = config.withDefaults()
	return &Batcher[T]{
		table:   table,
		config:  config,
		flush:   flush,
		onDrop:  onDrop,
		input:   make(chan T, config.BatchSize*2),
		metrics: sinkMetrics,
		logger:  log.WithField("component", "sink-batcher").WithField("table", table),
	}
}

// Start запускает цикл накопления. Останавливается при отмене контекста,
// сбрасывая накопленный остаток.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx)
	}()
	b.logger.WithFields(log.Fields{
		"batch_size":     b.config.BatchSize,
		"flush_interval": b.config.FlushInterval,
	}).Info("sink batcher started")
}

// Wait блокируется до завершения цикла накопления.
func (b *Batcher[T]) Wait() {
	b.wg.Wait()
}

// Add ставит запись в очередь на запись.
func (b *Batcher[T]) Add(ctx context.Context, record T) error {
	select {
	case b.input <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher[T]) run(ctx context.Context) {
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]T, 0, b.config.BatchSize)
	for {
		select {
		case record := <-b.input:
			batch = append(batch, record)
			if len(batch) >= b.config.BatchSize {
				b.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Финальный сброс: забираем всё, что осталось в канале.
			for drained := true; drained; {
				select {
				case record := <-b.input:
					batch = append(batch, record)
				default:
					drained = false
				}
			}
			if len(batch) > 0 {
				b.flushWithRetry(context.Background(), batch)
			}
			b.logger.Info("sink batcher stopped")
			return
		}
	}
}

// flushWithRetry записывает батч с повторами и экспоненциальным backoff.
func (b *Batcher[T]) flushWithRetry(ctx context.Context, batch []T) {
	started := time.Now()
	defer func() {
		b.metrics.RecordFlushDuration(b.table, time.Since(started))
	}()

	delay := baseRetryDelay
	var lastErr error
	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			b.metrics.RecordFlushRetry(b.table)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				b.logger.WithField("rows", len(batch)).Warn("flush interrupted by shutdown")
				return
			}
			delay *= 2
		}

		if lastErr = b.flush(ctx, batch); lastErr == nil {
			b.metrics.RecordRowsWritten(b.table, len(batch))
			b.logger.WithField("rows", len(batch)).Debug("batch flushed")
			return
		}

		b.logger.WithError(lastErr).WithFields(log.Fields{
			"attempt":     attempt + 1,
			"max_retries": b.config.MaxRetries,
			"rows":        len(batch),
		}).Warn("batch flush failed")
	}

	b.metrics.RecordFlushFailed(b.table)
	if b.onDrop == nil {
		b.logger.WithError(lastErr).WithField("rows", len(batch)).Error("batch dropped after exhausting retries")
		return
	}

	// Вызывающий цикл переиспользует слайс батча, отдаём копию.
	dropped := make([]T, len(batch))
	copy(dropped, batch)
	b.logger.WithError(lastErr).WithField("rows", len(batch)).Error("flush retries exhausted, handing batch to dead letter path")
	b.onDrop(dropped)
}
