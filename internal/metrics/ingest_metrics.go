package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics содержит метрики конвейера приёма заказов.
type IngestMetrics struct {
	// Счётчики исходов обработки сообщений
	ordersIngested    prometheus.Counter
	validationFailed  prometheus.Counter
	insufficientStock prometheus.Counter
	replaysSkipped    prometheus.Counter
	deadLettered      prometheus.Counter

	// Гистограмма времени обработки одного сообщения
	ingestDuration prometheus.Histogram

	// Gauge для сообщений в обработке
	inFlight prometheus.Gauge
}

// NewIngestMetrics создаёт метрики конвейера в default registerer.
func NewIngestMetrics() *IngestMetrics {
	return newIngestMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newIngestMetricsWithRegisterer(registerer prometheus.Registerer) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IngestMetrics{
		ordersIngested: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_ingested_total",
			Help: "Total number of orders fully persisted by the ingestion engine",
		}),
		validationFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_validation_failed_total",
			Help: "Total number of order messages rejected by validation",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_insufficient_stock_total",
			Help: "Total number of orders rejected due to insufficient stock",
		}),
		replaysSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_replays_skipped_total",
			Help: "Total number of redelivered messages short-circuited as already processed",
		}),
		deadLettered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_dead_lettered_total",
			Help: "Total number of order messages moved to the dead letter topic",
		}),
		ingestDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_ingest_duration_seconds",
			Help:    "Duration of a single order message ingestion in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderflow_ingest_in_flight",
			Help: "Number of order messages currently being processed",
		}),
	}
}

// RecordIngested увеличивает счётчик успешно обработанных заказов.
func (m *IngestMetrics) RecordIngested() {
	m.ordersIngested.Inc()
}

// RecordValidationFailed увеличивает счётчик ошибок валидации.
func (m *IngestMetrics) RecordValidationFailed() {
	m.validationFailed.Inc()
}

// RecordInsufficientStock увеличивает счётчик отказов по стоку.
func (m *IngestMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordReplaySkipped увеличивает счётчик пропущенных повторных доставок.
func (m *IngestMetrics) RecordReplaySkipped() {
	m.replaysSkipped.Inc()
}

// RecordDeadLettered увеличивает счётчик сообщений, ушедших в DLQ.
func (m *IngestMetrics) RecordDeadLettered() {
	m.deadLettered.Inc()
}

// RecordIngestDuration записывает время обработки сообщения.
func (m *IngestMetrics) RecordIngestDuration(duration time.Duration) {
	m.ingestDuration.Observe(duration.Seconds())
}

// RecordInFlightStarted увеличивает количество сообщений в обработке.
func (m *IngestMetrics) RecordInFlightStarted() {
	m.inFlight.Inc()
}

// RecordInFlightFinished уменьшает количество сообщений в обработке.
func (m *IngestMetrics) RecordInFlightFinished() {
	m.inFlight.Dec()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
