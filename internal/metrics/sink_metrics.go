package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkMetrics содержит метрики fan-out sink'а: батчи, строки, ретраи по
// каждой целевой таблице.
type SinkMetrics struct {
	rowsWritten   *prometheus.CounterVec
	flushFailed   *prometheus.CounterVec
	flushRetries  *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
}

// NewSinkMetrics создаёт метрики sink'а в default registerer.
func NewSinkMetrics() *SinkMetrics {
	return newSinkMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSinkMetricsWithRegisterer(registerer prometheus.Registerer) *SinkMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	tableLabel := []string{"table"}
	return &SinkMetrics{
		rowsWritten: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_sink_rows_written_total",
			Help: "Total number of rows written by the fan-out sink per destination table",
		}, tableLabel),
		flushFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_sink_flush_failed_total",
			Help: "Total number of batch flushes that exhausted all retries",
		}, tableLabel),
		flushRetries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_sink_flush_retries_total",
			Help: "Total number of batch flush retry attempts",
		}, tableLabel),
		flushDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_sink_flush_duration_seconds",
			Help:    "Duration of batch flushes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, tableLabel),
	}
}

// RecordRowsWritten учитывает записанные строки по таблице.
func (m *SinkMetrics) RecordRowsWritten(table string, rows int) {
	m.rowsWritten.WithLabelValues(table).Add(float64(rows))
}

// RecordFlushFailed учитывает батч, исчерпавший все попытки записи.
func (m *SinkMetrics) RecordFlushFailed(table string) {
	m.flushFailed.WithLabelValues(table).Inc()
}

// RecordFlushRetry учитывает повторную попытку записи батча.
func (m *SinkMetrics) RecordFlushRetry(table string) {
	m.flushRetries.WithLabelValues(table).Inc()
}

// RecordFlushDuration записывает время flush'а батча.
func (m *SinkMetrics) RecordFlushDuration(table string, duration time.Duration) {
	m.flushDuration.WithLabelValues(table).Observe(duration.Seconds())
}
