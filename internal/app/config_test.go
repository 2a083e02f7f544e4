package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IngestGroupID != "orderflow-ingest" {
		t.Errorf("ingest group = %s", cfg.IngestGroupID)
	}
	if cfg.SinkBatch.BatchSize != 100 {
		t.Errorf("batch size = %d, want 100", cfg.SinkBatch.BatchSize)
	}
	if cfg.SinkBatch.FlushInterval != 500*time.Millisecond {
		t.Errorf("flush interval = %v, want 500ms", cfg.SinkBatch.FlushInterval)
	}
	if cfg.SinkBatch.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.SinkBatch.MaxRetries)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("ORDERFLOW_POSTGRES_DSN", "postgres://localhost/orderflow")
	t.Setenv("ORDERFLOW_SINK_BATCH_SIZE", "250")
	t.Setenv("ORDERFLOW_SINK_FLUSH_INTERVAL", "2s")
	t.Setenv("ORDERFLOW_CONSUMER_RETRIES", "7")

	cfg := LoadConfig()

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.PostgresDSN != "postgres://localhost/orderflow" {
		t.Errorf("dsn = %s", cfg.PostgresDSN)
	}
	if cfg.SinkBatch.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250", cfg.SinkBatch.BatchSize)
	}
	if cfg.SinkBatch.FlushInterval != 2*time.Second {
		t.Errorf("flush interval = %v, want 2s", cfg.SinkBatch.FlushInterval)
	}
	if cfg.ConsumerRetry != 7 {
		t.Errorf("consumer retries = %d, want 7", cfg.ConsumerRetry)
	}
}

func TestLoadConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("ORDERFLOW_SINK_BATCH_SIZE", "lots")
	t.Setenv("ORDERFLOW_DEDUP_TTL", "forever")

	cfg := LoadConfig()

	if cfg.SinkBatch.BatchSize != 100 {
		t.Errorf("batch size = %d, want default 100", cfg.SinkBatch.BatchSize)
	}
	if cfg.DedupTTL != 24*time.Hour {
		t.Errorf("dedup ttl = %v, want default 24h", cfg.DedupTTL)
	}
}
