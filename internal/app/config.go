package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/sink"
)

// Config описывает настройки запуска сервисов конвейера.
type Config struct {
	// Kafka
	KafkaBrokers   []string
	IngestGroupID  string
	SinkGroupID    string
	ConsumerRetry  int

	// Хранилища
	PostgresDSN string
	RedisAddr   string
	DedupTTL    time.Duration

	// HTTP
	HTTPAddr    string
	MetricsAddr string

	// Sink
	SinkBatch sink.BatchConfig
}

// DefaultConfig возвращает базовые настройки.
func DefaultConfig() Config {
	return Config{
		IngestGroupID: "orderflow-ingest",
		SinkGroupID:   "orderflow-sink",
		ConsumerRetry: 3,
		DedupTTL:      24 * time.Hour,
		HTTPAddr:      ":8080",
		MetricsAddr:   ":9090",
		SinkBatch: sink.BatchConfig{
			BatchSize:     sink.DefaultBatchSize,
			FlushInterval: sink.DefaultFlushInterval,
			MaxRetries:    sink.DefaultMaxRetries,
		},
	}
}

// LoadConfig читает конфигурацию из окружения. Файл .env подхватывается,
// если существует; его отсутствие не ошибка.
func LoadConfig() Config {
	if err := godotenv.Load(); err == nil {
		log.WithField("component", "config").Debug(".env file loaded")
	}

	cfg := DefaultConfig()
	cfg.KafkaBrokers = parseBrokers(os.Getenv("KAFKA_BROKERS"))
	cfg.IngestGroupID = envString("ORDERFLOW_INGEST_GROUP", cfg.IngestGroupID)
	cfg.SinkGroupID = envString("ORDERFLOW_SINK_GROUP", cfg.SinkGroupID)
	cfg.ConsumerRetry = envInt("ORDERFLOW_CONSUMER_RETRIES", cfg.ConsumerRetry)
	cfg.PostgresDSN = os.Getenv("ORDERFLOW_POSTGRES_DSN")
	cfg.RedisAddr = os.Getenv("ORDERFLOW_REDIS_ADDR")
	cfg.DedupTTL = envDuration("ORDERFLOW_DEDUP_TTL", cfg.DedupTTL)
	cfg.HTTPAddr = envString("ORDERFLOW_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("ORDERFLOW_METRICS_ADDR", cfg.MetricsAddr)
	cfg.SinkBatch.BatchSize = envInt("ORDERFLOW_SINK_BATCH_SIZE", cfg.SinkBatch.BatchSize)
	cfg.SinkBatch.FlushInterval = envDuration("ORDERFLOW_SINK_FLUSH_INTERVAL", cfg.SinkBatch.FlushInterval)
	cfg.SinkBatch.MaxRetries = envInt("ORDERFLOW_SINK_MAX_RETRIES", cfg.SinkBatch.MaxRetries)
	return cfg
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.WithField("component", "config").WithField("key", key).Warn("unparseable integer, using default")
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.WithField("component", "config").WithField("key", key).Warn("unparseable duration, using default")
		return fallback
	}
	return value
}
