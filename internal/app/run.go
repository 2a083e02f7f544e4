package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/aggregate"
	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/httpx"
	"github.com/vladislavdragonenkov/orderflow/internal/idgen"
	"github.com/vladislavdragonenkov/orderflow/internal/ingest"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/redisx"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
	"github.com/vladislavdragonenkov/orderflow/internal/sink"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// RunIngest запускает consumer приёма заказов: Kafka → движок → Postgres.
func RunIngest(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "ingest-app")
	logger.Info(version.String())

	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("kafka brokers are required (KAFKA_BROKERS)")
	}
	if cfg.PostgresDSN == "" {
		return errors.New("postgres dsn is required (ORDERFLOW_POSTGRES_DSN)")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	var dedup ingest.Deduplicator
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without dedup cache")
		} else {
			dedup = redisx.NewDedup(client, cfg.DedupTTL)
			logger.WithField("addr", cfg.RedisAddr).Info("dedup cache enabled")
		}
		defer func() { _ = client.Close() }()
	}

	ingestMetrics := metrics.NewIngestMetrics()
	engine := ingest.NewEngine(
		postgres.NewProductCatalog(store),
		postgres.NewStockLedger(store),
		postgres.NewOrderLineRepository(store),
		idgen.New(),
		ingestMetrics,
	)
	handler := ingest.NewHandler(engine, dedup, ingestMetrics)

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers, cfg.IngestGroupID, []string{kafka.TopicOrderRequests},
		handler.Handle, producer, cfg.ConsumerRetry)
	if err != nil {
		return err
	}

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", func() error {
		return store.Ping(context.Background())
	}))
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}
	shutdownHTTP(metricsSrv, logger)
	return ctx.Err()
}

// RunSink запускает fan-out sink: Kafka → батчеры → три таблицы Postgres.
func RunSink(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "sink-app")
	logger.Info(version.String())

	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("kafka brokers are required (KAFKA_BROKERS)")
	}
	if cfg.PostgresDSN == "" {
		return errors.New("postgres dsn is required (ORDERFLOW_POSTGRES_DSN)")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	orderSink := sink.New(postgres.NewSinkRepository(store), idgen.New(), cfg.SinkBatch, metrics.NewSinkMetrics(), producer)

	// Батчеры живут на собственном контексте: сначала останавливается
	// consumer, затем sink сбрасывает накопленный остаток.
	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()
	orderSink.Start(sinkCtx)

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers, cfg.SinkGroupID, []string{kafka.TopicOrderRequests},
		orderSink.Handle, producer, cfg.ConsumerRetry)
	if err != nil {
		return err
	}

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", func() error {
		return store.Ping(context.Background())
	}))
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}
	stopSink()
	orderSink.Wait()
	shutdownHTTP(metricsSrv, logger)
	return ctx.Err()
}

// RunIntake запускает HTTP intake API: POST публикует в очередь, чтение идёт
// через слой агрегации.
func RunIntake(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "intake-app")
	logger.Info(version.String())

	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("kafka brokers are required (KAFKA_BROKERS)")
	}
	if cfg.PostgresDSN == "" {
		return errors.New("postgres dsn is required (ORDERFLOW_POSTGRES_DSN)")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = producer.Close() }()

	aggregateService := aggregate.NewService(
		postgres.NewOrderLineRepository(store),
		postgres.NewStockLedger(store),
	)
	ordersService := orders.NewService(producer, aggregateService, idgen.New())

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", func() error {
		return store.Ping(context.Background())
	}))

	server := httpx.NewServer(cfg.HTTPAddr, ordersService, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http server shutdown with error")
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health endpoint'ы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.WithField("addr", addr).Info("metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
