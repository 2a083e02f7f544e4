package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

func main() {
	setupLogger()
	cfg := app.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"brokers":        cfg.KafkaBrokers,
		"group_id":       cfg.SinkGroupID,
		"batch_size":     cfg.SinkBatch.BatchSize,
		"flush_interval": cfg.SinkBatch.FlushInterval,
	}).Info("starting fan-out sink")

	if err := app.RunSink(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("fan-out sink failed")
	}

	log.Info("fan-out sink stopped")
}
