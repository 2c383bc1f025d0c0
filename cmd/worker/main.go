package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carebridge/carechat/internal/bootstrap"
	"github.com/carebridge/carechat/internal/config"
	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/observability/logging"
	"github.com/carebridge/carechat/internal/observability/metrics"
)

const serviceName = "carechat-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReports(ctx, func(handlerCtx context.Context, job domain.ReportJob) error {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(job.EnqueuedAt))
		workerMetrics.StartDelivery()
		started := time.Now()

		deliverCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()
		deliverErr := app.Notifier.Deliver(deliverCtx, job)

		workerMetrics.FinishDelivery(serviceName, time.Since(started), deliverErr)
		if deliverErr != nil {
			logger.Error("report delivery failed",
				"session_id", job.SessionID,
				"error", deliverErr,
			)
		}
		return deliverErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
