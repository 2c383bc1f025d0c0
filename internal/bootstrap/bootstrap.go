package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/carechat/internal/config"
	"github.com/carebridge/carechat/internal/core/ports"
	"github.com/carebridge/carechat/internal/core/usecase"
	"github.com/carebridge/carechat/internal/infrastructure/decode"
	"github.com/carebridge/carechat/internal/infrastructure/llm/openai"
	"github.com/carebridge/carechat/internal/infrastructure/mail/mailgun"
	"github.com/carebridge/carechat/internal/infrastructure/ocr/tesseract"
	"github.com/carebridge/carechat/internal/infrastructure/queue/nats"
	"github.com/carebridge/carechat/internal/infrastructure/repository/postgres"
	"github.com/carebridge/carechat/internal/infrastructure/resilience"
	"github.com/carebridge/carechat/internal/observability/metrics"
)

// App wires configuration, storage, transports and use cases into the
// inbound ports the HTTP adapter and the delivery worker consume.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Sessions ports.SessionManager
	Ingest   ports.DocumentIngestor
	Chat     ports.ChatService
	Notifier ports.ReportNotifier
	Queue    ports.ReportQueue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sessionRepo := postgres.NewSessionRepository(db)
	turnRepo := postgres.NewConversationRepository(db)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Logger:             logger,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init report queue: %w", err)
	}

	apiMetrics := metrics.NewHTTPServerMetrics("carechat-api")

	model := openai.New(
		cfg.ModelBaseURL,
		cfg.ModelID,
		cfg.ModelAPIKey,
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
		cfg.ChatMaxRetries,
	)
	model.OnUsage(func(modelID string, usage openai.Usage) {
		apiMetrics.RecordTokenUsage("carechat-api", modelID, usage.PromptTokens, usage.CompletionTokens)
	})

	// Absent mail credentials leave the transport nil; report delivery then
	// fails with DeliveryFailure instead of refusing to start the service.
	var sender ports.MailSender
	if cfg.MailConfigured() {
		sender = mailgun.New(
			cfg.MailgunDomain,
			cfg.MailgunAPIKey,
			cfg.Sender(),
			time.Duration(cfg.MailgunTimeoutSeconds)*time.Second,
		)
	} else {
		logger.Warn("mail transport not configured, transcript emails disabled")
	}

	registry := usecase.NewRegistry()
	sessions := usecase.NewSessionUseCase(sessionRepo, turnRepo, queue, registry, logger)
	ingest := usecase.NewIngestUseCase(
		sessionRepo,
		decode.NewDecoder(),
		tesseract.NewEngine(cfg.OCRLanguage),
		registry,
		usecase.ExtractLimits{
			MinConfidence: cfg.OCRMinConfidence,
			PageWorkers:   cfg.OCRPageWorkers,
			PageTimeout:   time.Duration(cfg.OCRPageTimeoutSeconds) * time.Second,
		},
		logger,
	)
	chat := usecase.NewChatUseCase(
		sessionRepo,
		turnRepo,
		model,
		registry,
		usecase.ChatLimits{
			MaxContextChars:  cfg.ChatMaxContextChars,
			MaxDocumentChars: cfg.OCRMaxChars,
			CallTimeout:      time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
		},
		logger,
	)
	notifier := usecase.NewNotifyUseCase(sessionRepo, turnRepo, sender, cfg.ReportSubject, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: apiMetrics,

		Sessions: sessions,
		Ingest:   ingest,
		Chat:     chat,
		Notifier: notifier,
		Queue:    queue,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
