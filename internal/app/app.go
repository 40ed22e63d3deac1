package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"AssignmentPilot/internal/config"
	"AssignmentPilot/internal/httpapi"
	"AssignmentPilot/internal/infrastructure/classroom"
	"AssignmentPilot/internal/infrastructure/llm"
	"AssignmentPilot/internal/infrastructure/mail"
	"AssignmentPilot/internal/infrastructure/scheduler"
	"AssignmentPilot/internal/logging"
	"AssignmentPilot/internal/ports"
	"AssignmentPilot/internal/storage"
	"AssignmentPilot/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.New(cfg.Storage.Dir, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	source := classroom.NewClient(cfg.Classroom, nil)

	var notifier ports.Notifier
	if cfg.SMTP.Host != "" && cfg.SMTP.Username != "" {
		notifier = mail.NewNotifier(cfg.SMTP)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Attachments:      source,
		Generator:        llm.NewChatGPTClient(cfg.ChatGPT),
		Notifier:         notifier,
		Store:            store,
		Cutoff:           cfg.Pipeline.Cutoff(),
		DefaultRecipient: cfg.Pipeline.DefaultRecipient,
		Logger:           baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	handler := httpapi.NewHandler(store, cfg.Pipeline.DefaultRecipient, baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler")),
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the application. In run-once mode a single batch executes
// and the process exits; otherwise the cron scheduler and the retrieval
// API serve until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Scheduler.RunOnce {
		return a.pipeline.Run(ctx)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("retrieval api listening", "addr", a.cfg.HTTP.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
