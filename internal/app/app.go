package app

import (
	"context"
	"fmt"
	"log/slog"

	"StarWatch/internal/config"
	"StarWatch/internal/feed"
	"StarWatch/internal/infrastructure/github"
	"StarWatch/internal/infrastructure/job"
	"StarWatch/internal/infrastructure/scheduler"
	"StarWatch/internal/infrastructure/state"
	"StarWatch/internal/infrastructure/storage"
	"StarWatch/internal/infrastructure/telegram"
	"StarWatch/internal/logging"
	"StarWatch/internal/ports"
	"StarWatch/internal/usecase"
)

// Application wires configuration to the supervisor and owns resources that
// need closing on exit.
type Application struct {
	cfg        config.Config
	supervisor *usecase.Supervisor
	cleanup    func()
}

// New builds a runnable application instance. Backfill selects whether the
// first poll fetches the entire starred history.
func New(ctx context.Context, cfg config.Config, backfill bool, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := feed.NewRegistry()
	registry.Register(github.NewClient(cfg.Feed.APIURL, cfg.Feed.Token, nil))

	source, err := registry.Resolve(cfg.Feed.Source)
	if err != nil {
		return nil, err
	}

	cleanup := func() {}
	var ledger ports.Ledger
	if cfg.Storage.PostgresDSN != "" {
		pg, err := storage.OpenPostgresLedger(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		ledger = pg
		cleanup = func() { _ = pg.Close() }
	} else {
		csv, err := storage.OpenCSVLedger(cfg.Storage.LedgerPath, baseLogger.With("component", "ledger"))
		if err != nil {
			return nil, fmt.Errorf("open csv ledger: %w", err)
		}
		ledger = csv
	}

	poller, err := usecase.NewPoller(usecase.PollerConfig{
		Backfill:             backfill,
		PageSize:             cfg.Feed.PageSize,
		IncrementalPageLimit: cfg.Feed.IncrementalPageLimit,
		BackfillPageLimit:    cfg.Feed.BackfillPageLimit,
	}, usecase.PollerDeps{
		Source: source,
		Ledger: ledger,
		Cursor: state.NewFileCursorStore(cfg.Storage.CursorPath),
		Logger: baseLogger.With("component", "poller"),
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	scanRunner := job.NewScanRunner(cfg.Jobs.ScanCommand, cfg.Jobs.ScanTimeout.Std(),
		baseLogger.With("component", "scan"))

	stats := usecase.NewStats()
	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		CloneWorkers: cfg.Pipeline.CloneWorkers,
		ScanWorkers:  cfg.Pipeline.ScanWorkers,
		QueueSize:    cfg.Pipeline.QueueSize,
		CloneRetries: cfg.Pipeline.CloneRetries,
		RetryDelay:   cfg.Pipeline.RetryDelay.Std(),
		CloneDir:     cfg.Storage.CloneDir,
	}, usecase.PipelineDeps{
		Acquirer:  job.NewGitCloneRunner(cfg.Jobs.CloneTimeout.Std(), baseLogger.With("component", "clone")),
		Processor: scanRunner,
		Inspector: scanRunner,
		Ledger:    ledger,
		Notifier:  notifier,
		Stats:     stats,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	supervisor := usecase.NewSupervisor(usecase.SupervisorConfig{
		ReportInterval: cfg.Pipeline.ReportInterval.Std(),
		DrainTimeout:   cfg.Pipeline.DrainTimeout.Std(),
		JoinTimeout:    cfg.Pipeline.JoinTimeout.Std(),
	}, usecase.SupervisorDeps{
		Poller:    poller,
		Pipeline:  pipeline,
		Scheduler: scheduler.NewIntervalScheduler(cfg.Feed.PollInterval.Std()),
		Stats:     stats,
		Logger:    baseLogger.With("component", "supervisor"),
	})

	return &Application{cfg: cfg, supervisor: supervisor, cleanup: cleanup}, nil
}

// Run blocks until ctx is cancelled and shutdown completes.
func (a *Application) Run(ctx context.Context) error {
	defer a.cleanup()
	return a.supervisor.Run(ctx)
}
