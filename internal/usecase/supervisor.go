package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"StarWatch/internal/ports"
)

// State is the supervisor's lifecycle position. Transitions are
// one-directional: Starting -> Running -> Draining -> Stopped.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// SupervisorConfig bounds the shutdown phases and the reporting cadence.
type SupervisorConfig struct {
	ReportInterval time.Duration
	DrainTimeout   time.Duration
	JoinTimeout    time.Duration
}

// SupervisorDeps wires the components the supervisor owns.
type SupervisorDeps struct {
	Poller    *Poller
	Pipeline  *Pipeline
	Scheduler ports.Scheduler
	Stats     *Stats
	Logger    *slog.Logger
}

// Supervisor owns startup ordering, the poll schedule, periodic statistics,
// and graceful shutdown.
type Supervisor struct {
	cfg  SupervisorConfig
	deps SupervisorDeps

	state atomic.Value
}

// NewSupervisor applies defaults and returns a supervisor in Starting state.
func NewSupervisor(cfg SupervisorConfig, deps SupervisorDeps) *Supervisor {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 30 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 5 * time.Second
	}
	if deps.Stats == nil {
		deps.Stats = NewStats()
	}

	s := &Supervisor{cfg: cfg, deps: deps}
	s.state.Store(StateStarting)
	return s
}

// State reports the current lifecycle position.
func (s *Supervisor) State() State {
	return s.state.Load().(State)
}

// Run starts the worker pools and the poll schedule, then blocks until ctx
// is cancelled. Shutdown stops intake first, drains the queues within a
// bounded timeout, and joins the workers; workers that refuse to exit are
// abandoned with a warning.
func (s *Supervisor) Run(ctx context.Context) error {
	s.deps.Pipeline.Start()

	if err := s.deps.Scheduler.Start(ctx, func(t time.Time) {
		s.cycle(ctx, t)
	}); err != nil {
		return err
	}

	reporterStop := make(chan struct{})
	go s.reportLoop(reporterStop)

	s.state.Store(StateRunning)
	s.deps.Logger.Info("monitor running")

	<-ctx.Done()

	s.state.Store(StateDraining)
	s.deps.Logger.Info("shutdown requested, draining queues")
	_ = s.deps.Scheduler.Stop(context.Background())
	close(reporterStop)

	if err := s.deps.Pipeline.Shutdown(s.cfg.DrainTimeout, s.cfg.JoinTimeout); err != nil {
		s.deps.Logger.Warn("shutdown incomplete", "error", err)
	}

	s.state.Store(StateStopped)
	a, p := s.deps.Pipeline.QueueDepths()
	s.deps.Stats.Log(s.deps.Logger, "final statistics", a, p)
	return nil
}

// cycle runs one poll and feeds the pipeline. Failed cycles are reported
// and skipped; the process keeps running for the next one.
func (s *Supervisor) cycle(ctx context.Context, _ time.Time) {
	if ctx.Err() != nil {
		return
	}

	items, err := s.deps.Poller.Poll(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrUnauthorized):
			s.deps.Logger.Error("feed authentication failed, fix the token and wait for the next cycle", "error", err)
		case errors.Is(err, ports.ErrRateLimited):
			s.deps.Logger.Warn("feed rate limited, backing off until next cycle", "error", err)
		default:
			s.deps.Logger.Error("poll cycle failed", "error", err)
		}
		return
	}
	if len(items) == 0 {
		return
	}

	s.deps.Stats.Discovered.Add(int64(len(items)))
	s.deps.Logger.Info("new stars found", "count", len(items))

	for _, item := range items {
		if err := s.deps.Pipeline.SubmitAcquire(ctx, item); err != nil {
			s.deps.Logger.Warn("enqueue aborted", "repo", item.FullName, "error", err)
			return
		}
	}
}

func (s *Supervisor) reportLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a, p := s.deps.Pipeline.QueueDepths()
			s.deps.Stats.Log(s.deps.Logger, "stats", a, p)
		}
	}
}
