package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"StarWatch/internal/logging"
	"StarWatch/internal/ports"
)

// manualScheduler hands cycle control to the test.
type manualScheduler struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (s *manualScheduler) Start(_ context.Context, job func(time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job
	return nil
}

func (s *manualScheduler) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *manualScheduler) fire(t time.Time) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job != nil {
		job(t)
	}
}

func (s *manualScheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, want, sup.State())
}

func TestSupervisorLifecycle(t *testing.T) {
	t.Parallel()

	source := &fakeSource{fn: func(call, page, perPage int, etag string) (ports.FeedPage, error) {
		if call == 1 {
			return feedPage(star("a/one", t1)), nil
		}
		return feedPage(star("b/two", t2), star("a/one", t1)), nil
	}}
	ledger := newMemLedger()
	poller := newTestPoller(t, PollerConfig{}, source, ledger, &memCursorStore{})

	processor := &fakeProcessor{}
	pipeline := NewPipeline(PipelineConfig{
		CloneWorkers: 1,
		ScanWorkers:  1,
		CloneRetries: 1,
		RetryDelay:   time.Millisecond,
		CloneDir:     t.TempDir(),
	}, PipelineDeps{
		Acquirer:  &fakeAcquirer{},
		Processor: processor,
		Inspector: fixedInspector{outcome: "0"},
		Ledger:    ledger,
	})

	scheduler := &manualScheduler{}
	sup := NewSupervisor(SupervisorConfig{
		ReportInterval: time.Hour,
		DrainTimeout:   5 * time.Second,
		JoinTimeout:    5 * time.Second,
	}, SupervisorDeps{
		Poller:    poller,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Logger:    logging.Discard(),
	})

	require.Equal(t, StateStarting, sup.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitForState(t, sup, StateRunning)

	// cycle 1 primes the cursor, cycle 2 discovers one new star
	scheduler.fire(time.Now())
	scheduler.fire(time.Now())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	require.Equal(t, StateStopped, sup.State())
	require.True(t, scheduler.isStopped())
	require.Equal(t, 1, processor.callCount())

	rec, ok := ledger.get(star("b/two", t2).URL())
	require.True(t, ok)
	require.NotEmpty(t, rec.CloneTime)
	require.NotEmpty(t, rec.ScanTime)
}

func TestSupervisorSurvivesPollFailure(t *testing.T) {
	t.Parallel()

	source := &fakeSource{fn: func(call, page, perPage int, etag string) (ports.FeedPage, error) {
		return ports.FeedPage{}, ports.ErrRateLimited
	}}
	poller := newTestPoller(t, PollerConfig{}, source, newMemLedger(), &memCursorStore{})

	pipeline := NewPipeline(PipelineConfig{CloneWorkers: 1, ScanWorkers: 1, CloneDir: t.TempDir()}, PipelineDeps{
		Acquirer:  &fakeAcquirer{},
		Processor: &fakeProcessor{},
		Inspector: fixedInspector{outcome: "0"},
		Ledger:    newMemLedger(),
	})

	scheduler := &manualScheduler{}
	sup := NewSupervisor(SupervisorConfig{ReportInterval: time.Hour}, SupervisorDeps{
		Poller:    poller,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Logger:    logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitForState(t, sup, StateRunning)
	scheduler.fire(time.Now())
	scheduler.fire(time.Now())
	require.Equal(t, 2, source.callCount(), "failed cycles do not stop the schedule")

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, StateStopped, sup.State())
}
