package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

// PipelineConfig sizes the two bounded queues and their worker pools. Clone
// pools are typically larger than scan pools since scanning is the more
// resource-intensive stage.
type PipelineConfig struct {
	CloneWorkers int
	ScanWorkers  int
	QueueSize    int
	CloneRetries int
	RetryDelay   time.Duration
	CloneDir     string
}

// PipelineDeps wires the external jobs and the ledger into the pipeline.
type PipelineDeps struct {
	Acquirer  ports.Acquirer
	Processor ports.Processor
	Inspector ports.ResultInspector
	Ledger    ports.Ledger
	Notifier  ports.Notifier
	Stats     *Stats
	Logger    *slog.Logger
}

type processTask struct {
	repo domain.StarredRepo
	path string
}

// Pipeline drains two bounded queues with fixed worker pools: clone workers
// acquire repository content and feed the scan queue, scan workers run the
// analysis job and record outcomes. The ledger is the only shared mutable
// state besides the queues.
type Pipeline struct {
	cfg  PipelineConfig
	deps PipelineDeps

	acquireQueue chan domain.StarredRepo
	processQueue chan processTask
	wgClones     sync.WaitGroup
	wgScans      sync.WaitGroup

	// closed is set under mu before acquireQueue is closed, so a submitter
	// holding the read lock can never race the close.
	mu     sync.RWMutex
	closed bool
}

// NewPipeline builds the queues; workers start on Start.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	if cfg.CloneWorkers <= 0 {
		cfg.CloneWorkers = 1
	}
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.CloneRetries <= 0 {
		cfg.CloneRetries = 1
	}
	if deps.Stats == nil {
		deps.Stats = NewStats()
	}

	return &Pipeline{
		cfg:          cfg,
		deps:         deps,
		acquireQueue: make(chan domain.StarredRepo, cfg.QueueSize),
		processQueue: make(chan processTask, cfg.QueueSize),
	}
}

// Start spawns both worker pools.
func (p *Pipeline) Start() {
	for i := 0; i < p.cfg.CloneWorkers; i++ {
		p.wgClones.Add(1)
		go p.cloneWorker()
	}
	for i := 0; i < p.cfg.ScanWorkers; i++ {
		p.wgScans.Add(1)
		go p.scanWorker()
	}
}

// SubmitAcquire records the item in the ledger (the record is created on the
// first enqueue attempt) and places it on the clone queue. The put blocks
// when the queue is full, applying backpressure to the poller; ctx
// cancellation aborts the wait. After Shutdown has begun the submit is
// refused with ports.ErrQueueClosed.
func (p *Pipeline) SubmitAcquire(ctx context.Context, repo domain.StarredRepo) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("enqueue %s: %w", repo.FullName, ports.ErrQueueClosed)
	}

	if err := p.deps.Ledger.Upsert(ctx, repo.URL(), domain.LedgerUpdate{}); err != nil {
		p.warn("ledger enqueue record failed", "repo", repo.FullName, "error", err)
	}

	select {
	case p.acquireQueue <- repo:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", repo.FullName, ctx.Err())
	}
}

// QueueDepths reports how many tasks sit in each queue.
func (p *Pipeline) QueueDepths() (acquire, process int) {
	return len(p.acquireQueue), len(p.processQueue)
}

// Shutdown refuses further intake, drains both stages in order: wait for
// the queues to empty within drainTimeout, then close each queue and join
// its pool within joinTimeout. Workers that do not exit in time are
// abandoned with an error; the scan queue is then deliberately left open so
// no worker can panic on a send.
func (p *Pipeline) Shutdown(drainTimeout, joinTimeout time.Duration) error {
	// taking the write lock waits out any submitter already past its
	// closed check, so the queue close below cannot hit a pending send
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		a, s := p.QueueDepths()
		if a == 0 && s == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	close(p.acquireQueue)
	if !waitTimeout(&p.wgClones, joinTimeout) {
		return fmt.Errorf("clone workers still busy after %s, abandoning", joinTimeout)
	}

	close(p.processQueue)
	if !waitTimeout(&p.wgScans, joinTimeout) {
		return fmt.Errorf("scan workers still busy after %s, abandoning", joinTimeout)
	}

	return nil
}

func (p *Pipeline) cloneWorker() {
	defer p.wgClones.Done()
	for repo := range p.acquireQueue {
		p.handleClone(repo)
	}
}

func (p *Pipeline) handleClone(repo domain.StarredRepo) {
	p.deps.Stats.ActiveClones.Add(1)
	defer p.deps.Stats.ActiveClones.Add(-1)

	// In-flight jobs are bounded by their own timeouts, not by the stop
	// signal, so they run on a background context.
	ctx := context.Background()
	dest := filepath.Join(p.cfg.CloneDir, repo.DirName())

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		p.log("clone skipped, path already present", "repo", repo.FullName, "path", dest)
		p.recordCloneSuccess(ctx, repo, dest)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.CloneRetries; attempt++ {
		err := p.deps.Acquirer.Acquire(ctx, repo, dest)
		if err == nil {
			p.log("clone ok", "repo", repo.FullName, "attempt", attempt)
			p.recordCloneSuccess(ctx, repo, dest)
			return
		}
		lastErr = err
		// a partial clone would poison the next attempt
		_ = os.RemoveAll(dest)
		if attempt < p.cfg.CloneRetries {
			time.Sleep(p.cfg.RetryDelay)
		}
	}

	p.deps.Stats.CloneFail.Add(1)
	p.warn("clone failed permanently", "repo", repo.FullName,
		"attempts", p.cfg.CloneRetries, "error", lastErr)
	if err := p.deps.Ledger.Upsert(ctx, repo.URL(), domain.LedgerUpdate{
		Outcome: domain.Str(domain.OutcomeCloneFailed),
	}); err != nil {
		p.warn("ledger update failed", "repo", repo.FullName, "error", err)
	}
}

func (p *Pipeline) recordCloneSuccess(ctx context.Context, repo domain.StarredRepo, dest string) {
	p.deps.Stats.CloneOK.Add(1)
	now := nowISO()
	if err := p.deps.Ledger.Upsert(ctx, repo.URL(), domain.LedgerUpdate{
		LocalPath: domain.Str(dest),
		CloneTime: domain.Str(now),
	}); err != nil {
		p.warn("ledger update failed", "repo", repo.FullName, "error", err)
	}
	p.processQueue <- processTask{repo: repo, path: dest}
}

func (p *Pipeline) scanWorker() {
	defer p.wgScans.Done()
	for task := range p.processQueue {
		p.handleScan(task)
	}
}

func (p *Pipeline) handleScan(task processTask) {
	p.deps.Stats.ActiveScans.Add(1)
	defer p.deps.Stats.ActiveScans.Add(-1)

	p.log("scan starting", "repo", task.repo.FullName, "path", task.path)
	err := p.deps.Processor.Process(context.Background(), task.path)

	outcome := p.deps.Inspector.Outcome(task.path)
	switch {
	case err == nil:
		p.deps.Stats.ScanOK.Add(1)
		p.log("scan ok", "repo", task.repo.FullName, "verified", outcome)
	case errors.Is(err, ports.ErrProcessTimeout):
		p.deps.Stats.ScanFail.Add(1)
		if outcome == "0" {
			outcome = domain.OutcomeTimeout
		}
		p.warn("scan timed out", "repo", task.repo.FullName)
	default:
		p.deps.Stats.ScanFail.Add(1)
		if outcome == "0" {
			outcome = domain.OutcomeError
		}
		p.warn("scan failed", "repo", task.repo.FullName, "error", err)
	}

	// a dequeued item always gets a ledger update, whatever happened
	now := nowISO()
	if uerr := p.deps.Ledger.Upsert(context.Background(), task.repo.URL(), domain.LedgerUpdate{
		ScanTime:   domain.Str(now),
		VerifyTime: domain.Str(now),
		Outcome:    domain.Str(outcome),
	}); uerr != nil {
		p.warn("ledger update failed", "repo", task.repo.FullName, "error", uerr)
	}

	p.notifyVerified(task.repo, outcome)
}

func (p *Pipeline) notifyVerified(repo domain.StarredRepo, outcome string) {
	if p.deps.Notifier == nil {
		return
	}
	count, err := strconv.Atoi(outcome)
	if err != nil || count == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	digest := fmt.Sprintf("starwatch: %d verified finding(s) in %s", count, repo.FullName)
	if err := p.deps.Notifier.PublishDigest(ctx, digest); err != nil {
		p.warn("notification failed", "repo", repo.FullName, "error", err)
	}
}

func (p *Pipeline) log(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
