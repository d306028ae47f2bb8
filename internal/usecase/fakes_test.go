package usecase

import (
	"context"
	"sync"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

// feedPage wraps items into a page whose raw count matches, the way a
// well-formed upstream page looks.
func feedPage(items ...domain.StarredRepo) ports.FeedPage {
	return ports.FeedPage{Items: items, RawCount: len(items)}
}

// fakeSource answers FetchPage through a test-provided function.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	fn    func(call, page, perPage int, etag string) (ports.FeedPage, error)
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchPage(_ context.Context, page, perPage int, etag string) (ports.FeedPage, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call, page, perPage, etag)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memLedger is an in-memory ports.Ledger.
type memLedger struct {
	mu      sync.Mutex
	records map[string]*domain.LedgerRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[string]*domain.LedgerRecord{}}
}

func (l *memLedger) Contains(_ context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[url]
	return ok, nil
}

func (l *memLedger) Upsert(_ context.Context, url string, update domain.LedgerUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[url]
	if !ok {
		rec = &domain.LedgerRecord{URL: url}
		l.records[url] = rec
	}
	update.Apply(rec)
	return nil
}

func (l *memLedger) Snapshot(_ context.Context) ([]domain.LedgerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LedgerRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (l *memLedger) get(url string) (domain.LedgerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[url]
	if !ok {
		return domain.LedgerRecord{}, false
	}
	return *rec, true
}

func (l *memLedger) seed(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[url] = &domain.LedgerRecord{URL: url}
}

// memCursorStore keeps the cursor in memory and counts saves.
type memCursorStore struct {
	mu     sync.Mutex
	cursor domain.Cursor
	saves  int
}

func (s *memCursorStore) Load() (domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *memCursorStore) Save(cursor domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	s.saves++
	return nil
}

func (s *memCursorStore) saved() (domain.Cursor, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.saves
}

// fakeAcquirer fails a configurable number of times before succeeding.
type fakeAcquirer struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (a *fakeAcquirer) Acquire(context.Context, domain.StarredRepo, string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failures < 0 || a.calls <= a.failures {
		return a.err
	}
	return nil
}

func (a *fakeAcquirer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeProcessor returns a fixed error and records invocations.
type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakeProcessor) Process(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fixedInspector always reports the same outcome.
type fixedInspector struct {
	outcome string
}

func (i fixedInspector) Outcome(string) string { return i.outcome }

// recordingNotifier captures published digests.
type recordingNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.digests...)
}
