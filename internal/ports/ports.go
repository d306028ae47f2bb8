package ports

import (
	"context"
	"errors"
	"time"

	"StarWatch/internal/domain"
)

// Feed conditions surfaced by FeedSource implementations so the poller can
// report them without knowing transport details.
var (
	ErrUnauthorized = errors.New("feed authentication failed")
	ErrRateLimited  = errors.New("feed rate limit exceeded")
)

// ErrProcessTimeout marks a processing job that hit its own deadline.
var ErrProcessTimeout = errors.New("processing job timed out")

// ErrQueueClosed is returned when work is submitted to a pipeline that has
// already begun shutting down.
var ErrQueueClosed = errors.New("queue closed")

// FeedPage is one page of the starred feed, newest first. RawCount is the
// number of entries upstream actually returned, before malformed ones were
// dropped; pagination must use it, not len(Items), to detect a short page.
type FeedPage struct {
	Items       []domain.StarredRepo
	RawCount    int
	ETag        string
	NotModified bool
}

// FeedSource fetches single feed pages from an upstream provider.
type FeedSource interface {
	Name() string
	FetchPage(ctx context.Context, page, perPage int, etag string) (FeedPage, error)
}

// CursorStore persists the poller position between runs.
type CursorStore interface {
	Load() (domain.Cursor, error)
	Save(cursor domain.Cursor) error
}

// Ledger is the persistent per-item record store used as the idempotency
// gate. Implementations must tolerate concurrent callers; an upsert only
// adds or overwrites the fields explicitly passed.
type Ledger interface {
	Contains(ctx context.Context, url string) (bool, error)
	Upsert(ctx context.Context, url string, update domain.LedgerUpdate) error
	Snapshot(ctx context.Context) ([]domain.LedgerRecord, error)
}

// Acquirer materializes a repository's content at dest.
type Acquirer interface {
	Acquire(ctx context.Context, repo domain.StarredRepo, dest string) error
}

// Processor runs the external analysis job against an acquired clone.
// A deadline hit is reported as ErrProcessTimeout.
type Processor interface {
	Process(ctx context.Context, path string) error
}

// ResultInspector extracts the outcome recorded in the ledger from the
// artifacts a processing job leaves in the clone directory.
type ResultInspector interface {
	Outcome(path string) string
}

// Notifier streams short operational digests to an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when poll cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
