package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

// PollerDeps wires the feed source with the stores the poller consults.
type PollerDeps struct {
	Source ports.FeedSource
	Ledger ports.Ledger
	Cursor ports.CursorStore
	Logger *slog.Logger
}

// PollerConfig selects the mode and pagination bounds.
type PollerConfig struct {
	// Backfill fetches the entire historical feed on the first cycle
	// instead of priming the cursor.
	Backfill             bool
	PageSize             int
	IncrementalPageLimit int
	BackfillPageLimit    int
}

// Poller pulls new items from the starred feed since the last cursor. Items
// already present in the ledger are filtered out before being returned, and
// the cursor only ever advances.
type Poller struct {
	source ports.FeedSource
	ledger ports.Ledger
	store  ports.CursorStore
	logger *slog.Logger

	cfg          PollerConfig
	cursor       domain.Cursor
	backfillDone bool
}

// NewPoller loads the persisted cursor and returns a ready poller.
func NewPoller(cfg PollerConfig, deps PollerDeps) (*Poller, error) {
	cursor, err := deps.Cursor.Load()
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.IncrementalPageLimit <= 0 {
		cfg.IncrementalPageLimit = 10
	}
	if cfg.BackfillPageLimit <= 0 {
		cfg.BackfillPageLimit = 100
	}

	return &Poller{
		source: deps.Source,
		ledger: deps.Ledger,
		store:  deps.Cursor,
		logger: deps.Logger,
		cfg:    cfg,
		cursor: cursor,
	}, nil
}

// Cursor exposes the poller's current position.
func (p *Poller) Cursor() domain.Cursor {
	return p.cursor
}

// Poll runs one cycle and returns the newly observed items, newest first.
// A failed cycle leaves the cursor untouched, so nothing is lost; the next
// cycle simply retries.
func (p *Poller) Poll(ctx context.Context) ([]domain.StarredRepo, error) {
	if p.cfg.Backfill && !p.backfillDone {
		items, err := p.pollBackfill(ctx)
		if err != nil {
			return nil, err
		}
		p.backfillDone = true
		p.advance(items)
		return items, nil
	}
	return p.pollIncremental(ctx)
}

// pollBackfill walks the whole feed under a hard page cap, emitting every
// item the ledger does not know yet.
func (p *Poller) pollBackfill(ctx context.Context) ([]domain.StarredRepo, error) {
	var items []domain.StarredRepo

	for page := 1; page <= p.cfg.BackfillPageLimit; page++ {
		fp, err := p.source.FetchPage(ctx, page, p.cfg.PageSize, "")
		if err != nil {
			return nil, fmt.Errorf("backfill page %d: %w", page, err)
		}

		fresh, err := p.filterKnown(ctx, fp.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, fresh...)

		if fp.RawCount < p.cfg.PageSize {
			return items, nil
		}
	}

	p.log("backfill hit page limit", "limit", p.cfg.BackfillPageLimit)
	return items, nil
}

func (p *Poller) pollIncremental(ctx context.Context) ([]domain.StarredRepo, error) {
	var items []domain.StarredRepo
	etagChanged := false

	for page := 1; page <= p.cfg.IncrementalPageLimit; page++ {
		// the conditional-request tag is only meaningful on the first page
		reqETag := ""
		if page == 1 {
			reqETag = p.cursor.ETag
		}

		fp, err := p.source.FetchPage(ctx, page, p.cfg.PageSize, reqETag)
		if err != nil {
			return nil, fmt.Errorf("poll page %d: %w", page, err)
		}

		if page == 1 {
			if fp.NotModified {
				return nil, nil
			}
			if fp.ETag != "" && fp.ETag != p.cursor.ETag {
				p.cursor.ETag = fp.ETag
				etagChanged = true
			}

			// First-run priming: establish a baseline instead of treating
			// the whole history as new. Backfill mode bypasses this.
			if p.cursor.LastSeen.IsZero() && !p.cfg.Backfill {
				if len(fp.Items) > 0 {
					p.cursor = p.cursor.Advance(fp.Items[0].StarredAt)
					p.log("primed cursor, no historical items emitted",
						"last_seen", p.cursor.LastSeen)
				}
				p.persistCursor()
				return nil, nil
			}
		}

		reachedSeen := false
		for _, item := range fp.Items {
			if !p.cursor.LastSeen.IsZero() && !item.StarredAt.After(p.cursor.LastSeen) {
				reachedSeen = true
				break
			}
			known, err := p.ledger.Contains(ctx, item.URL())
			if err != nil {
				return nil, fmt.Errorf("ledger lookup %s: %w", item.URL(), err)
			}
			if known {
				continue
			}
			items = append(items, item)
		}

		if reachedSeen || fp.RawCount < p.cfg.PageSize {
			break
		}
	}

	if len(items) > 0 || etagChanged {
		p.advance(items)
	}
	return items, nil
}

// filterKnown drops items the ledger already tracks.
func (p *Poller) filterKnown(ctx context.Context, in []domain.StarredRepo) ([]domain.StarredRepo, error) {
	var out []domain.StarredRepo
	for _, item := range in {
		known, err := p.ledger.Contains(ctx, item.URL())
		if err != nil {
			return nil, fmt.Errorf("ledger lookup %s: %w", item.URL(), err)
		}
		if !known {
			out = append(out, item)
		}
	}
	return out, nil
}

// advance moves the cursor to the maximum observed position among emitted
// items and persists it immediately.
func (p *Poller) advance(items []domain.StarredRepo) {
	for _, item := range items {
		p.cursor = p.cursor.Advance(item.StarredAt)
	}
	p.persistCursor()
}

// persistCursor is best effort: a write failure loses durability until the
// next successful save, never the in-memory position.
func (p *Poller) persistCursor() {
	if err := p.store.Save(p.cursor); err != nil && p.logger != nil {
		p.logger.Warn("cursor save failed", "error", err)
	}
}

func (p *Poller) log(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
